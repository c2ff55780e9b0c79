package checkout

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput covers malformed commands: empty item lists, missing
	// email, non-positive quantities.
	ErrInvalidInput = errors.New("checkout: invalid input")

	// ErrNotPending rejects settlement of an order that already reached a
	// terminal status. An order is settled exactly once.
	ErrNotPending = errors.New("checkout: order is not pending")

	ErrInsufficientStock = errors.New("checkout: insufficient stock")
)

// InsufficientStockError names the product that could not cover the
// requested quantity. errors.Is(err, ErrInsufficientStock) matches it.
type InsufficientStockError struct {
	ProductID string
	Required  int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product %s: required %d, available %d",
		e.ProductID, e.Required, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
