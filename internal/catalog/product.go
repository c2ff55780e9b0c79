package catalog

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("product not found")

// Product is a catalog entry. Prices are in COP cents. Stock is the only
// field the checkout flow mutates.
type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PriceCents int       `json:"price_cents"`
	Stock      int       `json:"stock"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
