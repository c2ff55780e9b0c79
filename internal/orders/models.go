package orders

import "time"

// Order records a purchase: the total charged, the customer and the items
// bought. AmountCents is fixed when the order is created from a snapshot of
// product prices and is never recomputed, even if catalog prices move later.
type Order struct {
	ID            string
	AmountCents   int
	Currency      string
	Status        Status
	CustomerEmail string
	Items         []Item
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Item is one line of an order. Immutable once the order is created.
type Item struct {
	ID        string
	OrderID   string
	ProductID string
	Qty       int
}

// ItemInput is the (product, quantity) pair callers supply when creating
// an order. Prices come from the catalog, never from the caller.
type ItemInput struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"quantity"`
}
