package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("order not found")

// Repo persists orders and their items in Postgres.
type Repo struct{ DB *pgxpool.Pool }

// Create inserts one order plus all of its items in a single transaction:
// either every row lands or none do. The order starts as PENDING.
func (r *Repo) Create(ctx context.Context, amountCents int, currency, email string, items []ItemInput) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o := &Order{
		ID:            uuid.NewString(),
		AmountCents:   amountCents,
		Currency:      currency,
		Status:        StatusPending,
		CustomerEmail: email,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, status, amount_cents, currency, customer_email)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		o.ID, o.Status, o.AmountCents, o.Currency, o.CustomerEmail,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		item := Item{ID: uuid.NewString(), OrderID: o.ID, ProductID: it.ProductID, Qty: it.Qty}
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, qty)
			VALUES ($1, $2, $3, $4)`,
			item.ID, item.OrderID, item.ProductID, item.Qty,
		)
		if err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// FindByID returns the order with its items, or ErrNotFound.
func (r *Repo) FindByID(ctx context.Context, id string) (*Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, status, amount_cents, currency, customer_email, created_at, updated_at
		FROM orders WHERE id=$1`, id,
	).Scan(&o.ID, &o.Status, &o.AmountCents, &o.Currency, &o.CustomerEmail, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.Items, err = r.loadItems(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateStatus overwrites the order status in a single statement and returns
// the updated order with its items.
func (r *Repo) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		UPDATE orders SET status=$2, updated_at=now() WHERE id=$1
		RETURNING id, status, amount_cents, currency, customer_email, created_at, updated_at`,
		id, status,
	).Scan(&o.ID, &o.Status, &o.AmountCents, &o.Currency, &o.CustomerEmail, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if o.Items, err = r.loadItems(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) loadItems(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, qty
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Qty); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
