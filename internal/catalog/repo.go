package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo reads and writes products in Postgres.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) FindAll(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, price_cents, stock, created_at, updated_at
		FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FindManyByIDs returns the products matching ids. The result may be a strict
// subset; callers that care about missing ids must compare sets themselves.
func (r *Repo) FindManyByIDs(ctx context.Context, ids []string) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	params := ""
	args := make([]any, 0, len(ids))
	for i, id := range ids {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, price_cents, stock, created_at, updated_at
		FROM products WHERE id IN (`+params+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) FindByID(ctx context.Context, id string) (*Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, price_cents, stock, created_at, updated_at
		FROM products WHERE id=$1`, id,
	).Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStock overwrites stock unconditionally (last write wins). This is not
// a conditional decrement; concurrent settlements can race past the stock
// check upstream. See DESIGN.md.
func (r *Repo) UpdateStock(ctx context.Context, id string, newStock int) error {
	ct, err := r.DB.Exec(ctx, `UPDATE products SET stock=$2, updated_at=now() WHERE id=$1`, id, newStock)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Seed inserts count demo products with random prices and, optionally,
// random stock. Dev/demo helper, not part of the checkout flow.
func (r *Repo) Seed(ctx context.Context, count int, withStock bool) ([]Product, error) {
	if count <= 0 {
		count = 3
	}
	for i := 0; i < count; i++ {
		price := 10000 + rand.Intn(90000)
		stock := 0
		if withStock {
			stock = 1 + rand.Intn(10)
		}
		_, err := r.DB.Exec(ctx, `
			INSERT INTO products(id, name, price_cents, stock)
			VALUES ($1, $2, $3, $4)`,
			uuid.NewString(), fmt.Sprintf("Product %d", i+1), price, stock,
		)
		if err != nil {
			return nil, err
		}
	}
	return r.FindAll(ctx)
}
