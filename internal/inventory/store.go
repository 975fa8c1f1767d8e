package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-cart-orders.git/internal/orders"
	"github.com/ariefcatur/go-cart-orders.git/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, price::text, stock, updated_at`

// Store is the stock authority. Every change goes through Adjust.
type Store struct{ DB postgres.DB }

func (s *Store) List(ctx context.Context) ([]orders.Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (orders.Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, fmt.Errorf("product %s: %w", id, orders.ErrProductNotFound)
	}
	return p, err
}

// Adjust adds delta to the product's stock unless the result would be
// negative. A key already recorded returns the current row untouched; a
// rejected adjustment rolls its key back so a retry is evaluated again.
func (s *Store) Adjust(ctx context.Context, id string, delta int, key string) (orders.Product, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return orders.Product{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if key != "" {
		tag, err := tx.Exec(ctx, `
			INSERT INTO stock_adjustments(idempotency_key, product_id, delta)
			VALUES ($1, $2, $3)
			ON CONFLICT (idempotency_key) DO NOTHING`, key, id, delta)
		if err != nil {
			return orders.Product{}, err
		}
		if tag.RowsAffected() == 0 {
			p, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
			if errors.Is(err, pgx.ErrNoRows) {
				return orders.Product{}, fmt.Errorf("product %s: %w", id, orders.ErrProductNotFound)
			}
			return p, err
		}
	}

	p, err := scanProduct(tx.QueryRow(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now()
		WHERE id=$1 AND stock + $2 >= 0
		RETURNING `+productColumns, id, delta))
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id=$1)`, id).Scan(&exists); err != nil {
			return orders.Product{}, err
		}
		if !exists {
			return orders.Product{}, fmt.Errorf("product %s: %w", id, orders.ErrProductNotFound)
		}
		return orders.Product{}, fmt.Errorf("product %s delta %d: %w", id, delta, orders.ErrInsufficientStock)
	}
	if err != nil {
		return orders.Product{}, err
	}
	return p, tx.Commit(ctx)
}

func scanProduct(row pgx.Row) (orders.Product, error) {
	var (
		p     orders.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.Stock, &p.UpdatedAt); err != nil {
		return orders.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return orders.Product{}, fmt.Errorf("product %s price %q: %w", p.ID, price, err)
	}
	p.Price = d
	return p, nil
}
