package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-cart-orders.git/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, user_id, status, total_price::text, created_at, updated_at`

// Repo stores orders in Postgres. The local transaction covers only the
// orders tables; stock lives in another service.
type Repo struct{ DB postgres.DB }

func (r *Repo) Create(ctx context.Context, o *Order) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, status, total_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
	`, o.ID, o.UserID, string(o.Status), o.TotalPrice.String(), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	for i, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(order_id, position, product_id, quantity, subtotal)
			VALUES ($1, $2, $3, $4, $5::numeric)`,
			o.ID, i, it.ProductID, it.Quantity, it.Subtotal.String(),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE id=$1 AND user_id=$2`, orderID, userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrOrderNotFound)
	}
	if err != nil {
		return nil, err
	}
	if o.Items, err = r.items(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range out {
		if out[i].Items, err = r.items(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateStatus is a compare-and-set on status; zero rows means another
// request changed it first.
func (r *Repo) UpdateStatus(ctx context.Context, orderID string, from, to Status) (*Order, error) {
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%s -> %s: %w", from, to, ErrStatusConflict)
	}
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2
		RETURNING `+orderColumns,
		orderID, string(from), string(to),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %s not %s: %w", orderID, from, ErrStatusConflict)
	}
	if err != nil {
		return nil, err
	}
	if o.Items, err = r.items(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) items(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, quantity, subtotal::text
		FROM order_items WHERE order_id=$1 ORDER BY position`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []OrderItem{}
	for rows.Next() {
		var (
			it  OrderItem
			sub string
		)
		if err := rows.Scan(&it.ProductID, &it.Quantity, &sub); err != nil {
			return nil, err
		}
		if it.Subtotal, err = decimal.NewFromString(sub); err != nil {
			return nil, fmt.Errorf("order %s item %s subtotal: %w", orderID, it.ProductID, err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
		total  string
	)
	if err := row.Scan(&o.ID, &o.UserID, &status, &total, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	t, err := decimal.NewFromString(total)
	if err != nil {
		return Order{}, fmt.Errorf("order %s total: %w", o.ID, err)
	}
	o.TotalPrice = t
	return o, nil
}
