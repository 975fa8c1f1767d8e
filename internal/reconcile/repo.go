package reconcile

import (
	"context"

	"github.com/ariefcatur/go-cart-orders.git/internal/postgres"
)

// Discrepancy is a stock adjustment that a saga could not reverse.
type Discrepancy struct {
	EventID        string
	OrderID        string
	ProductID      string
	Delta          int
	IdempotencyKey string
	Reason         string
}

type Repo struct{ DB postgres.DB }

// Record inserts d once per event id and reports whether a row was written.
func (r *Repo) Record(ctx context.Context, d Discrepancy) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		INSERT INTO stock_discrepancies(event_id, order_id, product_id, delta, idempotency_key, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING`,
		d.EventID, d.OrderID, d.ProductID, d.Delta, d.IdempotencyKey, d.Reason,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
