package orders

import "context"

// StockGateway talks to the inventory service, the only authority over stock.
// Failures are ErrProductNotFound, ErrInsufficientStock (AdjustStock only) or
// ErrDownstreamUnavailable; the gateway never retries.
type StockGateway interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
	// AdjustStock applies delta (negative reserves, positive releases).
	// A non-empty idempotencyKey makes repeats of the same call no-ops.
	AdjustStock(ctx context.Context, productID string, delta int, idempotencyKey string) (Product, error)
}

// CartStore is keyed by user id. Get returns a nil cart when none exists.
// Claim, Restore and Discard move a cart in and out of a checkout slot
// identified by token so that only one checkout can own it.
type CartStore interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Upsert(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, userID string) error

	Claim(ctx context.Context, userID, token string) (*Cart, error)
	Restore(ctx context.Context, userID, token string) error
	Discard(ctx context.Context, userID, token string) error
}

type OrderRepository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, userID, orderID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// UpdateStatus changes the status only if it is still from; otherwise
	// it returns ErrStatusConflict.
	UpdateStatus(ctx context.Context, orderID string, from, to Status) (*Order, error)
}

type EventPublisher interface {
	PublishEnvelope(ctx context.Context, topic string, env Envelope) error
}
