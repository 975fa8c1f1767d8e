package orders

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderCancelled     = "OrderCancelled"
	EventCompensationFailed = "CompensationFailed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	Items      []OrderItem     `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type OrderCancelledPayload struct {
	OrderID string      `json:"order_id"`
	UserID  string      `json:"user_id"`
	Items   []OrderItem `json:"items"`
}

// CompensationFailedPayload describes a stock adjustment that should have
// been reversed but was not. Re-issuing Delta with IdempotencyKey is safe.
type CompensationFailedPayload struct {
	OrderID        string `json:"order_id"`
	UserID         string `json:"user_id"`
	ProductID      string `json:"product_id"`
	Delta          int    `json:"delta"`
	IdempotencyKey string `json:"idempotency_key"`
	Reason         string `json:"reason"`
}

type traceKey struct{}

// WithTraceID attaches a request id that ends up in published envelopes.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// TraceID returns the request id set by WithTraceID, if any.
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(traceKey{}).(string)
	return v
}

// emitter publishes envelopes best effort: failures are logged, never returned.
type emitter struct {
	pub      EventPublisher
	producer string
}

func (e emitter) emit(ctx context.Context, topic, eventType, orderID string, payload any) {
	if e.pub == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal event payload", "event_type", eventType, "order_id", orderID, "err", err)
		return
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.producer,
		TraceID:       TraceID(ctx),
		CorrelationID: orderID,
		Payload:       body,
	}
	if err := e.pub.PublishEnvelope(ctx, topic, env); err != nil {
		slog.WarnContext(ctx, "publish event", "event_type", eventType, "order_id", orderID, "err", err)
	}
}
