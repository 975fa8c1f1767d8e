package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	kafkax "github.com/ariefcatur/go-cart-orders.git/internal/kafka"
	"github.com/ariefcatur/go-cart-orders.git/internal/orders"
	"github.com/ariefcatur/go-cart-orders.git/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type DiscrepancyStore interface {
	Record(ctx context.Context, d Discrepancy) (bool, error)
}

// Service records failed compensations for an operator. It never touches
// stock: re-issuing Delta with the recorded key is safe to do by hand.
type Service struct {
	Redis *redis.Client
	Store DiscrepancyStore
	Name  string
}

// HandleCompensationFailed is installed as the consumer handler.
func (s *Service) HandleCompensationFailed(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		// unreadable forever; committing is the only way past it
		slog.ErrorContext(ctx, "drop malformed message", "topic", m.Topic, "offset", m.Offset, "err", err)
		return nil
	}
	if env.EventType != orders.EventCompensationFailed {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.CompensationFailedPayload](env.Payload)
	if err != nil {
		slog.ErrorContext(ctx, "drop malformed payload", "event_id", env.EventID, "err", err)
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.name(), env.EventID)
	first, err := redisx.MarkOnce(ctx, s.Redis, dkey, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		return nil
	}

	inserted, err := s.Store.Record(ctx, Discrepancy{
		EventID:        env.EventID,
		OrderID:        p.OrderID,
		ProductID:      p.ProductID,
		Delta:          p.Delta,
		IdempotencyKey: p.IdempotencyKey,
		Reason:         p.Reason,
	})
	if err != nil {
		// let the redelivery through the dedup gate
		_ = s.Redis.Del(ctx, dkey).Err()
		return fmt.Errorf("record discrepancy %s: %w", env.EventID, err)
	}
	if inserted {
		slog.ErrorContext(ctx, "stock discrepancy recorded",
			"event_id", env.EventID,
			"order_id", p.OrderID,
			"user_id", p.UserID,
			"product_id", p.ProductID,
			"delta", p.Delta,
			"idempotency_key", p.IdempotencyKey,
			"reason", p.Reason,
			"trace_id", env.TraceID,
		)
	}
	return nil
}

func (s *Service) name() string {
	if s.Name != "" {
		return s.Name
	}
	return "reconciler"
}
