package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// CancellationSaga reverses a confirmed order:
// Loading -> Restoring -> Updating -> Committed.
type CancellationSaga struct {
	Orders OrderRepository
	Stock  StockGateway
	Events EventPublisher

	Producer string
}

func (s *CancellationSaga) Run(ctx context.Context, userID, orderID string) (*Order, error) {
	state := StateLoading
	fail := func(productID string, err error) error {
		return &SagaError{Saga: "cancel", State: state, UserID: userID, OrderID: orderID, ProductID: productID, Err: err}
	}

	o, err := s.Orders.Get(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, fail("", err)
		}
		return nil, fail("", errors.Join(ErrPersistenceFailure, err))
	}
	if o.Status == StatusCancelled {
		return nil, fail("", ErrAlreadyCancelled)
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return nil, fail("", fmt.Errorf("%w: status %s", ErrStatusConflict, o.Status))
	}

	// Restored items are not taken back on failure: a retry reuses the same
	// keys, so only the missing restorations get applied.
	state = StateRestoring
	for _, it := range o.Items {
		if _, err := s.Stock.AdjustStock(ctx, it.ProductID, it.Quantity, cancelKey(o.ID, it.ProductID)); err != nil {
			if !errors.Is(err, ErrDownstreamUnavailable) {
				err = errors.Join(ErrDownstreamUnavailable, err)
			}
			return nil, fail(it.ProductID, err)
		}
	}

	state = StateUpdating
	updated, err := s.Orders.UpdateStatus(ctx, o.ID, StatusConfirmed, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return nil, fail("", fmt.Errorf("%w: %w", ErrAlreadyCancelled, err))
		}
		slog.ErrorContext(ctx, "stock restored but order not cancelled, retry is safe",
			"order_id", o.ID, "user_id", userID, "err", err)
		return nil, fail("", errors.Join(ErrPersistenceFailure, err))
	}

	slog.DebugContext(ctx, "cancel saga", "order_id", o.ID, "to", StateCommitted)
	emitter{pub: s.Events, producer: s.Producer}.emit(ctx, TopicOrderCancelled, EventOrderCancelled, o.ID, OrderCancelledPayload{
		OrderID: o.ID, UserID: o.UserID, Items: o.Items,
	})
	return updated, nil
}
