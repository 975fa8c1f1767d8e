package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateValidating   State = "Validating"
	StateReserving    State = "Reserving"
	StatePersisting   State = "Persisting"
	StateClearingCart State = "ClearingCart"
	StateLoading      State = "Loading"
	StateRestoring    State = "Restoring"
	StateUpdating     State = "Updating"
	StateCommitted    State = "Committed"
	StateAborted      State = "Aborted"
)

const defaultCompensationTimeout = 10 * time.Second

// Idempotency keys are derived from the order id, so a re-sent adjustment
// for the same step is applied at most once by the inventory service.
func reserveKey(orderID, productID string) string { return "order:" + orderID + ":reserve:" + productID }
func releaseKey(orderID, productID string) string { return "order:" + orderID + ":release:" + productID }
func cancelKey(orderID, productID string) string  { return "order:" + orderID + ":cancel:" + productID }

// OrderSaga turns a user's cart into a confirmed order:
// Validating -> Reserving -> Persisting -> ClearingCart -> Committed.
// Any failure before ClearingCart moves to Aborted after reversing every
// stock reservation already applied in this run.
type OrderSaga struct {
	Carts  CartStore
	Orders OrderRepository
	Stock  StockGateway
	Events EventPublisher

	Producer            string
	CompensationTimeout time.Duration
	NewID               func() string
	Now                 func() time.Time
}

type reservation struct {
	productID string
	qty       int
}

type orderRun struct {
	s       *OrderSaga
	userID  string
	orderID string
	state   State
	claimed bool
	applied []reservation
}

func (s *OrderSaga) Run(ctx context.Context, userID string) (*Order, error) {
	newID := s.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	r := &orderRun{s: s, userID: userID, orderID: newID(), state: StateValidating}
	return r.run(ctx)
}

func (s *OrderSaga) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *OrderSaga) events() emitter { return emitter{pub: s.Events, producer: s.Producer} }

func (r *orderRun) run(ctx context.Context) (*Order, error) {
	s := r.s

	cart, err := s.Carts.Claim(ctx, r.userID, r.orderID)
	if err != nil {
		return nil, r.fail("", errors.Join(ErrPersistenceFailure, err))
	}
	if cart == nil {
		return nil, r.fail("", ErrEmptyCart)
	}
	r.claimed = true
	if len(cart.Items) == 0 {
		r.restoreCart(ctx)
		return nil, r.fail("", ErrEmptyCart)
	}

	r.enter(ctx, StateReserving)
	for _, it := range cart.Items {
		if _, err := s.Stock.AdjustStock(ctx, it.ProductID, -it.Quantity, reserveKey(r.orderID, it.ProductID)); err != nil {
			cause := gatewayCause(err)
			if errors.Is(cause, ErrDownstreamUnavailable) {
				r.reportUnknownReservation(ctx, it, cause)
			}
			return nil, r.abort(ctx, it.ProductID, cause)
		}
		r.applied = append(r.applied, reservation{productID: it.ProductID, qty: it.Quantity})
	}

	r.enter(ctx, StatePersisting)
	Recalculate(cart)
	now := s.now()
	order := &Order{
		ID:         r.orderID,
		UserID:     r.userID,
		Items:      snapshotItems(cart.Items),
		TotalPrice: cart.TotalPrice,
		Status:     StatusConfirmed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Orders.Create(ctx, order); err != nil {
		return nil, r.abort(ctx, "", errors.Join(ErrPersistenceFailure, err))
	}

	r.enter(ctx, StateClearingCart)
	if err := s.Carts.Discard(ctx, r.userID, r.orderID); err != nil {
		slog.WarnContext(ctx, "clear cart after order", "user_id", r.userID, "order_id", r.orderID, "err", err)
	}

	r.enter(ctx, StateCommitted)
	s.events().emit(ctx, TopicOrderPlaced, EventOrderPlaced, order.ID, OrderPlacedPayload{
		OrderID: order.ID, UserID: order.UserID, Items: order.Items, TotalPrice: order.TotalPrice,
	})
	return order, nil
}

func (r *orderRun) enter(ctx context.Context, st State) {
	slog.DebugContext(ctx, "order saga", "order_id", r.orderID, "from", r.state, "to", st)
	r.state = st
}

func (r *orderRun) fail(productID string, err error) error {
	e := &SagaError{Saga: "order", State: r.state, UserID: r.userID, OrderID: r.orderID, ProductID: productID, Err: err}
	r.state = StateAborted
	return e
}

// abort releases the applied reservations newest first, puts the cart back
// and builds the error. Every release is attempted even if one fails.
func (r *orderRun) abort(ctx context.Context, productID string, cause error) error {
	cctx, cancel := compensationContext(ctx, r.s.CompensationTimeout)
	defer cancel()

	var failed []error
	for i := len(r.applied) - 1; i >= 0; i-- {
		res := r.applied[i]
		key := releaseKey(r.orderID, res.productID)
		if _, err := r.s.Stock.AdjustStock(cctx, res.productID, res.qty, key); err != nil {
			slog.ErrorContext(cctx, "stock release failed, manual reconciliation required",
				"order_id", r.orderID, "product_id", res.productID, "delta", res.qty, "idempotency_key", key, "err", err)
			r.s.events().emit(cctx, TopicCompensationFailed, EventCompensationFailed, r.orderID, CompensationFailedPayload{
				OrderID: r.orderID, UserID: r.userID, ProductID: res.productID,
				Delta: res.qty, IdempotencyKey: key, Reason: err.Error(),
			})
			failed = append(failed, fmt.Errorf("release %s: %w", res.productID, err))
		}
	}
	r.applied = nil
	r.restoreCart(cctx)

	if len(failed) > 0 {
		return r.fail(productID, errors.Join(append([]error{ErrCompensationFailure, cause}, failed...)...))
	}
	return r.fail(productID, cause)
}

// reportUnknownReservation flags a reservation whose outcome the caller could
// not observe. Blindly releasing it could create stock that was never taken,
// so it is left for reconciliation against the reserve key.
func (r *orderRun) reportUnknownReservation(ctx context.Context, it CartItem, err error) {
	key := reserveKey(r.orderID, it.ProductID)
	slog.ErrorContext(ctx, "stock reservation outcome unknown",
		"order_id", r.orderID, "product_id", it.ProductID, "idempotency_key", key, "err", err)
	r.s.events().emit(ctx, TopicCompensationFailed, EventCompensationFailed, r.orderID, CompensationFailedPayload{
		OrderID: r.orderID, UserID: r.userID, ProductID: it.ProductID,
		Delta: it.Quantity, IdempotencyKey: releaseKey(r.orderID, it.ProductID),
		Reason: "reservation outcome unknown, check " + key + ": " + err.Error(),
	})
}

func (r *orderRun) restoreCart(ctx context.Context) {
	if !r.claimed {
		return
	}
	if err := r.s.Carts.Restore(ctx, r.userID, r.orderID); err != nil {
		slog.WarnContext(ctx, "restore cart after aborted order", "user_id", r.userID, "order_id", r.orderID, "err", err)
	}
	r.claimed = false
}

// compensationContext keeps compensation running after the caller gave up.
func compensationContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultCompensationTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// gatewayCause keeps known gateway failures and treats anything else as the
// downstream being unavailable.
func gatewayCause(err error) error {
	switch {
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrProductNotFound), errors.Is(err, ErrDownstreamUnavailable):
		return err
	default:
		return errors.Join(ErrDownstreamUnavailable, err)
	}
}
