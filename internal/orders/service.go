package orders

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Service is the command surface of the orders side. Cart edits go straight
// to the stores; order placement and cancellation run the sagas.
type Service struct {
	Carts  CartStore
	Orders OrderRepository
	Stock  StockGateway
	Events EventPublisher

	Producer            string
	CompensationTimeout time.Duration
	Now                 func() time.Time
}

func (s *Service) CreateOrder(ctx context.Context, userID string) (*Order, error) {
	saga := &OrderSaga{
		Carts:               s.Carts,
		Orders:              s.Orders,
		Stock:               s.Stock,
		Events:              s.Events,
		Producer:            s.Producer,
		CompensationTimeout: s.CompensationTimeout,
		Now:                 s.Now,
	}
	return saga.Run(ctx, userID)
}

func (s *Service) CancelOrder(ctx context.Context, userID, orderID string) (*Order, error) {
	saga := &CancellationSaga{Orders: s.Orders, Stock: s.Stock, Events: s.Events, Producer: s.Producer}
	return saga.Run(ctx, userID, orderID)
}

// AddItemToCart checks availability against the product's current stock
// (no reservation happens here), merges the line and persists the cart.
func (s *Service) AddItemToCart(ctx context.Context, userID string, item ItemInput) (*Cart, error) {
	if item.ProductID == "" {
		return nil, ErrProductNotFound
	}
	if item.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.Stock.GetProduct(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}

	cart, err := s.Carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Join(ErrPersistenceFailure, err)
	}
	if cart == nil {
		cart = NewCart(userID)
	}

	if want := quantityOf(cart, item.ProductID) + item.Quantity; p.Stock < want {
		return nil, fmt.Errorf("product %s: requested %d, available %d: %w", item.ProductID, want, p.Stock, ErrInsufficientStock)
	}
	if err := AddOrMerge(cart, item, p.Price); err != nil {
		return nil, err
	}
	Recalculate(cart)
	cart.UpdatedAt = s.now()

	if err := s.Carts.Upsert(ctx, cart); err != nil {
		return nil, errors.Join(ErrPersistenceFailure, err)
	}
	return cart, nil
}

// RemoveItemFromCart is a no-op for products that are not in the cart.
func (s *Service) RemoveItemFromCart(ctx context.Context, userID, productID string) (*Cart, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !Remove(cart, productID) {
		return cart, nil
	}
	Recalculate(cart)
	cart.UpdatedAt = s.now()
	if err := s.Carts.Upsert(ctx, cart); err != nil {
		return nil, errors.Join(ErrPersistenceFailure, err)
	}
	return cart, nil
}

func (s *Service) GetCart(ctx context.Context, userID string) (*Cart, error) {
	cart, err := s.Carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Join(ErrPersistenceFailure, err)
	}
	if cart == nil {
		return nil, ErrCartNotFound
	}
	return cart, nil
}

func (s *Service) DeleteCart(ctx context.Context, userID string) error {
	if err := s.Carts.Delete(ctx, userID); err != nil {
		return errors.Join(ErrPersistenceFailure, err)
	}
	return nil
}

func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.Orders.Get(ctx, userID, orderID)
	if err != nil && !errors.Is(err, ErrOrderNotFound) {
		return nil, errors.Join(ErrPersistenceFailure, err)
	}
	return o, err
}

func (s *Service) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	out, err := s.Orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Join(ErrPersistenceFailure, err)
	}
	return out, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
