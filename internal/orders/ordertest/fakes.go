// Package ordertest provides in-memory implementations of the orders ports
// for tests. They honour the same contracts as the Redis, Postgres and HTTP
// implementations, including idempotency keys and conditional updates.
package ordertest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ariefcatur/go-cart-orders.git/internal/orders"
	"github.com/shopspring/decimal"
)

// Adjustment is one AdjustStock call as seen by the Stock spy.
type Adjustment struct {
	ProductID      string
	Delta          int
	IdempotencyKey string
	Applied        bool
}

// Stock is a spy StockGateway backed by a product map.
type Stock struct {
	mu       sync.Mutex
	products map[string]orders.Product
	seen     map[string]bool
	calls    []Adjustment
	gets     int

	// FailAdjust, when set, is consulted before every adjustment; a non-nil
	// return fails the call without touching stock.
	FailAdjust func(productID string, delta int) error
	// FailGet, when set, fails GetProduct the same way.
	FailGet func(productID string) error
}

func NewStock(products ...orders.Product) *Stock {
	s := &Stock{products: map[string]orders.Product{}, seen: map[string]bool{}}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

// Product is a convenience constructor with an integer price.
func Product(id string, price int64, stock int) orders.Product {
	return orders.Product{ID: id, Name: id, Price: decimal.NewFromInt(price), Stock: stock}
}

func (s *Stock) GetProduct(_ context.Context, productID string) (orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.FailGet != nil {
		if err := s.FailGet(productID); err != nil {
			return orders.Product{}, err
		}
	}
	p, ok := s.products[productID]
	if !ok {
		return orders.Product{}, fmt.Errorf("product %s: %w", productID, orders.ErrProductNotFound)
	}
	return p, nil
}

func (s *Stock) AdjustStock(_ context.Context, productID string, delta int, key string) (orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := Adjustment{ProductID: productID, Delta: delta, IdempotencyKey: key}
	defer func() { s.calls = append(s.calls, call) }()

	if s.FailAdjust != nil {
		if err := s.FailAdjust(productID, delta); err != nil {
			return orders.Product{}, err
		}
	}
	p, ok := s.products[productID]
	if !ok {
		return orders.Product{}, fmt.Errorf("product %s: %w", productID, orders.ErrProductNotFound)
	}
	if key != "" && s.seen[key] {
		return p, nil
	}
	if p.Stock+delta < 0 {
		return orders.Product{}, fmt.Errorf("product %s: %w", productID, orders.ErrInsufficientStock)
	}
	p.Stock += delta
	s.products[productID] = p
	if key != "" {
		s.seen[key] = true
	}
	call.Applied = true
	return p, nil
}

// StockOf returns the current stock of productID (-1 if unknown).
func (s *Stock) StockOf(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return -1
	}
	return p.Stock
}

// Calls returns every AdjustStock call in order, failed ones included.
func (s *Stock) Calls() []Adjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Adjustment(nil), s.calls...)
}

// CallsFor filters Calls by product.
func (s *Stock) CallsFor(productID string) []Adjustment {
	var out []Adjustment
	for _, c := range s.Calls() {
		if c.ProductID == productID {
			out = append(out, c)
		}
	}
	return out
}

func (s *Stock) Gets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

// Carts is an in-memory CartStore. Expiry is not modelled.
type Carts struct {
	mu      sync.Mutex
	carts   map[string]orders.Cart
	claimed map[string]orders.Cart

	FailUpsert  error
	FailDiscard error
	FailClaim   error
}

func NewCarts() *Carts {
	return &Carts{carts: map[string]orders.Cart{}, claimed: map[string]orders.Cart{}}
}

func (c *Carts) Get(_ context.Context, userID string) (*orders.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cart, ok := c.carts[userID]
	if !ok {
		return nil, nil
	}
	return cloneCart(cart), nil
}

func (c *Carts) Upsert(_ context.Context, cart *orders.Cart) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailUpsert != nil {
		return c.FailUpsert
	}
	c.carts[cart.UserID] = *cloneCart(*cart)
	return nil
}

func (c *Carts) Delete(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.carts, userID)
	return nil
}

func (c *Carts) Claim(_ context.Context, userID, token string) (*orders.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailClaim != nil {
		return nil, c.FailClaim
	}
	cart, ok := c.carts[userID]
	if !ok {
		return nil, nil
	}
	delete(c.carts, userID)
	c.claimed[claimKey(userID, token)] = cart
	return cloneCart(cart), nil
}

func (c *Carts) Restore(_ context.Context, userID, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := claimKey(userID, token)
	cart, ok := c.claimed[k]
	if !ok {
		return nil
	}
	delete(c.claimed, k)
	if _, exists := c.carts[userID]; !exists {
		c.carts[userID] = cart
	}
	return nil
}

func (c *Carts) Discard(_ context.Context, userID, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailDiscard != nil {
		return c.FailDiscard
	}
	delete(c.claimed, claimKey(userID, token))
	return nil
}

// Claimed reports how many carts are parked in checkout slots.
func (c *Carts) Claimed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.claimed)
}

func claimKey(userID, token string) string { return userID + "/" + token }

func cloneCart(c orders.Cart) *orders.Cart {
	c.Items = append([]orders.CartItem{}, c.Items...)
	return &c
}

// Orders is an in-memory OrderRepository.
type Orders struct {
	mu     sync.Mutex
	orders map[string]orders.Order
	seq    map[string]int

	FailCreate error
	FailUpdate error
}

func NewOrders() *Orders {
	return &Orders{orders: map[string]orders.Order{}, seq: map[string]int{}}
}

func (r *Orders) Create(_ context.Context, o *orders.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailCreate != nil {
		return r.FailCreate
	}
	if _, ok := r.orders[o.ID]; ok {
		return errors.New("duplicate order id")
	}
	r.orders[o.ID] = cloneOrder(*o)
	r.seq[o.ID] = len(r.seq)
	return nil
}

func (r *Orders) Get(_ context.Context, userID, orderID string) (*orders.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, fmt.Errorf("order %s: %w", orderID, orders.ErrOrderNotFound)
	}
	out := cloneOrder(o)
	return &out, nil
}

func (r *Orders) ListByUser(_ context.Context, userID string) ([]orders.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []orders.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.seq[out[i].ID] > r.seq[out[j].ID] })
	return out, nil
}

func (r *Orders) UpdateStatus(_ context.Context, orderID string, from, to orders.Status) (*orders.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUpdate != nil {
		return nil, r.FailUpdate
	}
	o, ok := r.orders[orderID]
	if !ok || o.Status != from {
		return nil, fmt.Errorf("order %s not %s: %w", orderID, from, orders.ErrStatusConflict)
	}
	o.Status = to
	r.orders[orderID] = o
	out := cloneOrder(o)
	return &out, nil
}

// Count returns the number of stored orders.
func (r *Orders) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

// SetStatus overwrites a stored order's status, bypassing the
// conditional update, to simulate a concurrent writer.
func (r *Orders) SetStatus(orderID string, st orders.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[orderID]
	o.Status = st
	r.orders[orderID] = o
}

func cloneOrder(o orders.Order) orders.Order {
	o.Items = append([]orders.OrderItem{}, o.Items...)
	return o
}

// Publisher records published envelopes.
type Publisher struct {
	mu     sync.Mutex
	events []Published
}

type Published struct {
	Topic    string
	Envelope orders.Envelope
}

func (p *Publisher) PublishEnvelope(_ context.Context, topic string, env orders.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Published{Topic: topic, Envelope: env})
	return nil
}

func (p *Publisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Topic)
	}
	return out
}

func (p *Publisher) Events() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Published(nil), p.events...)
}
