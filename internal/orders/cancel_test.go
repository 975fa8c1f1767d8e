package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ariefcatur/go-cart-orders.git/internal/orders"
	"github.com/ariefcatur/go-cart-orders.git/internal/orders/ordertest"
)

func placeOrder(t *testing.T, f *fixture, userID, productID string, qty int) *orders.Order {
	t.Helper()
	f.add(t, userID, productID, qty)
	o, err := f.svc.CreateOrder(context.Background(), userID)
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return o
}

func TestCancelOrderRestoresStock(t *testing.T) {
	f := newFixture(ordertest.Product("p1", 10, 10))
	o := placeOrder(t, f, "u1", "p1", 2)
	if f.stock.StockOf("p1") != 8 {
		t.Fatalf("stock after order = %d", f.stock.StockOf("p1"))
	}

	got, err := f.svc.CancelOrder(context.Background(), "u1", o.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != orders.StatusCancelled {
		t.Fatalf("status = %s", got.Status)
	}
	if f.stock.StockOf("p1") != 10 {
		t.Fatalf("stock after cancel = %d, want 10", f.stock.StockOf("p1"))
	}
	before := len(f.stock.Calls())

	_, err = f.svc.CancelOrder(context.Background(), "u1", o.ID)
	if !errors.Is(err, orders.ErrAlreadyCancelled) {
		t.Fatalf("second cancel: expected ErrAlreadyCancelled, got %v", err)
	}
	if after := len(f.stock.Calls()); after != before {
		t.Fatalf("second cancel adjusted stock: %d -> %d calls", before, after)
	}
	topics := f.events.Topics()
	if topics[len(topics)-1] != orders.TopicOrderCancelled {
		t.Fatalf("events: %v", topics)
	}
}

func TestCancelOrderNotFound(t *testing.T) {
	f := newFixture(ordertest.Product("p1", 10, 10))
	o := placeOrder(t, f, "u1", "p1", 1)
	before := len(f.stock.Calls())

	for _, tc := range []struct{ user, order string }{
		{"u1", "missing"},
		{"someone-else", o.ID},
	} {
		_, err := f.svc.CancelOrder(context.Background(), tc.user, tc.order)
		if !errors.Is(err, orders.ErrOrderNotFound) {
			t.Fatalf("%s/%s: expected ErrOrderNotFound, got %v", tc.user, tc.order, err)
		}
		if got := sagaState(t, err); got != orders.StateLoading {
			t.Fatalf("aborted in %s", got)
		}
	}
	if after := len(f.stock.Calls()); after != before {
		t.Fatalf("stock adjusted for missing order")
	}
}

func TestCancelOrderRestoreFailureLeavesOrderUntouched(t *testing.T) {
	f := newFixture(ordertest.Product("p1", 10, 10), ordertest.Product("p2", 5, 10))
	f.add(t, "u1", "p1", 2)
	f.add(t, "u1", "p2", 1)
	o, err := f.svc.CreateOrder(context.Background(), "u1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	f.stock.FailAdjust = func(pid string, delta int) error {
		if pid == "p2" {
			return orders.ErrDownstreamUnavailable
		}
		return nil
	}
	_, err = f.svc.CancelOrder(context.Background(), "u1", o.ID)
	if !errors.Is(err, orders.ErrDownstreamUnavailable) {
		t.Fatalf("expected ErrDownstreamUnavailable, got %v", err)
	}
	if got := sagaState(t, err); got != orders.StateRestoring {
		t.Fatalf("aborted in %s", got)
	}
	stored, _ := f.orders.Get(context.Background(), "u1", o.ID)
	if stored.Status != orders.StatusConfirmed {
		t.Fatalf("status changed on failed cancel: %s", stored.Status)
	}

	// retry once the service is back: p1 must not be restored twice
	f.stock.FailAdjust = nil
	if _, err := f.svc.CancelOrder(context.Background(), "u1", o.ID); err != nil {
		t.Fatalf("retry cancel: %v", err)
	}
	if f.stock.StockOf("p1") != 10 || f.stock.StockOf("p2") != 10 {
		t.Fatalf("stock after retry: p1=%d p2=%d", f.stock.StockOf("p1"), f.stock.StockOf("p2"))
	}
}

func TestCancelOrderNotFoundProductReportsUnavailable(t *testing.T) {
	f := newFixture(ordertest.Product("p1", 10, 10))
	o := placeOrder(t, f, "u1", "p1", 1)
	f.stock.FailAdjust = func(string, int) error { return orders.ErrProductNotFound }

	_, err := f.svc.CancelOrder(context.Background(), "u1", o.ID)
	if !errors.Is(err, orders.ErrDownstreamUnavailable) || !errors.Is(err, orders.ErrProductNotFound) {
		t.Fatalf("expected unavailable with cause, got %v", err)
	}
	if orders.Kind(err) != "DOWNSTREAM_UNAVAILABLE" {
		t.Fatalf("kind = %s", orders.Kind(err))
	}
}

func TestCancelOrderLosesConditionalUpdate(t *testing.T) {
	f := newFixture(ordertest.Product("p1", 10, 10))
	o := placeOrder(t, f, "u1", "p1", 2)

	// another request flips the status while this one is restoring stock
	f.stock.FailAdjust = func(string, int) error {
		f.orders.SetStatus(o.ID, orders.StatusCancelled)
		return nil
	}
	_, err := f.svc.CancelOrder(context.Background(), "u1", o.ID)
	if !errors.Is(err, orders.ErrAlreadyCancelled) {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}
	if got := sagaState(t, err); got != orders.StateUpdating {
		t.Fatalf("aborted in %s", got)
	}
}

func TestCancelOrderConcurrent(t *testing.T) {
	f := newFixture(ordertest.Product("p1", 10, 10))
	o := placeOrder(t, f, "u1", "p1", 3)

	const n = 6
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, lost int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CancelOrder(context.Background(), "u1", o.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, orders.ErrAlreadyCancelled):
				lost++
			default:
				t.Errorf("unexpected: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 1 || lost != n-1 {
		t.Fatalf("ok=%d lost=%d", ok, lost)
	}
	if f.stock.StockOf("p1") != 10 {
		t.Fatalf("stock restored more than once: %d", f.stock.StockOf("p1"))
	}
}
