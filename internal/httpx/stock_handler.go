package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ariefcatur/go-cart-orders.git/internal/inventory"
	"github.com/ariefcatur/go-cart-orders.git/internal/orders"
	"github.com/go-chi/chi/v5"
)

// StockStore is the authority side of stock, implemented by inventory.Store.
type StockStore interface {
	List(ctx context.Context) ([]orders.Product, error)
	Get(ctx context.Context, id string) (orders.Product, error)
	Adjust(ctx context.Context, id string, delta int, key string) (orders.Product, error)
}

type StockHandler struct {
	Store StockStore
}

type adjustReq struct {
	Delta int `json:"delta"`
}

func (h *StockHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Post("/products/{productID}/stock", h.adjustStock)
}

func (h *StockHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Store.List(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *StockHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.Get(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *StockHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.Delta == 0 {
		badRequest(w, "delta must be non-zero")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.Adjust(ctx, chi.URLParam(r, "productID"), req.Delta, r.Header.Get(inventory.HeaderIdempotencyKey))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
