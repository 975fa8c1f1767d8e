package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ariefcatur/go-cart-orders.git/internal/orders"
)

// HeaderIdempotencyKey carries the key of a stock adjustment.
const HeaderIdempotencyKey = "Idempotency-Key"

// Client is the orders side of the stock authority. It never retries.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

var _ orders.StockGateway = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: timeout}}
}

type adjustReq struct {
	Delta int `json:"delta"`
}

func (c *Client) GetProduct(ctx context.Context, productID string) (orders.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.productURL(productID), nil)
	if err != nil {
		return orders.Product{}, err
	}
	return c.do(req, productID)
}

func (c *Client) AdjustStock(ctx context.Context, productID string, delta int, idempotencyKey string) (orders.Product, error) {
	body, err := json.Marshal(adjustReq{Delta: delta})
	if err != nil {
		return orders.Product{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.productURL(productID)+"/stock", bytes.NewReader(body))
	if err != nil {
		return orders.Product{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(HeaderIdempotencyKey, idempotencyKey)
	}
	return c.do(req, productID)
}

func (c *Client) productURL(productID string) string {
	return c.BaseURL + "/products/" + url.PathEscape(productID)
}

func (c *Client) do(req *http.Request, productID string) (orders.Product, error) {
	if id := orders.TraceID(req.Context()); id != "" {
		req.Header.Set("X-Request-Id", id)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		// timeouts and refused connections: the outcome is unknown
		return orders.Product{}, errors.Join(orders.ErrDownstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var p orders.Product
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return orders.Product{}, errors.Join(orders.ErrDownstreamUnavailable, fmt.Errorf("decode product %s: %w", productID, err))
		}
		return p, nil
	case resp.StatusCode == http.StatusNotFound:
		return orders.Product{}, fmt.Errorf("product %s: %w", productID, orders.ErrProductNotFound)
	case resp.StatusCode == http.StatusConflict:
		return orders.Product{}, fmt.Errorf("product %s: %w", productID, orders.ErrInsufficientStock)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return orders.Product{}, fmt.Errorf("%w: inventory %s %s: %d %s",
			orders.ErrDownstreamUnavailable, req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(msg))
	}
}
