package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-cart-orders.git/internal/orders"
)

type errorResp struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

var kindStatus = map[string]int{
	"EMPTY_CART":             http.StatusUnprocessableEntity,
	"INSUFFICIENT_STOCK":     http.StatusConflict,
	"PRODUCT_NOT_FOUND":      http.StatusNotFound,
	"CART_NOT_FOUND":         http.StatusNotFound,
	"ORDER_NOT_FOUND":        http.StatusNotFound,
	"ALREADY_CANCELLED":      http.StatusConflict,
	"INVALID_QUANTITY":       http.StatusBadRequest,
	"DOWNSTREAM_UNAVAILABLE": http.StatusServiceUnavailable,
	"PERSISTENCE_FAILURE":    http.StatusInternalServerError,
	"COMPENSATION_FAILURE":   http.StatusInternalServerError,
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := orders.Kind(err)
	code, ok := kindStatus[kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	if code >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "kind", kind, "err", err)
	}
	writeJSON(w, code, errorResp{Error: kind, Details: err.Error()})
}

func badRequest(w http.ResponseWriter, details string) {
	writeJSON(w, http.StatusBadRequest, errorResp{Error: "BAD_REQUEST", Details: details})
}
