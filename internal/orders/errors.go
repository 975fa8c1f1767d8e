package orders

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart             = errors.New("cart is empty")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrOrderNotFound         = errors.New("order not found")
	ErrAlreadyCancelled      = errors.New("order already cancelled")
	ErrDownstreamUnavailable = errors.New("downstream unavailable")
	ErrPersistenceFailure    = errors.New("persistence failure")
	ErrCompensationFailure   = errors.New("compensation failure")

	ErrProductNotFound = errors.New("product not found")
	ErrCartNotFound    = errors.New("cart not found")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrStatusConflict  = errors.New("order status changed concurrently")
)

// SagaError carries where a saga stopped and which entities were involved.
// Err always wraps one of the sentinels above.
type SagaError struct {
	Saga      string
	State     State
	UserID    string
	OrderID   string
	ProductID string
	Err       error
}

func (e *SagaError) Error() string {
	msg := fmt.Sprintf("%s saga aborted in %s", e.Saga, e.State)
	if e.OrderID != "" {
		msg += " order=" + e.OrderID
	}
	if e.ProductID != "" {
		msg += " product=" + e.ProductID
	}
	return msg + ": " + e.Err.Error()
}

func (e *SagaError) Unwrap() error { return e.Err }

// Kind names the taxonomy entry of err for API responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCompensationFailure):
		return "COMPENSATION_FAILURE"
	case errors.Is(err, ErrEmptyCart):
		return "EMPTY_CART"
	case errors.Is(err, ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, ErrOrderNotFound):
		return "ORDER_NOT_FOUND"
	case errors.Is(err, ErrAlreadyCancelled):
		return "ALREADY_CANCELLED"
	case errors.Is(err, ErrDownstreamUnavailable):
		return "DOWNSTREAM_UNAVAILABLE"
	case errors.Is(err, ErrPersistenceFailure):
		return "PERSISTENCE_FAILURE"
	case errors.Is(err, ErrProductNotFound):
		return "PRODUCT_NOT_FOUND"
	case errors.Is(err, ErrCartNotFound):
		return "CART_NOT_FOUND"
	case errors.Is(err, ErrInvalidQuantity):
		return "INVALID_QUANTITY"
	default:
		return "INTERNAL"
	}
}
