package redisx

import "time"

const (
	// Cart per user: cart:{user_id} -> JSON orders.Cart
	KeyCart = "cart:%s"

	// Cart parked by a running checkout: cart:{user_id}:checkout:{order_id}
	KeyCartCheckout = "cart:%s:checkout:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLCart  = 10 * time.Minute
	TTLDedup = 48 * time.Hour
)
