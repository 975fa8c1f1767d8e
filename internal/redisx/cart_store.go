package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-cart-orders.git/internal/orders"
	"github.com/redis/go-redis/v9"
)

// CartStore keeps one JSON cart per user with a sliding TTL.
type CartStore struct {
	Redis *redis.Client
	TTL   time.Duration
}

var _ orders.CartStore = (*CartStore)(nil)

func (s *CartStore) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return TTLCart
}

func (s *CartStore) Get(ctx context.Context, userID string) (*orders.Cart, error) {
	return s.load(ctx, fmt.Sprintf(KeyCart, userID))
}

// Upsert overwrites the cart and refreshes its expiry. Last write wins.
func (s *CartStore) Upsert(ctx context.Context, c *orders.Cart) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, fmt.Sprintf(KeyCart, c.UserID), b, s.ttl()).Err()
}

func (s *CartStore) Delete(ctx context.Context, userID string) error {
	return s.Redis.Del(ctx, fmt.Sprintf(KeyCart, userID)).Err()
}

// claimScript moves KEYS[1] to KEYS[2] with a fresh TTL of ARGV[1] ms.
// Returns 0 when there is nothing to move.
const claimScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
redis.call('RENAME', KEYS[1], KEYS[2])
redis.call('PEXPIRE', KEYS[2], ARGV[1])
return 1`

// restoreScript moves KEYS[1] back to KEYS[2] unless KEYS[2] already
// exists, in which case KEYS[1] is dropped (-1).
const restoreScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
if redis.call('EXISTS', KEYS[2]) == 1 then
  redis.call('DEL', KEYS[1])
  return -1
end
redis.call('RENAME', KEYS[1], KEYS[2])
redis.call('PEXPIRE', KEYS[2], ARGV[1])
return 1`

// Claim moves the user's cart into a checkout slot. The script runs
// atomically, so of two concurrent claims only one finds the cart.
func (s *CartStore) Claim(ctx context.Context, userID, token string) (*orders.Cart, error) {
	src := fmt.Sprintf(KeyCart, userID)
	dst := fmt.Sprintf(KeyCartCheckout, userID, token)
	moved, err := s.Redis.Eval(ctx, claimScript, []string{src, dst}, s.ttl().Milliseconds()).Int()
	if err != nil {
		return nil, err
	}
	if moved == 0 {
		return nil, nil
	}
	return s.load(ctx, dst)
}

// Restore puts a claimed cart back. If the user already started a new cart
// the claimed one is dropped.
func (s *CartStore) Restore(ctx context.Context, userID, token string) error {
	src := fmt.Sprintf(KeyCartCheckout, userID, token)
	dst := fmt.Sprintf(KeyCart, userID)
	return s.Redis.Eval(ctx, restoreScript, []string{src, dst}, s.ttl().Milliseconds()).Err()
}

func (s *CartStore) Discard(ctx context.Context, userID, token string) error {
	return s.Redis.Del(ctx, fmt.Sprintf(KeyCartCheckout, userID, token)).Err()
}

func (s *CartStore) load(ctx context.Context, key string) (*orders.Cart, error) {
	b, err := s.Redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var c orders.Cart
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if c.Items == nil {
		c.Items = []orders.CartItem{}
	}
	return &c, nil
}
