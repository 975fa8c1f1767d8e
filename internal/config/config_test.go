package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"HTTP_ADDR", "POSTGRES_DSN", "REDIS_ADDR", "KAFKA_BROKERS", "INVENTORY_URL",
		"STOCK_TIMEOUT", "COMPENSATION_TIMEOUT", "CART_TTL", "RECONCILER_WORKERS",
	} {
		t.Setenv(k, "")
	}
	c := Load()
	if c.HTTPAddr != ":8081" {
		t.Fatalf("HTTPAddr default: %q", c.HTTPAddr)
	}
	if c.PostgresDSN != "" {
		t.Fatalf("expected no default DSN, got %q", c.PostgresDSN)
	}
	if len(c.KafkaBrokers) != 1 || c.KafkaBrokers[0] != "kafka:9092" {
		t.Fatalf("KafkaBrokers default: %v", c.KafkaBrokers)
	}
	if c.StockTimeout != 3*time.Second {
		t.Fatalf("StockTimeout default: %v", c.StockTimeout)
	}
	if c.CartTTL != 10*time.Minute {
		t.Fatalf("CartTTL default: %v", c.CartTTL)
	}
	if c.ReconcilerWorkers != 4 {
		t.Fatalf("ReconcilerWorkers default: %d", c.ReconcilerWorkers)
	}
	if err := c.Validate(); !errors.Is(err, ErrMissingDSN) {
		t.Fatalf("expected ErrMissingDSN, got %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://app@db:5432/orders")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("INVENTORY_URL", "http://stock:9000/")
	t.Setenv("STOCK_TIMEOUT", "750ms")
	t.Setenv("CART_TTL", "30")
	t.Setenv("RECONCILER_WORKERS", "nope")
	c := Load()
	if len(c.KafkaBrokers) != 2 || c.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("KafkaBrokers env: %v", c.KafkaBrokers)
	}
	if c.InventoryURL != "http://stock:9000" {
		t.Fatalf("InventoryURL env: %q", c.InventoryURL)
	}
	if c.StockTimeout != 750*time.Millisecond {
		t.Fatalf("StockTimeout env: %v", c.StockTimeout)
	}
	if c.CartTTL != 30*time.Second {
		t.Fatalf("CartTTL env: %v", c.CartTTL)
	}
	if c.ReconcilerWorkers != 4 {
		t.Fatalf("invalid RECONCILER_WORKERS should fall back, got %d", c.ReconcilerWorkers)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
