package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr            string
	InventoryHTTPAddr   string
	PostgresDSN         string
	RedisAddr           string
	KafkaBrokers        []string
	ServiceName         string
	InventoryURL        string
	StockTimeout        time.Duration
	CompensationTimeout time.Duration
	CartTTL             time.Duration
	ShutdownTimeout     time.Duration
	LogLevel            string
	ReconcilerGroup     string
	ReconcilerWorkers   int
}

var ErrMissingDSN = errors.New("POSTGRES_DSN is required")

// Load reads the environment. Credentials have no defaults; call Validate
// before connecting to anything.
func Load() Config {
	return Config{
		HTTPAddr:            getenv("HTTP_ADDR", ":8081"),
		InventoryHTTPAddr:   getenv("INVENTORY_HTTP_ADDR", ":8082"),
		PostgresDSN:         getenv("POSTGRES_DSN", ""),
		RedisAddr:           getenv("REDIS_ADDR", "redis:6379"),
		KafkaBrokers:        splitCSV(getenv("KAFKA_BROKERS", "kafka:9092")),
		ServiceName:         getenv("SERVICE_NAME", "order-api"),
		InventoryURL:        strings.TrimRight(getenv("INVENTORY_URL", "http://inventory:8082"), "/"),
		StockTimeout:        durenv("STOCK_TIMEOUT", 3*time.Second),
		CompensationTimeout: durenv("COMPENSATION_TIMEOUT", 10*time.Second),
		CartTTL:             durenv("CART_TTL", 10*time.Minute),
		ShutdownTimeout:     durenv("SHUTDOWN_TIMEOUT", 5*time.Second),
		LogLevel:            getenv("LOG_LEVEL", "info"),
		ReconcilerGroup:     getenv("RECONCILER_GROUP", "reconciler"),
		ReconcilerWorkers:   atoienv("RECONCILER_WORKERS", 4),
	}
}

func (c Config) Validate() error {
	if c.PostgresDSN == "" {
		return ErrMissingDSN
	}
	if c.StockTimeout <= 0 {
		return errors.New("STOCK_TIMEOUT must be positive")
	}
	if c.CartTTL <= 0 {
		return errors.New("CART_TTL must be positive")
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoienv(k string, def int) int {
	v := getenv(k, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// durenv accepts Go durations ("750ms", "10m"); a bare integer is read as seconds.
func durenv(k string, def time.Duration) time.Duration {
	v := getenv(k, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
