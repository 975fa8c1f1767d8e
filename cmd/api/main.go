package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-cart-orders.git/internal/config"
	"github.com/ariefcatur/go-cart-orders.git/internal/httpx"
	"github.com/ariefcatur/go-cart-orders.git/internal/inventory"
	kafkax "github.com/ariefcatur/go-cart-orders.git/internal/kafka"
	"github.com/ariefcatur/go-cart-orders.git/internal/obs"
	"github.com/ariefcatur/go-cart-orders.git/internal/orders"
	"github.com/ariefcatur/go-cart-orders.git/internal/postgres"
	"github.com/ariefcatur/go-cart-orders.git/internal/redisx"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(obs.NewLogger(cfg.ServiceName, cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		slog.Error("order-api exit", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db, postgres.SchemaOrders); err != nil {
		return err
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer, one for all order topics
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(context.Background())

	svc := &orders.Service{
		Carts:               &redisx.CartStore{Redis: rdb, TTL: cfg.CartTTL},
		Orders:              &orders.Repo{DB: db},
		Stock:               inventory.NewClient(cfg.InventoryURL, cfg.StockTimeout),
		Events:              prod,
		Producer:            cfg.ServiceName,
		CompensationTimeout: cfg.CompensationTimeout,
	}
	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Service: svc}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		prod.Close() // flush buffered events, then close the writer
		prod.WaitClosed()
		return err
	})
	return g.Wait()
}
