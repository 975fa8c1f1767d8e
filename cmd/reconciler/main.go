package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-cart-orders.git/internal/config"
	kafkax "github.com/ariefcatur/go-cart-orders.git/internal/kafka"
	"github.com/ariefcatur/go-cart-orders.git/internal/obs"
	"github.com/ariefcatur/go-cart-orders.git/internal/orders"
	"github.com/ariefcatur/go-cart-orders.git/internal/postgres"
	"github.com/ariefcatur/go-cart-orders.git/internal/reconcile"
	"github.com/ariefcatur/go-cart-orders.git/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(obs.NewLogger(cfg.ServiceName+"-reconciler", cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("reconciler exit", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db, postgres.SchemaOrders); err != nil {
		return err
	}

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &reconcile.Service{Redis: rdb, Store: &reconcile.Repo{DB: db}, Name: cfg.ReconcilerGroup}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ReconcilerGroup, orders.TopicCompensationFailed, cfg.ReconcilerWorkers)

	slog.Info("reconciler started", "group", cfg.ReconcilerGroup, "topic", orders.TopicCompensationFailed, "workers", cfg.ReconcilerWorkers)
	return cons.Start(ctx, svc.HandleCompensationFailed)
}
