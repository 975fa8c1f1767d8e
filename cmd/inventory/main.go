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
	"github.com/ariefcatur/go-cart-orders.git/internal/obs"
	"github.com/ariefcatur/go-cart-orders.git/internal/postgres"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(obs.NewLogger(cfg.ServiceName+"-inventory", cfg.LogLevel))
	if err := cfg.Validate(); err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		slog.Error("inventory exit", "err", err)
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
	if err := postgres.Migrate(ctx, db, postgres.SchemaInventory); err != nil {
		return err
	}

	router := httpx.NewRouter()
	(&httpx.StockHandler{Store: &inventory.Store{DB: db}}).Register(router)
	srv := &http.Server{Addr: cfg.InventoryHTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("inventory HTTP listening", "addr", cfg.InventoryHTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
