package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/plazos/internal/config"
	"github.com/MrJamesThe3rd/plazos/internal/database"
	"github.com/MrJamesThe3rd/plazos/internal/export"
	plazosHttp "github.com/MrJamesThe3rd/plazos/internal/http"
	"github.com/MrJamesThe3rd/plazos/internal/http/auth"
	buyersHandler "github.com/MrJamesThe3rd/plazos/internal/http/buyers"
	exportHandler "github.com/MrJamesThe3rd/plazos/internal/http/export"
	importHandler "github.com/MrJamesThe3rd/plazos/internal/http/importcsv"
	paymentsHandler "github.com/MrJamesThe3rd/plazos/internal/http/payments"
	salesHandler "github.com/MrJamesThe3rd/plazos/internal/http/sales"
	"github.com/MrJamesThe3rd/plazos/internal/idempotency"
	"github.com/MrJamesThe3rd/plazos/internal/importer"
	"github.com/MrJamesThe3rd/plazos/internal/party"
	"github.com/MrJamesThe3rd/plazos/internal/sale"
	saleStore "github.com/MrJamesThe3rd/plazos/internal/sale/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.App.LogLevel})))

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.ConnectionString(), cfg.Server.Timeout)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	cache, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	var (
		saleService   = sale.NewService(saleStore.New(db), sale.WithIdempotencyCache(cache))
		importService = importer.NewService(saleService)
		exportService = export.NewService(saleService, party.NewDirectory(db), cfg.Proofs.Token)
	)

	var (
		salesH    = salesHandler.NewHandler(saleService)
		buyersH   = buyersHandler.NewHandler(saleService)
		paymentsH = paymentsHandler.NewHandler(saleService)
		importH   = importHandler.NewHandler(importService)
		exportH   = exportHandler.NewHandler(exportService)
	)

	router := plazosHttp.New(plazosHttp.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Timeout:        cfg.Server.Timeout,
		Auth:           auth.New(cfg.Auth.JWTSecret),
	}, salesH, buyersH, paymentsH, importH, exportH)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("starting server", "name", cfg.App.Name, "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// newCache returns the Redis idempotency cache when configured and the
// in-process one otherwise.
func newCache(ctx context.Context, cfg *config.Config) (sale.IdempotencyCache, func(), error) {
	if cfg.Redis.Addr == "" {
		slog.Info("redis not configured, caching idempotency keys in memory")
		return idempotency.NewMemory(cfg.Idempotency.TTL), func() {}, nil
	}

	rc, err := idempotency.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Idempotency.TTL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return rc, func() {
		if err := rc.Close(); err != nil {
			slog.Error("failed to close redis", "error", err)
		}
	}, nil
}
