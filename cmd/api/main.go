package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/ledgerops/internal/api"
	"github.com/punchamoorthee/ledgerops/internal/config"
	"github.com/punchamoorthee/ledgerops/internal/idempotency"
	"github.com/punchamoorthee/ledgerops/internal/service"
	"github.com/punchamoorthee/ledgerops/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx := context.Background()

	var pool *pgxpool.Pool
	if cfg.DBSource != "" && (cfg.StoreBackend == config.BackendPostgres || cfg.IdempotencyBackend == config.BackendPostgres) {
		pg, err := store.NewPostgres(ctx, cfg.DBSource)
		if err != nil {
			logger.Error("unable to connect to database", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		pool = pg.Pool()
		if err := store.Migrate(ctx, pool); err != nil {
			logger.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	var ledgerStore store.Store = store.NewMemory()
	if cfg.StoreBackend == config.BackendPostgres {
		ledgerStore = store.NewPostgresFromPool(pool)
	}

	var cache idempotency.Cache
	switch cfg.IdempotencyBackend {
	case config.BackendRedis:
		client, err := idempotency.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Error("unable to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer client.Close()
		cache = idempotency.NewRedis(client, cfg.IdempotencyTTL)
	case config.BackendPostgres:
		cache = idempotency.NewPostgres(pool)
	default:
		cache = idempotency.NewMemory()
	}

	policy := service.RetryPolicy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: cfg.BackoffInitial,
		MaxInterval:     cfg.BackoffMax,
	}
	handler := api.NewHandler(
		service.NewLedgerService(ledgerStore, cache, policy, logger),
		service.NewHistoryService(ledgerStore, logger),
		service.NewAccountService(ledgerStore, logger),
		logger,
	)
	router := api.NewRouter(handler, api.RouterOptions{JWTSecret: cfg.JWTSecret, Logger: logger})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.Env,
			"store", cfg.StoreBackend, "idempotency", cfg.IdempotencyBackend, "auth", cfg.JWTSecret != "")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server stopped")
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Env, "development") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
