package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/twopc/savings/backend/internal/config"
	"github.com/twopc/savings/backend/internal/ledger"
	"github.com/twopc/savings/backend/internal/logging"
	"github.com/twopc/savings/backend/internal/notify"
	"github.com/twopc/savings/backend/internal/payments"
	"github.com/twopc/savings/backend/internal/server"
	"github.com/twopc/savings/backend/internal/store"
	"github.com/twopc/savings/backend/internal/withdrawal"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	st, err := buildStore(ctx, logger, cfg.Store)
	if err != nil {
		logger.Error("failed to create store", "error", err)
		os.Exit(1)
	}

	notifyLogger := logging.Component(logger, "notify")
	dispatcher := notify.NewDispatcher(notify.LogNotifier{Logger: notifyLogger}, notifyLogger, notify.DispatcherConfig{
		QueueSize:     cfg.Notify.QueueSize,
		MaxAttempts:   cfg.Notify.MaxAttempts,
		RetryInterval: cfg.Notify.RetryInterval,
	})
	dispatcher.Start()

	ledgerSvc := ledger.New(st, logging.Component(logger, "ledger"))
	tracker := payments.NewTracker(st, nil, dispatcher, logging.Component(logger, "payments"))
	authorizer := withdrawal.New(ledgerSvc, st, dispatcher, logging.Component(logger, "withdrawal"))

	httpLogger := logging.Component(logger, "http")
	apiHandlers := server.NewAPIHandlers(httpLogger, st, ledgerSvc, tracker, authorizer)

	router := server.NewRouter(httpLogger, server.RouterDependencies{
		Health:           server.StoreHealthService{Store: st},
		API:              apiHandlers,
		AllowedOrigins:   server.SplitOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	// The server drains the dispatcher before the store closes underneath it.
	srv := server.New(httpLogger, cfg.HTTP, router, dispatcher.Close, st.Close)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildStore(ctx context.Context, logger *slog.Logger, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		logger.Info("using postgres store")
		return pg, nil
	case "memory":
		logger.Warn("using in-memory store, data will not survive restarts")
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
