package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/l2p-cooperative/deposit-gateway/internal/adapters/events"
	"github.com/l2p-cooperative/deposit-gateway/internal/adapters/handler"
	"github.com/l2p-cooperative/deposit-gateway/internal/adapters/handler/middleware"
	"github.com/l2p-cooperative/deposit-gateway/internal/adapters/payment"
	"github.com/l2p-cooperative/deposit-gateway/internal/adapters/repo"
	"github.com/l2p-cooperative/deposit-gateway/internal/api"
	"github.com/l2p-cooperative/deposit-gateway/internal/config"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/ports"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/service"
	"github.com/l2p-cooperative/deposit-gateway/internal/metrics"
	"github.com/l2p-cooperative/deposit-gateway/internal/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting deposit gateway",
		"env", cfg.Primary.Env,
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	if cfg.Worker.StaleAfter <= cfg.Poller.Timeout {
		logger.Warn("worker stale_after should exceed poller timeout, the reconciler may race live dialogs",
			"stale_after", cfg.Worker.StaleAfter,
			"poll_timeout", cfg.Poller.Timeout)
	}

	metrics.MustRegister()

	ctx := context.Background()
	db, err := repo.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	store := repo.NewTicketStore(db)

	var notifier ports.DepositNotifier
	if cfg.Events.NatsURL != "" {
		natsNotifier, err := events.NewNatsNotifier(cfg.Events.NatsURL, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			logger.Error("failed to connect to nats", "error", err)
			os.Exit(1)
		}
		defer natsNotifier.Close()
		notifier = natsNotifier
	} else {
		logger.Warn("no nats url configured, settlement events are only logged")
		notifier = events.NewLogNotifier(cfg.Events.SubjectPrefix, logger)
	}

	breaker := payment.NewStatusBreaker(cfg.Breaker, logger)
	paymentsFor := payment.NewFactory(cfg.Payment, cfg.Retry, breaker)

	dialogs := service.NewDialogManager(paymentsFor, store, notifier, service.DialogConfig{
		MinAmount:    decimal.NewFromInt(cfg.Poller.MinAmount),
		PollInterval: cfg.Poller.Interval,
		PollTimeout:  cfg.Poller.Timeout,
	}, logger)

	doc, err := api.Load(ctx)
	if err != nil {
		logger.Error("failed to load api contract", "error", err)
		os.Exit(1)
	}
	validation, err := middleware.Validation(doc, logger)
	if err != nil {
		logger.Error("failed to build request validation", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	api.RegisterDocsRoutes(mux)
	handler.NewDialogHandler(dialogs, logger).RegisterRoutes(mux)
	handler.RegisterHealthRoutes(mux, logger, map[string]handler.HealthCheck{
		"database": db.Pool.Ping,
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr: "0.0.0.0:" + cfg.Server.Port,
		Handler: middleware.Chain(mux,
			middleware.Recovery(logger),
			middleware.Logging(logger),
			validation,
			middleware.Timeout(cfg.Server.RequestTimeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	reconciler := worker.NewReconciler(
		store,
		paymentsFor(payment.StaticToken(cfg.Payment.ServiceToken)),
		notifier,
		cfg.Worker,
		logger,
	)
	go reconciler.Start(workerCtx)
	go dialogs.RunJanitor(workerCtx, cfg.Dialogs.JanitorInterval, cfg.Dialogs.MaxIdle)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Dialogs first: open event streams end when their dialog closes, which
	// lets Shutdown drain instead of waiting on them.
	dialogs.CloseAll()
	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
