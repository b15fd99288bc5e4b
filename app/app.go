// File: app/app.go
package app

import (
	"context"
	"errors"
	"go-ledger-api/config"
	"go-ledger-api/db"
	"go-ledger-api/handler"
	"go-ledger-api/logger"
	"go-ledger-api/metrics"
	prommetrics "go-ledger-api/metrics/prometheus"
	"go-ledger-api/repository"
	"go-ledger-api/router"
	"go-ledger-api/service"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App holds the wired ledger and its HTTP routes.
type App struct {
	Service *service.AccountingService
	Router  http.Handler
}

// New wires every layer. store is optional; without it the transfer endpoint
// does not honour Idempotency-Key. reg may be nil when metrics are disabled.
func New(cfg config.Config, store handler.IdempotencyStore, reg *prometheus.Registry) (*App, error) {
	var collector metrics.Collector = metrics.NoOpCollector{}
	opts := router.Options{}

	if cfg.Metrics.Enabled && reg != nil {
		pc := prommetrics.NewPrometheusCollector(cfg.Metrics.Namespace)
		if err := pc.Register(reg); err != nil {
			return nil, err
		}
		collector = pc
		opts.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	if store != nil {
		opts.Idempotency = handler.Idempotency(store, cfg.Idempotency.TTL, cfg.Idempotency.LockTimeout)
	}

	// --- Wiring All Layers Together ---
	accountRepo := repository.NewAccountRepository()
	transactionRepo := repository.NewTransactionRepository()
	accountingService := service.NewAccountingService(accountRepo, transactionRepo, service.NewLockRegistry(), collector)

	accountHandler := handler.NewAccountHandler(accountingService)
	transactionHandler := handler.NewTransactionHandler(accountingService)

	return &App{
		Service: accountingService,
		Router:  router.NewRouter(accountHandler, transactionHandler, opts),
	}, nil
}

func Run() {
	logger.Init()
	config.LoadConfig(".")
	logger.SetLevel(config.AppConfig.Log.Level)
	logger.Log.Info("Configuration loaded successfully")

	cfg := config.AppConfig

	var store handler.IdempotencyStore
	if cfg.Redis.Enabled {
		rdb, err := db.ConnectRedis(context.Background())
		if err != nil {
			logger.Log.Fatalf("Error connecting to Redis: %v", err)
		}
		defer rdb.Close()
		store = rdb
	} else {
		logger.Log.Warn("Redis disabled; Idempotency-Key headers will be ignored")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	application, err := New(cfg, store, reg)
	if err != nil {
		logger.Log.Fatalf("Error wiring application: %v", err)
	}

	// --- Start the Server with Graceful Shutdown ---
	port := cfg.Server.Port
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: application.Router,
	}

	go func() {
		logger.Log.Infof("Server starting on port :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Log.Info("Server exited properly")
}
