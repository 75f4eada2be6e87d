package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/alert-notifications/internal/alertsapi"
	"github.com/Priya8975/alert-notifications/internal/api"
	"github.com/Priya8975/alert-notifications/internal/config"
	"github.com/Priya8975/alert-notifications/internal/engine"
	"github.com/Priya8975/alert-notifications/internal/i18n"
	"github.com/Priya8975/alert-notifications/internal/metrics"
	"github.com/Priya8975/alert-notifications/internal/page"
	"github.com/Priya8975/alert-notifications/internal/store"
	"github.com/Priya8975/alert-notifications/internal/websocket"
	"github.com/Priya8975/alert-notifications/internal/worker"
	"github.com/Priya8975/alert-notifications/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	if err := pgStore.RunMigrations(ctx, migrations.FS); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Initialize Redis
	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	m := metrics.New()

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	fanOut := engine.NewFanOutEngine(redisStore.Client(), logger)
	alertBreaker := engine.NewCircuitBreaker(redisStore.Client(), "alert", logger)
	alertLimiter := engine.NewRateLimiter(redisStore.Client(), "alert", logger)
	apiLimiter := engine.NewRateLimiter(redisStore.Client(), "api", logger)

	deliverer := worker.NewDeliverer(worker.DelivererDeps{
		Recorder:       pgStore,
		Requeuer:       fanOut,
		Email:          worker.NewSMTPSender(cfg.SMTP),
		CircuitBreaker: alertBreaker,
		RateLimiter:    alertLimiter,
		Hub:            hub,
		Observer:       m,
		Logger:         logger,
	})

	// Workers keep their own context so in-flight deliveries finish on shutdown.
	workCtx, stopWork := context.WithCancel(context.Background())
	defer stopWork()

	pool := worker.NewPool(cfg.NumWorkers, deliverer, logger)
	pool.Start(workCtx)

	dispatcher := worker.NewDispatcher(redisStore.Client(), pool, logger)
	dispatcher.ReportDepth(m.QueueDepth)
	go dispatcher.Start(ctx)

	catalog, err := i18n.NewCatalog()
	if err != nil {
		logger.Error("failed to build message catalog", "error", err)
		os.Exit(1)
	}

	var lister page.AlertLister = page.AlertListerFunc(pgStore.ListAlerts)
	if cfg.AlertsAPIURL != "" {
		breaker := engine.NewCircuitBreaker(redisStore.Client(), "alertsapi", logger)
		client, err := alertsapi.NewClient(cfg.AlertsAPIURL, breaker, logger)
		if err != nil {
			logger.Error("invalid alerts API url", "error", err)
			os.Exit(1)
		}
		lister = client
		logger.Info("notification page reads from remote alerts API", "url", cfg.AlertsAPIURL)
	}

	listPage := page.NewNotificationListPage(page.Deps{
		Alerts: lister,
		Translator: func(locale string) i18n.Translator {
			if locale == "" {
				locale = cfg.Locale
			}
			return catalog.Printer(locale)
		},
		Observer: m,
		Logger:   logger,
		PageSize: cfg.PageSize,
	})

	router := api.NewRouter(api.RouterDeps{
		Store:       pgStore,
		Notifier:    fanOut,
		QueueDepth:  fanOut.QueueDepth,
		Hub:         hub,
		Page:        listPage,
		Metrics:     m,
		RateLimiter: apiLimiter,
		RateLimit:   cfg.APIRateLimit,
		Health: map[string]api.Pinger{
			"postgres": pgStore,
			"redis":    redisStore,
		},
		PageSize: cfg.PageSize,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Stop polling before closing the pool so no Submit races Stop.
	cancel()
	<-dispatcher.Done()
	pool.Stop()

	logger.Info("server stopped")
}
