package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/abdulmahfud/ongkir-service/internal/app"
	"github.com/abdulmahfud/ongkir-service/internal/discount"
	"github.com/abdulmahfud/ongkir-service/internal/expedition"
	"github.com/abdulmahfud/ongkir-service/internal/location"
	"github.com/abdulmahfud/ongkir-service/internal/observability"
	"github.com/abdulmahfud/ongkir-service/internal/platform/cache"
	"github.com/abdulmahfud/ongkir-service/internal/platform/db"
	"github.com/abdulmahfud/ongkir-service/internal/quote"
	"github.com/abdulmahfud/ongkir-service/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	backend, err := expedition.NewClient(cfg.BackendBaseURL, cfg.BackendToken,
		expedition.WithRetries(cfg.BackendRetries),
		expedition.WithAttemptTimeout(cfg.BackendTimeout),
	)
	if err != nil {
		logger.Error("init backend client", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	batchStore := quote.NewBatchStore(redisClient, cfg.BatchTTL)
	historyRepo := quote.NewRepository(dbpool)
	dispatcher := quote.NewDispatcher(backend, expedition.Catalogue(), logger, metrics)
	discountCache := cache.NewJSONCache(redisClient, cfg.DiscountCacheTTL)
	discountLookup := discount.NewCachedLookup(backend, discountCache)
	enricher := discount.NewEnricher(discountLookup, batchStore, logger, metrics)
	quoteService := quote.NewService(dispatcher, batchStore, historyRepo, enricher, logger, metrics)

	locationCache := cache.NewJSONCache(redisClient, cfg.LocationCacheTTL)
	locationService := location.NewService(backend, locationCache)
	locationHandler := location.NewHandler(logger, locationService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		QuoteService:    quoteService,
		LocationHandler: locationHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
