package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/abdulmahfud/ongkir-service/internal/app"
	"github.com/abdulmahfud/ongkir-service/internal/expedition"
	jobmetrics "github.com/abdulmahfud/ongkir-service/internal/jobs"
	"github.com/abdulmahfud/ongkir-service/internal/platform/cache"
	"github.com/abdulmahfud/ongkir-service/internal/platform/db"
	"github.com/abdulmahfud/ongkir-service/internal/quote"
	"github.com/abdulmahfud/ongkir-service/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	metrics := jobmetrics.NewMetrics(nil)

	historyRepo := quote.NewRepository(pool)
	purgeJob := jobs.NewHistoryPurgeJob(historyRepo, logger, metrics)

	discountCache := cache.NewJSONCache(redisClient, cfg.DiscountCacheTTL)
	warmupJob := jobs.NewDiscountWarmupJob(backend, discountCache, logger, metrics)

	purgeTask, err := jobs.NewHistoryPurgeTask(jobs.HistoryPurgePayload{})
	if err != nil {
		logger.Error("build purge task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewDiscountWarmupTask(jobs.DiscountWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskHistoryPurge, Handler: purgeJob.Handle},
			{Type: jobs.TaskDiscountWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 2 * * *", Task: purgeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "15 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
