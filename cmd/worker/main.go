package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/depot-aim/depot-aim/internal/app"
	"github.com/depot-aim/depot-aim/internal/audit"
	"github.com/depot-aim/depot-aim/internal/observability"
	"github.com/depot-aim/depot-aim/internal/platform/cache"
	"github.com/depot-aim/depot-aim/internal/platform/db"
	"github.com/depot-aim/depot-aim/internal/rbac"
	"github.com/depot-aim/depot-aim/internal/shared"
	"github.com/depot-aim/depot-aim/jobs"
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

	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	rbacRepo := rbac.NewRepository(pool)
	rightsCache := rbac.NewRightsCache(redisClient, cfg.RightsCacheTTL)
	rbacService := rbac.NewService(rbacRepo, rightsCache, auditLogger, logger, metrics)

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo)

	pruneTask, err := jobs.NewAuditPruneTask(cfg.AuditRetentionDays)
	if err != nil {
		logger.Error("build audit prune task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRBACIntegrityScan, Handler: jobs.NewIntegrityScanHandler(rbacRepo, metrics, logger)},
			{Type: jobs.TaskRightsCacheWarm, Handler: jobs.NewRightsCacheWarmHandler(rbacRepo, rbacService, logger)},
			{Type: jobs.TaskAuditPrune, Handler: jobs.NewAuditPruneHandler(auditService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 1 * * *", Task: jobs.NewRBACIntegrityScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 1 * * *", Task: jobs.NewRightsCacheWarmTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * 0", Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
