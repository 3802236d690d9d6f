package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridianfin/meridian/internal/app"
	"github.com/meridianfin/meridian/internal/consol"
	"github.com/meridianfin/meridian/internal/consol/fx"
	consolpg "github.com/meridianfin/meridian/internal/consol/pg"
	jobmetrics "github.com/meridianfin/meridian/internal/jobs"
	"github.com/meridianfin/meridian/internal/platform/db"
	"github.com/meridianfin/meridian/jobs"
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

	catalog := consolpg.NewCatalog(pool)

	converter := fx.NewConverter()
	quotes, err := catalog.FXQuotes(ctx)
	if err != nil {
		logger.Error("load fx rates", slog.Any("error", err))
		os.Exit(1)
	}
	converter.Add(quotes...)

	orchestrator := consol.NewOrchestrator(consol.OrchestratorConfig{
		Groups:     catalog,
		Balances:   catalog,
		Translator: converter,
		Store:      consolpg.NewStore(pool),
		Audit:      consolpg.NewAudit(pool, logger),
		Logger:     logger,
	})

	metrics := jobmetrics.NewMetrics(nil)
	runJob := jobs.NewConsolidationRunJob(orchestrator, logger, metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskConsolidationRun, Handler: runJob.Handle},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
