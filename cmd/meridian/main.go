package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridianfin/meridian/internal/app"
	"github.com/meridianfin/meridian/internal/consol"
	"github.com/meridianfin/meridian/internal/consol/fx"
	consolhttp "github.com/meridianfin/meridian/internal/consol/http"
	consolpg "github.com/meridianfin/meridian/internal/consol/pg"
	"github.com/meridianfin/meridian/internal/platform/cache"
	"github.com/meridianfin/meridian/internal/platform/db"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
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

	tbCache := cache.NewTrialBalanceCache(redisClient, cfg.TrialBalanceCacheTTL)
	handler := consolhttp.NewHandler(orchestrator, tbCache, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		ConsolHandler: handler,
	})

	srv := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
