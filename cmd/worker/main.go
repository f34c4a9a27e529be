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

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/tinoosan/fundledger/internal/config"
	"github.com/tinoosan/fundledger/internal/jobs"
	"github.com/tinoosan/fundledger/internal/platform/lock"
	"github.com/tinoosan/fundledger/internal/service/bill"
	pgstore "github.com/tinoosan/fundledger/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Default().Error("load config", "err", err)
		os.Exit(1)
	}
	logger := cfg.Logger(os.Stdout)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.RedisAddr == "" || cfg.DatabaseURL == "" {
		return errors.New("worker needs REDIS_ADDR and DATABASE_URL")
	}
	store, err := pgstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := jobs.NewMetrics(reg)

	// Bill mutations take the same lock keys as the API server.
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("redis close", "err", err)
		}
	}()
	if err := client.Ping(ctx).Err(); err != nil {
		return err
	}
	locker := lock.NewRedis(client, cfg.LockTTL)

	bills := bill.New(store, bill.WithLocker(locker), bill.WithLogger(logger))
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:       asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:          logger,
		Overdue:         jobs.NewOverdueJob(bills, nil, logger, metrics),
		OverdueSchedule: cfg.OverdueSchedule,
		Concurrency:     cfg.WorkerConcurrency,
	})
	if err != nil {
		return err
	}

	if cfg.WorkerMetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.WorkerMetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logger.Info("worker starting", "schedule", cfg.OverdueSchedule, "concurrency", cfg.WorkerConcurrency)
	return worker.Run(ctx)
}
