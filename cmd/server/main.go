package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/tinoosan/fundledger/internal/config"
	httpapi "github.com/tinoosan/fundledger/internal/httpapi/v1"
	"github.com/tinoosan/fundledger/internal/platform/lock"
	"github.com/tinoosan/fundledger/internal/service/account"
	"github.com/tinoosan/fundledger/internal/service/bill"
	"github.com/tinoosan/fundledger/internal/service/contact"
	"github.com/tinoosan/fundledger/internal/service/transaction"
	"github.com/tinoosan/fundledger/internal/storage"
	"github.com/tinoosan/fundledger/internal/storage/memory"
	pgstore "github.com/tinoosan/fundledger/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Default().Error("load config", "err", err)
		os.Exit(1)
	}
	logger := cfg.Logger(os.Stdout)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	var store storage.Store
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		store = pg
		logger.Info("storage backend: postgres")
	} else {
		store = memory.New()
		logger.Info("storage backend: memory")
	}

	var locker lock.Locker = lock.Noop{}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", "err", err)
			}
		}()
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
		locker = lock.NewRedis(client, cfg.LockTTL)
		logger.Info("lineage lock: redis", "addr", cfg.RedisAddr, "ttl", cfg.LockTTL.String())
	}

	accounts := account.New(store, cfg.Currency, account.WithLogger(logger))
	contacts := contact.New(store, contact.WithLogger(logger))
	transactions := transaction.New(store,
		transaction.WithLocker(locker),
		transaction.WithLogger(logger),
		transaction.WithHook(bill.RecalculateOnChange(nil)),
	)
	bills := bill.New(store, bill.WithLocker(locker), bill.WithLogger(logger))

	if cfg.DevSeed {
		if err := seedDev(ctx, accounts, logger); err != nil {
			logger.Error("dev seed failed", "err", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	api := httpapi.New(httpapi.Deps{
		Store:        store,
		Accounts:     accounts,
		Contacts:     contacts,
		Transactions: transactions,
		Bills:        bills,
		Currency:     cfg.Currency,
		Logger:       logger,
		Registry:     reg,
		Auth: httpapi.AuthConfig{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		},
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		DevMode:            cfg.DevSeed,
	})
	if cfg.JWTSecret == "" {
		logger.Warn("AUTH_JWT_SECRET not set; actors are taken from the X-Actor header")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fundledger listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
		logger.Info("server stopped", "grace", cfg.ShutdownTimeout.String())
		return nil
	case err := <-errCh:
		return err
	}
}

