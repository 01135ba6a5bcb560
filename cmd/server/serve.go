package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"slippers/config"
	"slippers/internal/cache"
	"slippers/internal/database"
	"slippers/internal/router"
	"slippers/pkg/payment"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Sync()
			if err := database.AutoMigrate(db); err != nil {
				return err
			}

			orderCache, closeCache := newOrderCache(cmd.Context(), cfg, log)
			defer closeCache()

			engine := router.Setup(cfg, db, newProvider(cfg, log), orderCache, log)
			srv := &http.Server{
				Addr:         ":" + cfg.Server.Port,
				Handler:      engine,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Env))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case <-quit:
			}
			log.Info("shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return err
			}
			log.Info("server stopped")
			return nil
		},
	}
}

// newProvider returns the OCTO client behind a circuit breaker, or the
// in-process stub when octo.stub is set.
func newProvider(cfg *config.Config, log *zap.Logger) payment.Provider {
	if cfg.Octo.Stub {
		log.Warn("[OCTO] using stub provider; no real payments will be made")
		return payment.NewStubProvider(strings.TrimRight(cfg.Octo.ReturnURL, "/"))
	}
	if missing := cfg.Octo.Missing(); len(missing) > 0 {
		log.Warn("[OCTO] settings incomplete; payment creation will fail", zap.Strings("missing", missing))
	}
	octo := payment.NewOctoProvider(payment.OctoSettings{
		BaseURL:     cfg.Octo.APIBase,
		ShopID:      cfg.Octo.ShopID,
		Secret:      cfg.Octo.Secret,
		ReturnURL:   cfg.Octo.ReturnURL,
		NotifyURL:   cfg.Octo.NotifyURL,
		Language:    cfg.Octo.Language,
		Currency:    cfg.Octo.Currency,
		AutoCapture: cfg.Octo.AutoCapture,
		Test:        cfg.Octo.Test,
		StatusPath:  cfg.Octo.StatusPath,
		Timeout:     cfg.Octo.Timeout,
		USDRate:     cfg.Octo.USDRate,
		ExtraParams: cfg.Octo.ExtraParams,
	}, log)
	return payment.NewBreakerProvider(octo, payment.BreakerSettings{
		Name:             "octo",
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.Timeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
	}, log)
}

// newOrderCache connects to Redis when redis.addr is set. An unreachable
// Redis at startup falls back to no caching.
func newOrderCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (cache.OrderCache, func()) {
	if cfg.Redis.Addr == "" {
		return cache.Noop{}, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable; order cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		_ = client.Close()
		return cache.Noop{}, func() {}
	}
	return cache.NewRedisCache(client, cfg.Redis.OrderTTL), func() { _ = client.Close() }
}
