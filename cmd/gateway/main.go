package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"admission-gateway/middleware/ratelimit/domain"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rdb redis.UniversalClient
	if cfg.needsRedis() {
		rdb = newRedisClient(cfg.Redis)
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		switch {
		case err != nil && cfg.Stats.Enabled:
			return fmt.Errorf("redis ping: %w", err)
		case err != nil:
			// o limiter distribuído segue no fail mode até o Redis voltar
			logger.Warn("redis ping failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
	}

	gw, err := newGateway(cfg, rdb, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gw.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	logger.Info("gateway listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("upstream", gw.upstream.String()),
	)
	logger.Info("rate limit",
		zap.Bool("enabled", cfg.Rate.Enabled),
		zap.Stringer("limiter", gw.limiterName()),
		zap.String("key_header", cfg.Rate.KeyHeader),
		zap.Bool("trust_xff", cfg.TrustXFF),
		zap.Bool("admin", cfg.Rate.AdminEnabled),
	)
	logger.Info("rate stats",
		zap.Bool("enabled", cfg.Stats.Enabled),
		zap.String("bucket", cfg.Stats.Bucket),
		zap.Duration("ttl", cfg.Stats.TTL),
		zap.Bool("track_keys", cfg.Stats.TrackKeys),
	)
	logger.Info("concurrency",
		zap.Int("max", cfg.Concurrency.Max),
		zap.Duration("acquire_timeout", cfg.Concurrency.Timeout),
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(serve(ctx, srv))
	if j, ok := gw.limiter.(janitor); ok {
		eg.Go(j.Run(ctx))
	}

	if err := eg.Wait(); err != nil {
		logger.Error("gateway stopped with error", zap.Error(err))
		return err
	}
	logger.Info("gateway stopped")
	return nil
}

func (c config) needsRedis() bool {
	distributed := c.Rate.Enabled && c.Rate.Strategy == domain.StrategyDistributedSlidingWindow
	return distributed || c.Stats.Enabled
}

// newRedisClient liga ContextTimeoutEnabled: sem isso o go-redis ignora o prazo
// do contexto na leitura do socket e RATE_STORE_TIMEOUT não limita nada.
func newRedisClient(cfg redisConfig) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:                 []string{cfg.Addr},
		Password:              cfg.Password,
		DB:                    cfg.DB,
		ContextTimeoutEnabled: true,
	})
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = lvl
	return zc.Build()
}

// serve roda o servidor até o contexto acabar e então faz o shutdown.
func serve(ctx context.Context, srv *http.Server) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
