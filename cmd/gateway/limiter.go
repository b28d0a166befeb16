package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"
)

// janitor é o lado de ciclo de vida dos limiters locais.
type janitor interface {
	Run(ctx context.Context) func() error
}

// limiter junta decisão e leitura de uso; todos os limiters de infra atendem.
type limiter interface {
	domain.Limiter
	domain.Peeker
}

// newLimiter monta o limiter da estratégia configurada. rdb só é usado pela
// estratégia distribuída.
func newLimiter(cfg rateConfig, rdb redis.UniversalClient, reporter domain.Reporter, logger *zap.Logger) (limiter, error) {
	opts := []infra.Option{
		infra.WithLogger(logger),
		infra.WithReporter(reporter),
		infra.WithShards(cfg.Shards),
		infra.WithIdleTTL(cfg.IdleTTL),
		infra.WithCleanupEvery(cfg.CleanupEvery),
		infra.WithKeyPrefix(cfg.KeyPrefix),
		infra.WithFailClosedRetryAfter(cfg.FailClosedRetryAfter),
	}

	var (
		lim limiter
		err error
	)
	switch cfg.Strategy {
	case domain.StrategySlidingWindow:
		lim, err = unwrap(infra.NewSlidingWindowLimiter(cfg.slidingWindow(), opts...))
	case domain.StrategyTokenBucket:
		lim, err = unwrap(infra.NewTokenBucketLimiter(cfg.tokenBucket(), opts...))
	case domain.StrategyDistributedSlidingWindow:
		if rdb == nil {
			return nil, fmt.Errorf("%w: strategy %s needs a redis client", domain.ErrInvalidPolicy, cfg.Strategy)
		}
		lim, err = unwrap(infra.NewDistributedLimiter(infra.NewRedisWindowStore(rdb), cfg.distributed(), opts...))
	default:
		err = fmt.Errorf("%w: unknown strategy %q", domain.ErrInvalidPolicy, cfg.Strategy)
	}
	if err != nil {
		return nil, err
	}
	return lim, nil
}

// unwrap evita devolver um ponteiro nil embrulhado na interface.
func unwrap[L limiter](l L, err error) (limiter, error) {
	if err != nil {
		return nil, err
	}
	return l, nil
}
