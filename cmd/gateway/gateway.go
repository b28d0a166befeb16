package main

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"admission-gateway/middleware/ratelimit"
	"admission-gateway/middleware/ratelimit/domain"
	"admission-gateway/middleware/ratelimit/infra"
)

type gateway struct {
	cfg      config
	logger   *zap.Logger
	upstream *url.URL
	limiter  limiter // nil com RATE_ENABLED=false
	stats    domain.StatsStore
}

func newGateway(cfg config, rdb redis.UniversalClient, logger *zap.Logger) (*gateway, error) {
	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}
	gw := &gateway{cfg: cfg, logger: logger, upstream: upstream}

	if cfg.Rate.Enabled {
		gw.limiter, err = newLimiter(cfg.Rate, rdb, infra.NewLogReporter(logger), logger)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Stats.Enabled {
		gw.stats = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL),
			infra.WithStatsBucket(cfg.Stats.Bucket),
			infra.WithStatsTrackKeys(cfg.Stats.TrackKeys),
		)
	}
	return gw, nil
}

func (g *gateway) limiterName() fmt.Stringer {
	if s, ok := g.limiter.(fmt.Stringer); ok {
		return s
	}
	return disabled{}
}

type disabled struct{}

func (disabled) String() string { return "disabled" }

func (g *gateway) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	if g.cfg.Rate.AdminEnabled && g.limiter != nil {
		r.Get("/_ratelimit/{"+ratelimit.UsageParam+"}", ratelimit.UsageHandler(g.limiter, g.logger))
	}

	r.Group(func(r chi.Router) {
		if g.limiter != nil {
			r.Use(ratelimit.Middleware(ratelimit.Options{
				Limiter:             g.limiter,
				Stats:               g.stats,
				StatsTimeout:        g.cfg.Rate.StoreTimeout,
				Logger:              g.logger,
				KeyHeader:           g.cfg.Rate.KeyHeader,
				TrustXForwardedFor:  g.cfg.TrustXFF,
				RejectStatus:        http.StatusTooManyRequests,
				RetryAfter:          g.cfg.RetryAfter,
				AddRateLimitHeaders: g.cfg.AddHeaders,
			}))
		}
		r.Use(ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
			Max:            g.cfg.Concurrency.Max,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: g.cfg.Concurrency.Timeout,
			RetryAfter:     g.cfg.RetryAfter,
		}))
		r.Handle("/*", g.proxy())
	})
	return r
}

func (g *gateway) proxy() http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(g.upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		g.logger.Warn("proxy error", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}
	return proxy
}
