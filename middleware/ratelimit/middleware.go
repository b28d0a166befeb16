package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"admission-gateway/middleware/ratelimit/application"
	"admission-gateway/middleware/ratelimit/domain"
)

// DefaultStatsTimeout limita quanto a gravação de estatísticas pode segurar a
// requisição.
const DefaultStatsTimeout = 100 * time.Millisecond

type KeyFunc func(r *http.Request) string

type Options struct {
	Limiter domain.Limiter
	Stats   domain.StatsStore
	// StatsTimeout é o prazo de cada Stats.Record. Estatística é best-effort:
	// estourou, a requisição segue e o erro só vai para o log.
	StatsTimeout       time.Duration
	Logger             *zap.Logger
	KeyFn              KeyFunc
	KeyHeader          string
	TrustXForwardedFor bool
	RejectStatus       int
	RetryAfter         time.Duration
	// AddRateLimitHeaders escreve X-RateLimit-Limit/Remaining/Reset a partir de
	// um Peek feito depois da decisão. No limiter distribuído isso custa uma
	// segunda ida ao store por requisição, e a leitura não é atômica com o
	// Check: outro processo pode ter consumido cota entre os dois.
	AddRateLimitHeaders bool
}

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = application.DefaultRetryAfter
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.StatsTimeout <= 0 {
		opts.StatsTimeout = DefaultStatsTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	log := opts.Logger.Named("ratelimit")

	svc := application.Service{
		Limiter:    opts.Limiter,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := domain.Key(opts.KeyFn(r))

			dec := svc.Decide(r.Context(), key)
			if opts.Stats != nil {
				recordStats(r, opts.Stats, opts.StatsTimeout, key, dec, log)
			}

			if opts.AddRateLimitHeaders {
				setRateLimitHeaders(w.Header(), r, svc, key, dec, log)
			}

			if !dec.Allowed {
				w.Header().Set("Retry-After", formatRetryAfter(dec.RetryAfter))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func recordStats(r *http.Request, stats domain.StatsStore, timeout time.Duration, key domain.Key, dec domain.Decision, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	err := stats.Record(ctx, domain.StatsEvent{
		Key:     key,
		Allowed: dec.Allowed,
		Reason:  dec.Reason,
		Method:  r.Method,
		Path:    r.URL.Path,
		At:      time.Now(),
	})
	if err != nil {
		log.Debug("stats record failed", zap.String("key", string(key)), zap.Error(err))
	}
}

func setRateLimitHeaders(h http.Header, r *http.Request, svc application.Service, key domain.Key, dec domain.Decision, log *zap.Logger) {
	h.Set("X-RateLimit-Key", string(key))
	if dec.Reason.Degraded() {
		h.Set("X-RateLimit-Degraded", string(dec.Reason))
		return
	}

	u, ok, err := svc.Usage(r.Context(), key)
	if !ok {
		return
	}
	if err != nil {
		log.Debug("usage lookup failed", zap.String("key", string(key)), zap.Error(err))
		return
	}
	h.Set("X-RateLimit-Limit", formatFloat(u.Limit))
	h.Set("X-RateLimit-Remaining", formatRemaining(u.Remaining))
	h.Set("X-RateLimit-Reset", formatSeconds(u.ResetAfter))
}
