package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"admission-gateway/middleware/ratelimit"
	"admission-gateway/middleware/ratelimit/domain"
)

const userHeader = "X-User-Id"

// limiter é o que cada endpoint precisa: decidir e mostrar o uso.
type limiter interface {
	domain.Limiter
	domain.Peeker
}

// routes monta a API de exemplo: cada endpoint tem seu próprio limiter, com a
// estratégia que combina com o tráfego dele.
func routes(logger *zap.Logger, orders, status limiter) http.Handler {
	limit := func(l limiter) func(http.Handler) http.Handler {
		return ratelimit.Middleware(ratelimit.Options{
			Limiter:             l,
			Logger:              logger,
			KeyHeader:           userHeader, // ou vazio para usar IP
			TrustXForwardedFor:  true,
			AddRateLimitHeaders: true,
		})
	}

	r := chi.NewRouter()
	r.Use(ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50}))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/_ratelimit/{key}", ratelimit.UsageHandler(orders, logger))
	r.Get("/rate-limit/info", usageInfo(logger, map[string]domain.Peeker{"orders": orders, "status": status}))

	r.With(limit(orders)).Post("/orders", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("order created\n"))
	})
	r.With(limit(status)).Get("/orders/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": chi.URLParam(r, "id"), "status": "processing"})
	})
	return r
}

type endpointUsage struct {
	Strategy  domain.Strategy `json:"strategy"`
	Limit     float64         `json:"limit"`
	Remaining float64         `json:"remaining"`
	ResetIn   float64         `json:"reset_in_seconds"`
}

// usageInfo mostra o uso do usuário em todos os endpoints de uma vez.
func usageInfo(logger *zap.Logger, peekers map[string]domain.Peeker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := strings.TrimSpace(r.Header.Get(userHeader))
		if user == "" {
			http.Error(w, userHeader+" header is required", http.StatusBadRequest)
			return
		}

		out := make(map[string]endpointUsage, len(peekers))
		for name, p := range peekers {
			u, err := p.Peek(r.Context(), domain.Key(user))
			if err != nil {
				logger.Warn("usage lookup failed", zap.String("endpoint", name), zap.Error(err))
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
			out[name] = endpointUsage{
				Strategy:  u.Strategy,
				Limit:     u.Limit,
				Remaining: u.Remaining,
				ResetIn:   u.ResetAfter.Seconds(),
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
