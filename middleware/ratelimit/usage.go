package ratelimit

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"admission-gateway/middleware/ratelimit/domain"
)

// UsageParam é o nome do parâmetro de rota com a chave consultada.
const UsageParam = "key"

// UsageResponse é o corpo JSON de UsageHandler.
type UsageResponse struct {
	Key               string  `json:"key"`
	Strategy          string  `json:"strategy"`
	Limit             float64 `json:"limit"`
	Used              float64 `json:"used"`
	Remaining         float64 `json:"remaining"`
	ResetAfterSeconds float64 `json:"reset_after_seconds"`
}

// UsageHandler expõe o uso de uma chave sem consumir cota. Monte com chi em
// uma rota com {key}, ex.: r.Get("/_ratelimit/{key}", UsageHandler(lim, log)).
func UsageHandler(p domain.Peeker, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(chi.URLParam(r, UsageParam))
		if key == "" {
			http.Error(w, "missing key", http.StatusBadRequest)
			return
		}

		u, err := p.Peek(r.Context(), domain.Key(key))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, domain.ErrStoreUnavailable) {
				status = http.StatusServiceUnavailable
			}
			logger.Warn("usage lookup failed", zap.String("key", key), zap.Error(err))
			http.Error(w, http.StatusText(status), status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(UsageResponse{
			Key:               string(u.Key),
			Strategy:          string(u.Strategy),
			Limit:             u.Limit,
			Used:              u.Used,
			Remaining:         u.Remaining,
			ResetAfterSeconds: u.ResetAfter.Seconds(),
		})
	}
}
