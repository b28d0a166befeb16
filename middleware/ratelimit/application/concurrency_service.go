package application

import (
	"context"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// ConcurrencyService concentra a regra de aquisição/liberação de vagas com timeout,
// sem saber nada sobre HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
	// RetryAfter sugerido quando não há vaga (padrão DefaultRetryAfter).
	RetryAfter time.Duration
}

// Acquire tenta adquirir uma vaga.
// - Se `AcquireTimeout <= 0`, espera indefinidamente (até ctx cancelar).
// - Se `AcquireTimeout > 0`, espera até o timeout.
// Retorna (release, ok). Se ok=false, nenhuma vaga foi adquirida.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}

	if s.AcquireTimeout <= 0 {
		return s.Pool.Acquire(ctx)
	}

	acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
	defer cancel()
	return s.Pool.Acquire(acqCtx)
}

// Admit é o Acquire no formato de decisão dos limiters. release só é não-nil
// quando a decisão é positiva.
func (s ConcurrencyService) Admit(ctx context.Context) (func(), domain.Decision) {
	release, ok := s.Acquire(ctx)
	if ok {
		return release, domain.Allow()
	}
	retry := s.RetryAfter
	if retry <= 0 {
		retry = DefaultRetryAfter
	}
	return nil, domain.Deny(retry)
}
