package application

import (
	"context"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// DefaultRetryAfter é usado quando uma negação chega sem estimativa.
const DefaultRetryAfter = 1 * time.Second

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Limiter domain.Limiter
	// RetryAfter substitui a estimativa do limiter quando ela vem zerada.
	RetryAfter time.Duration
}

func (s Service) Decide(ctx context.Context, key domain.Key) domain.Decision {
	if s.Limiter == nil {
		return domain.Allow()
	}

	dec := s.Limiter.Check(ctx, key)
	if dec.Allowed {
		dec.RetryAfter = 0
		return dec
	}
	if dec.RetryAfter <= 0 {
		dec.RetryAfter = s.RetryAfter
		if dec.RetryAfter <= 0 {
			dec.RetryAfter = DefaultRetryAfter
		}
	}
	return dec
}

// Usage devolve o uso atual da chave quando o limiter sabe responder sem
// consumir cota. ok=false se ele não implementa domain.Peeker.
func (s Service) Usage(ctx context.Context, key domain.Key) (u domain.Usage, ok bool, err error) {
	p, ok := s.Limiter.(domain.Peeker)
	if !ok {
		return domain.Usage{}, false, nil
	}
	u, err = p.Peek(ctx, key)
	return u, true, err
}
