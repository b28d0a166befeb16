package infra

import (
	"context"
	"fmt"
	"math"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

const (
	// MinRetryAfter é o menor Retry-After devolvido pelo bucket.
	MinRetryAfter = time.Millisecond

	// tokenEpsilon absorve o erro de ponto flutuante do refill: um balde que
	// deveria ter exatamente 1 token no instante sugerido por RetryAfter admite.
	tokenEpsilon = 1e-9
)

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// refill credita o tempo decorrido desde lastRefill, limitado à capacidade.
func (b *bucket) refill(now time.Time, p domain.TokenBucketPolicy) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	b.lastRefill = now

	missing := p.Capacity - b.tokens
	if missing <= 0 {
		return
	}
	if add := elapsed.Seconds() * p.RefillRate; add < missing {
		b.tokens += add
		return
	}
	b.tokens = p.Capacity
}

// TokenBucketLimiter é um token bucket por chave: até Capacity chamadas em
// rajada e RefillRate chamadas/s sustentadas.
type TokenBucketLimiter struct {
	*Store[bucket]

	policy   domain.TokenBucketPolicy
	clock    domain.Clock
	reporter domain.Reporter
}

var (
	_ domain.Limiter = (*TokenBucketLimiter)(nil)
	_ domain.Peeker  = (*TokenBucketLimiter)(nil)
)

func NewTokenBucketLimiter(policy domain.TokenBucketPolicy, opts ...Option) (*TokenBucketLimiter, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	return &TokenBucketLimiter{
		Store:    newStore[bucket](o, policy.FullAfter()),
		policy:   policy,
		clock:    o.clock,
		reporter: o.reporter,
	}, nil
}

func (l *TokenBucketLimiter) Check(ctx context.Context, key domain.Key) domain.Decision {
	var (
		dec   domain.Decision
		drift time.Duration
	)
	now := l.clock.Now()

	l.update(key, func(e *keyState[bucket], fresh bool) {
		now, drift = e.observe(now)

		b := &e.state
		if fresh {
			b.tokens = l.policy.Capacity
			b.lastRefill = now
		}
		b.refill(now, l.policy)

		if b.tokens >= 1-tokenEpsilon {
			b.tokens = max(b.tokens-1, 0)
			dec = domain.Allow()
			return
		}
		dec = domain.Deny(max(secondsToDuration((1-b.tokens)/l.policy.RefillRate), MinRetryAfter))
	})

	if drift > 0 {
		reportRegression(ctx, l.reporter, key, drift, now)
	}
	return dec
}

// Peek calcula o refill sobre uma cópia do balde; o estado não muda.
func (l *TokenBucketLimiter) Peek(_ context.Context, key domain.Key) (domain.Usage, error) {
	u := domain.Usage{
		Key:       key,
		Strategy:  domain.StrategyTokenBucket,
		Limit:     l.policy.Capacity,
		Remaining: l.policy.Capacity,
	}
	now := l.clock.Now()

	l.view(key, func(e *keyState[bucket]) {
		b := e.state
		b.refill(now, l.policy)
		u.Remaining = b.tokens
		u.Used = l.policy.Capacity - b.tokens
		if u.Used > 0 {
			u.ResetAfter = secondsToDuration(u.Used / l.policy.RefillRate)
		}
	})
	return u, nil
}

func (l *TokenBucketLimiter) String() string {
	return fmt.Sprintf("token_bucket(capacity=%g, refill_rate=%g/s)", l.policy.Capacity, l.policy.RefillRate)
}

// secondsToDuration arredonda para cima no nanossegundo e satura em MaxInt64.
func secondsToDuration(secs float64) time.Duration {
	ns := math.Ceil(secs * float64(time.Second))
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}
