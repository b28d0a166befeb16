package infra

import (
	"context"
	"fmt"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// windowLog são os instantes admitidos que ainda estão dentro da janela, em
// ordem crescente.
type windowLog struct {
	times []time.Time
}

// prune descarta os instantes com now-t >= window.
func (w *windowLog) prune(now time.Time, window time.Duration) {
	i := 0
	for i < len(w.times) && now.Sub(w.times[i]) >= window {
		i++
	}
	if i == len(w.times) {
		w.times = w.times[:0]
		return
	}
	w.times = w.times[i:]
}

// live conta os instantes dentro da janela sem alterar o log.
func (w *windowLog) live(now time.Time, window time.Duration) (int, time.Time) {
	for i, t := range w.times {
		if now.Sub(t) < window {
			return len(w.times) - i, t
		}
	}
	return 0, time.Time{}
}

// SlidingWindowLimiter admite no máximo MaxRequests chamadas por chave em
// qualquer intervalo de duração Window (log de timestamps por chave).
type SlidingWindowLimiter struct {
	*Store[windowLog]

	policy   domain.SlidingWindowPolicy
	clock    domain.Clock
	reporter domain.Reporter
}

var (
	_ domain.Limiter = (*SlidingWindowLimiter)(nil)
	_ domain.Peeker  = (*SlidingWindowLimiter)(nil)
)

func NewSlidingWindowLimiter(policy domain.SlidingWindowPolicy, opts ...Option) (*SlidingWindowLimiter, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	return &SlidingWindowLimiter{
		Store:    newStore[windowLog](o, policy.Window),
		policy:   policy,
		clock:    o.clock,
		reporter: o.reporter,
	}, nil
}

func (l *SlidingWindowLimiter) Check(ctx context.Context, key domain.Key) domain.Decision {
	var (
		dec   domain.Decision
		drift time.Duration
	)
	now := l.clock.Now()

	l.update(key, func(e *keyState[windowLog], _ bool) {
		now, drift = e.observe(now)

		log := &e.state
		log.prune(now, l.policy.Window)
		if len(log.times) < l.policy.MaxRequests {
			log.times = append(log.times, now)
			dec = domain.Allow()
			return
		}
		dec = domain.Deny(l.policy.Window - now.Sub(log.times[0]))
	})

	if drift > 0 {
		reportRegression(ctx, l.reporter, key, drift, now)
	}
	return dec
}

func (l *SlidingWindowLimiter) Peek(_ context.Context, key domain.Key) (domain.Usage, error) {
	u := domain.Usage{
		Key:       key,
		Strategy:  domain.StrategySlidingWindow,
		Limit:     float64(l.policy.MaxRequests),
		Remaining: float64(l.policy.MaxRequests),
	}
	now := l.clock.Now()

	l.view(key, func(e *keyState[windowLog]) {
		if now.Before(e.lastSeen) {
			now = e.lastSeen
		}
		count, oldest := e.state.live(now, l.policy.Window)
		u.Used = float64(count)
		u.Remaining = float64(max(l.policy.MaxRequests-count, 0))
		if count > 0 {
			u.ResetAfter = l.policy.Window - now.Sub(oldest)
		}
	})
	return u, nil
}

func (l *SlidingWindowLimiter) String() string {
	return fmt.Sprintf("sliding_window(max=%d, window=%s)", l.policy.MaxRequests, l.policy.Window)
}

func reportRegression(ctx context.Context, r domain.Reporter, key domain.Key, drift time.Duration, at time.Time) {
	r.Report(ctx, domain.Anomaly{
		Kind:  domain.AnomalyClockRegression,
		Key:   key,
		Err:   fmt.Errorf("%w by %s", domain.ErrClockRegression, drift),
		Drift: drift,
		At:    at,
	})
}
