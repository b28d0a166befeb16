package infra

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"admission-gateway/middleware/ratelimit/domain"
)

// DistributedLimiter é a janela deslizante com estado em um store
// compartilhado: vários processos com o mesmo store e a mesma política
// respeitam a cota juntos.
type DistributedLimiter struct {
	store  domain.WindowStore
	policy domain.DistributedPolicy

	clock                domain.Clock
	reporter             domain.Reporter
	keyPrefix            string
	failClosedRetryAfter time.Duration
	member               func(now time.Time) string

	// lastNow (UnixNano) impede que o relógio deste processo ande para trás
	// entre duas chamadas.
	lastNow atomic.Int64
}

var (
	_ domain.Limiter = (*DistributedLimiter)(nil)
	_ domain.Peeker  = (*DistributedLimiter)(nil)
)

func NewDistributedLimiter(store domain.WindowStore, policy domain.DistributedPolicy, opts ...Option) (*DistributedLimiter, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: window store is required", domain.ErrInvalidPolicy)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	return &DistributedLimiter{
		store:                store,
		policy:               policy,
		clock:                o.clock,
		reporter:             o.reporter,
		keyPrefix:            o.keyPrefix,
		failClosedRetryAfter: o.failClosedRetryAfter,
		member:               o.member,
	}, nil
}

// StoreKey é a chave usada no store para a identidade.
func (l *DistributedLimiter) StoreKey(key domain.Key) string {
	return l.keyPrefix + string(key)
}

func (l *DistributedLimiter) Check(ctx context.Context, key domain.Key) domain.Decision {
	now := l.now(ctx, key)

	sctx, cancel := context.WithTimeout(ctx, l.policy.StoreTimeout)
	defer cancel()

	st, err := l.store.Admit(sctx, l.StoreKey(key), domain.AdmitRequest{
		Now:    now,
		Window: l.policy.Window,
		Limit:  l.policy.MaxRequests,
		Member: l.member(now),
	})
	if err != nil {
		return l.degrade(ctx, key, now, err)
	}
	if st.Count < l.policy.MaxRequests {
		return domain.Allow()
	}
	return domain.Deny(l.untilExpiry(now, st.Oldest))
}

// Peek lê o uso atual sem inserir nada. Falhas do store voltam como
// domain.ErrStoreUnavailable.
func (l *DistributedLimiter) Peek(ctx context.Context, key domain.Key) (domain.Usage, error) {
	now := l.clock.Now()
	if last := time.Unix(0, l.lastNow.Load()); now.Before(last) {
		now = last
	}

	sctx, cancel := context.WithTimeout(ctx, l.policy.StoreTimeout)
	defer cancel()

	st, err := l.store.Inspect(sctx, l.StoreKey(key), now, l.policy.Window)
	if err != nil {
		return domain.Usage{}, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}

	u := domain.Usage{
		Key:       key,
		Strategy:  domain.StrategyDistributedSlidingWindow,
		Limit:     float64(l.policy.MaxRequests),
		Used:      float64(st.Count),
		Remaining: float64(max(l.policy.MaxRequests-st.Count, 0)),
	}
	if st.Count > 0 {
		u.ResetAfter = l.untilExpiry(now, st.Oldest)
	}
	return u, nil
}

func (l *DistributedLimiter) String() string {
	return fmt.Sprintf("distributed_sliding_window(max=%d, window=%s, fail_mode=%s)",
		l.policy.MaxRequests, l.policy.Window, l.policy.FailMode)
}

// now devolve o relógio do processo sem deixá-lo regredir; um recuo é
// reportado e tratado como "nenhum tempo passou".
func (l *DistributedLimiter) now(ctx context.Context, key domain.Key) time.Time {
	now := l.clock.Now()
	n := now.UnixNano()
	for {
		last := l.lastNow.Load()
		if n < last {
			clamped := time.Unix(0, last)
			reportRegression(ctx, l.reporter, key, time.Duration(last-n), clamped)
			return clamped
		}
		if l.lastNow.CompareAndSwap(last, n) {
			return now
		}
	}
}

// untilExpiry é quanto falta para a entrada mais antiga sair da janela, na
// mesma resolução (ms) do store.
func (l *DistributedLimiter) untilExpiry(now, oldest time.Time) time.Duration {
	if oldest.IsZero() {
		return l.policy.Window
	}
	ms := windowMillis(l.policy.Window) - (now.UnixMilli() - oldest.UnixMilli())
	return max(time.Duration(ms)*time.Millisecond, time.Millisecond)
}

func (l *DistributedLimiter) degrade(ctx context.Context, key domain.Key, now time.Time, err error) domain.Decision {
	dec := domain.Decision{Allowed: true, Reason: domain.ReasonFailOpen}
	if l.policy.FailMode == domain.FailClosed {
		dec = domain.Decision{Allowed: false, RetryAfter: l.failClosedRetryAfter, Reason: domain.ReasonFailClosed}
	}
	l.reporter.Report(ctx, domain.Anomaly{
		Kind:       domain.AnomalyStoreUnavailable,
		Key:        key,
		Err:        fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err),
		Resolution: dec.Reason,
		At:         now,
	})
	return dec
}

// uniqueMember gera "<ms>-<uuid>": duas admissões no mesmo ms nunca colidem
// no sorted set.
func uniqueMember(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString())
}
