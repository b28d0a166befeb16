package infra

import (
	"context"
	"maps"
	"sync"

	"admission-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64
	Denied  int64
	// Degraded conta decisões tomadas pelo modo de falha (já incluídas em
	// Allowed/Denied).
	Degraded int64
}

func (c *Counters) add(ev domain.StatsEvent) {
	if ev.Allowed {
		c.Allowed++
	} else {
		c.Denied++
	}
	if ev.Reason.Degraded() {
		c.Degraded++
	}
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento.
//
// Também implementa domain.Reporter, contando anomalias por tipo.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu        sync.Mutex
	total     Counters
	byRoute   map[string]Counters
	byKey     map[string]Counters
	anomalies map[domain.AnomalyKind]int64

	trackKeys bool
}

var (
	_ domain.StatsStore = (*MemoryStatsStore)(nil)
	_ domain.Reporter   = (*MemoryStatsStore)(nil)
)

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute:   make(map[string]Counters),
		byKey:     make(map[string]Counters),
		anomalies: make(map[domain.AnomalyKind]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev)

	c := s.byRoute[route]
	c.add(ev)
	s.byRoute[route] = c

	if s.trackKeys {
		k := s.byKey[string(ev.Key)]
		k.add(ev)
		s.byKey[string(ev.Key)] = k
	}
	return nil
}

func (s *MemoryStatsStore) Report(_ context.Context, a domain.Anomaly) {
	s.mu.Lock()
	s.anomalies[a.Kind]++
	s.mu.Unlock()
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byRoute)
}

func (s *MemoryStatsStore) ByKey() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.byKey)
}

func (s *MemoryStatsStore) Anomalies() map[domain.AnomalyKind]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.anomalies)
}
