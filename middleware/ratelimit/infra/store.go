package infra

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"admission-gateway/middleware/ratelimit/domain"
)

// keyState guarda o estado de uma chave e o último instante em que ela foi
// vista. lastSeen nunca anda para trás.
type keyState[S any] struct {
	state    S
	lastSeen time.Time
}

// observe registra now e devolve o instante que o algoritmo deve usar.
// Se o relógio voltou, devolve lastSeen e o tamanho do recuo.
func (e *keyState[S]) observe(now time.Time) (time.Time, time.Duration) {
	if now.Before(e.lastSeen) {
		return e.lastSeen, e.lastSeen.Sub(now)
	}
	e.lastSeen = now
	return now, 0
}

type shard[S any] struct {
	mu      sync.Mutex
	entries map[domain.Key]*keyState[S]
}

// StoreStats resume o tamanho do estado local.
type StoreStats struct {
	ActiveKeys int
	Created    int64
	Evicted    int64
	Shards     int
}

// Store é a tabela de estado por chave dos limiters locais.
//
// As chaves são distribuídas em shards (xxhash); cada shard tem seu próprio
// lock, então chamadas de uma mesma chave são serializadas e chaves de shards
// diferentes não disputam lock. Com um shard só, vira um lock global.
type Store[S any] struct {
	shards []*shard[S]
	clock  domain.Clock

	idleTTL      time.Duration
	cleanupEvery time.Duration

	created atomic.Int64
	evicted atomic.Int64
}

// newStore cria a tabela. minIdle é o tempo ocioso a partir do qual o estado
// de uma chave é equivalente ao de uma chave nova.
func newStore[S any](o options, minIdle time.Duration) *Store[S] {
	s := &Store[S]{
		shards:       make([]*shard[S], o.shards),
		clock:        o.clock,
		idleTTL:      max(o.idleTTL, minIdle),
		cleanupEvery: o.cleanupEvery,
	}
	for i := range s.shards {
		s.shards[i] = &shard[S]{entries: make(map[domain.Key]*keyState[S])}
	}
	return s
}

func (s *Store[S]) shardFor(key domain.Key) *shard[S] {
	if len(s.shards) == 1 {
		return s.shards[0]
	}
	return s.shards[xxhash.Sum64String(string(key))%uint64(len(s.shards))]
}

// update executa fn com o lock do shard da chave, criando o estado se preciso.
func (s *Store[S]) update(key domain.Key, fn func(e *keyState[S], fresh bool)) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok {
		e = &keyState[S]{}
		sh.entries[key] = e
		s.created.Add(1)
	}
	fn(e, !ok)
}

// view executa fn com o lock do shard, sem criar estado. found=false quando a
// chave nunca foi vista (ou já foi removida).
func (s *Store[S]) view(key domain.Key, fn func(e *keyState[S])) (found bool) {
	sh := s.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok {
		return false
	}
	fn(e)
	return true
}

func (s *Store[S]) IdleTTL() time.Duration      { return s.idleTTL }
func (s *Store[S]) CleanupEvery() time.Duration { return s.cleanupEvery }

// Cleanup remove as chaves ociosas há pelo menos IdleTTL e devolve quantas saíram.
func (s *Store[S]) Cleanup() int {
	cutoff := s.clock.Now().Add(-s.idleTTL)

	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, e := range sh.entries {
			if !e.lastSeen.After(cutoff) {
				delete(sh.entries, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	s.evicted.Add(int64(removed))
	return removed
}

func (s *Store[S]) Stats() StoreStats {
	active := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		active += len(sh.entries)
		sh.mu.Unlock()
	}
	return StoreStats{
		ActiveKeys: active,
		Created:    s.created.Load(),
		Evicted:    s.evicted.Load(),
		Shards:     len(s.shards),
	}
}

// Run devolve o janitor (limpeza periódica das chaves inativas) no formato de
// um errgroup.Group.Go: bloqueia até o contexto acabar.
func (s *Store[S]) Run(ctx context.Context) func() error {
	return func() error {
		if s.cleanupEvery <= 0 {
			<-ctx.Done()
			return nil
		}
		s.loop(ctx)
		return nil
	}
}

func (s *Store[S]) loop(ctx context.Context) {
	t := time.NewTicker(s.cleanupEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Cleanup()
		}
	}
}
