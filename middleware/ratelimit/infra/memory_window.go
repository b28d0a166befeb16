package infra

import (
	"context"
	"sort"
	"sync"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

type memberScore struct {
	score  int64
	member string
}

type memoryWindow struct {
	entries   []memberScore // ordenado por score
	expiresAt int64
}

// MemoryWindowStore é um domain.WindowStore em processo com a mesma semântica
// do script Redis (ms, corte inclusivo, TTL por chave). Serve para um único
// processo com vários limiters e para testes.
type MemoryWindowStore struct {
	mu   sync.Mutex
	sets map[string]*memoryWindow
}

var _ domain.WindowStore = (*MemoryWindowStore)(nil)

func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{sets: make(map[string]*memoryWindow)}
}

func (s *MemoryWindowStore) Admit(ctx context.Context, key string, req domain.AdmitRequest) (domain.WindowState, error) {
	if err := ctx.Err(); err != nil {
		return domain.WindowState{}, err
	}
	nowMs := req.Now.UnixMilli()
	windowMs := windowMillis(req.Window)

	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.lookup(key, nowMs)
	if w == nil {
		w = &memoryWindow{}
		s.sets[key] = w
	}

	cutoff := nowMs - windowMs
	i := sort.Search(len(w.entries), func(i int) bool { return w.entries[i].score > cutoff })
	w.entries = w.entries[i:]

	st := domain.WindowState{Count: len(w.entries)}
	if st.Count < req.Limit {
		j := sort.Search(len(w.entries), func(j int) bool { return w.entries[j].score > nowMs })
		w.entries = append(w.entries, memberScore{})
		copy(w.entries[j+1:], w.entries[j:])
		w.entries[j] = memberScore{score: nowMs, member: req.Member}
		w.expiresAt = nowMs + windowMs
	}
	if len(w.entries) > 0 {
		st.Oldest = time.UnixMilli(w.entries[0].score)
	} else {
		delete(s.sets, key)
	}
	return st, nil
}

func (s *MemoryWindowStore) Inspect(ctx context.Context, key string, now time.Time, window time.Duration) (domain.WindowState, error) {
	if err := ctx.Err(); err != nil {
		return domain.WindowState{}, err
	}
	nowMs := now.UnixMilli()
	cutoff := nowMs - windowMillis(window)

	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.lookup(key, nowMs)
	if w == nil {
		return domain.WindowState{}, nil
	}
	i := sort.Search(len(w.entries), func(i int) bool { return w.entries[i].score > cutoff })
	live := w.entries[i:]

	st := domain.WindowState{Count: len(live)}
	if len(live) > 0 {
		st.Oldest = time.UnixMilli(live[0].score)
	}
	return st, nil
}

// Len devolve quantas chaves ainda existem (as expiradas saem na próxima leitura).
func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sets)
}

func (s *MemoryWindowStore) lookup(key string, nowMs int64) *memoryWindow {
	w, ok := s.sets[key]
	if !ok {
		return nil
	}
	if nowMs >= w.expiresAt {
		delete(s.sets, key)
		return nil
	}
	return w
}
