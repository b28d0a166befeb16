package infra

import (
	"sync"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

// SystemClock usa time.Now, que carrega a leitura monotônica do processo.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock é um relógio controlado à mão, útil para testes e replays.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

var _ domain.Clock = (*ManualClock)(nil)

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance move o relógio (d negativo simula regressão).
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
