package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Strategy identifica o algoritmo de um limiter.
type Strategy string

const (
	StrategySlidingWindow            Strategy = "sliding_window"
	StrategyTokenBucket              Strategy = "token_bucket"
	StrategyDistributedSlidingWindow Strategy = "distributed_sliding_window"
)

// UnmarshalText aceita os nomes canônicos e alguns apelidos curtos.
func (s *Strategy) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "sliding_window", "sliding", "window":
		*s = StrategySlidingWindow
	case "token_bucket", "bucket", "token":
		*s = StrategyTokenBucket
	case "distributed_sliding_window", "distributed", "redis":
		*s = StrategyDistributedSlidingWindow
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidPolicy, string(text))
	}
	return nil
}

// FailMode define o que o limiter distribuído faz quando o store não responde.
type FailMode string

const (
	// FailOpen libera as requisições (preserva disponibilidade).
	FailOpen FailMode = "open"
	// FailClosed nega as requisições (preserva a cota).
	FailClosed FailMode = "closed"
)

func (m *FailMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "open":
		*m = FailOpen
	case "closed":
		*m = FailClosed
	default:
		return fmt.Errorf("%w: fail_mode must be \"open\" or \"closed\", got %q", ErrInvalidPolicy, string(text))
	}
	return nil
}

// SlidingWindowPolicy: no máximo MaxRequests admissões em qualquer intervalo
// de duração Window.
type SlidingWindowPolicy struct {
	MaxRequests int
	Window      time.Duration
}

func (p SlidingWindowPolicy) Validate() error {
	if p.MaxRequests <= 0 {
		return fmt.Errorf("%w: max_requests must be > 0, got %d", ErrInvalidPolicy, p.MaxRequests)
	}
	if p.Window <= 0 {
		return fmt.Errorf("%w: window must be > 0, got %s", ErrInvalidPolicy, p.Window)
	}
	return nil
}

// TokenBucketPolicy: balde com Capacity tokens que reabastece RefillRate tokens
// por segundo.
type TokenBucketPolicy struct {
	Capacity   float64
	RefillRate float64
}

func (p TokenBucketPolicy) Validate() error {
	if !(p.Capacity > 0) || math.IsInf(p.Capacity, 0) {
		return fmt.Errorf("%w: capacity must be a finite number > 0, got %v", ErrInvalidPolicy, p.Capacity)
	}
	if !(p.RefillRate > 0) || math.IsInf(p.RefillRate, 0) {
		return fmt.Errorf("%w: refill_rate must be a finite number > 0, got %v", ErrInvalidPolicy, p.RefillRate)
	}
	return nil
}

// FullAfter é o tempo para um balde vazio voltar a ficar cheio. Depois disso o
// estado de uma chave é indistinguível de um balde novo.
func (p TokenBucketPolicy) FullAfter() time.Duration {
	secs := p.Capacity / p.RefillRate
	if secs >= math.MaxInt64/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(math.Ceil(secs * float64(time.Second)))
}

// DistributedPolicy é a janela deslizante compartilhada entre processos.
type DistributedPolicy struct {
	SlidingWindowPolicy
	FailMode     FailMode
	StoreTimeout time.Duration
}

func (p DistributedPolicy) Validate() error {
	if err := p.SlidingWindowPolicy.Validate(); err != nil {
		return err
	}
	if p.FailMode != FailOpen && p.FailMode != FailClosed {
		return fmt.Errorf("%w: fail_mode must be %q or %q, got %q", ErrInvalidPolicy, FailOpen, FailClosed, p.FailMode)
	}
	if p.StoreTimeout <= 0 {
		return fmt.Errorf("%w: store_timeout must be > 0, got %s", ErrInvalidPolicy, p.StoreTimeout)
	}
	return nil
}

// WindowFromSeconds converte window_seconds (pode ser fracionário) em Duration.
func WindowFromSeconds(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}
