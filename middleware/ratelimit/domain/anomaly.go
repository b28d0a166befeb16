package domain

import (
	"context"
	"time"
)

// AnomalyKind classifica eventos anormais que o limiter resolve sozinho, mas
// que precisam chegar à observabilidade.
type AnomalyKind string

const (
	AnomalyClockRegression  AnomalyKind = "clock_regression"
	AnomalyStoreUnavailable AnomalyKind = "store_unavailable"
)

// Anomaly descreve um evento anormal.
type Anomaly struct {
	Kind AnomalyKind
	Key  Key
	Err  error
	// Drift é o quanto o relógio voltou (apenas clock_regression).
	Drift time.Duration
	// Resolution é a decisão aplicada no lugar do algoritmo (apenas
	// store_unavailable).
	Resolution Reason
	At         time.Time
}

// Reporter recebe anomalias. Implementações não podem bloquear nem falhar o
// caminho da requisição.
type Reporter interface {
	Report(ctx context.Context, a Anomaly)
}

// NopReporter descarta tudo.
type NopReporter struct{}

func (NopReporter) Report(context.Context, Anomaly) {}
