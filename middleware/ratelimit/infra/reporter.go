package infra

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"admission-gateway/middleware/ratelimit/domain"
)

// LogReporter escreve anomalias no zap.
//
// Uma queda do store gera uma anomalia por requisição, então cada tipo tem seu
// próprio rate.Sometimes: as primeiras N passam, depois no máximo uma por
// intervalo, com o total de suprimidas no campo "suppressed".
type LogReporter struct {
	logger *zap.Logger
	first  int
	every  time.Duration

	mu    sync.Mutex
	kinds map[domain.AnomalyKind]*throttle
}

type throttle struct {
	sometimes  *rate.Sometimes
	suppressed int64
}

type LogReporterOption func(*LogReporter)

// WithLogBurst: quantas anomalias de cada tipo são logadas antes do throttle.
func WithLogBurst(n int) LogReporterOption {
	return func(r *LogReporter) { r.first = n }
}

// WithLogInterval: intervalo mínimo entre logs do mesmo tipo depois do burst.
func WithLogInterval(d time.Duration) LogReporterOption {
	return func(r *LogReporter) { r.every = d }
}

func NewLogReporter(logger *zap.Logger, opts ...LogReporterOption) *LogReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &LogReporter{
		logger: logger.Named("ratelimit"),
		first:  5,
		every:  10 * time.Second,
		kinds:  make(map[domain.AnomalyKind]*throttle),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *LogReporter) Report(_ context.Context, a domain.Anomaly) {
	r.mu.Lock()
	t, ok := r.kinds[a.Kind]
	if !ok {
		t = &throttle{sometimes: &rate.Sometimes{First: r.first, Interval: r.every}}
		r.kinds[a.Kind] = t
	}
	logged := false
	t.sometimes.Do(func() { logged = true })
	var suppressed int64
	if logged {
		suppressed, t.suppressed = t.suppressed, 0
	} else {
		t.suppressed++
	}
	r.mu.Unlock()

	if !logged {
		return
	}

	fields := []zap.Field{
		zap.String("kind", string(a.Kind)),
		zap.String("key", string(a.Key)),
		zap.Time("at", a.At),
		zap.Int64("suppressed", suppressed),
	}
	switch a.Kind {
	case domain.AnomalyClockRegression:
		r.logger.Warn("clock moved backwards, holding time", append(fields, zap.Duration("drift", a.Drift))...)
	case domain.AnomalyStoreUnavailable:
		r.logger.Error("rate limit store unavailable",
			append(fields, zap.String("resolution", string(a.Resolution)), zap.Error(a.Err))...)
	default:
		r.logger.Warn("rate limit anomaly", append(fields, zap.Error(a.Err))...)
	}
}

// TeeReporter repassa cada anomalia para todos os reporters, em ordem.
type TeeReporter []domain.Reporter

func (t TeeReporter) Report(ctx context.Context, a domain.Anomaly) {
	for _, r := range t {
		if r != nil {
			r.Report(ctx, a)
		}
	}
}
