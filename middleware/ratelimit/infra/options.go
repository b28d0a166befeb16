package infra

import (
	"time"

	"go.uber.org/zap"

	"admission-gateway/middleware/ratelimit/domain"
)

const (
	defaultShards               = 32
	defaultCleanupEvery         = 2 * time.Minute
	defaultKeyPrefix            = "ratelimit:"
	defaultFailClosedRetryAfter = time.Second
)

type options struct {
	clock    domain.Clock
	logger   *zap.Logger
	reporter domain.Reporter

	shards       int
	idleTTL      time.Duration
	cleanupEvery time.Duration

	keyPrefix            string
	failClosedRetryAfter time.Duration
	member               func(now time.Time) string
}

// Option configura qualquer um dos limiters deste pacote. Opções que não se
// aplicam a um limiter são ignoradas por ele.
type Option func(*options)

func WithClock(c domain.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger faz as anomalias irem para um LogReporter com esse logger,
// a menos que WithReporter também seja usado.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithReporter define quem recebe anomalias (regressão de relógio, store fora).
func WithReporter(r domain.Reporter) Option {
	return func(o *options) {
		if r != nil {
			o.reporter = r
		}
	}
}

// WithShards define quantos locks particionam o estado por chave.
// 1 equivale a um lock global.
func WithShards(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.shards = n
		}
	}
}

// WithIdleTTL define depois de quanto tempo ocioso uma chave pode ser removida.
// Valores menores que o tempo em que o estado volta a ser "novo" (janela, ou
// capacity/refill_rate) são elevados a esse mínimo.
func WithIdleTTL(d time.Duration) Option {
	return func(o *options) { o.idleTTL = d }
}

// WithCleanupEvery define o intervalo do janitor. 0 desliga a limpeza periódica
// (Run só espera o contexto acabar).
func WithCleanupEvery(d time.Duration) Option {
	return func(o *options) { o.cleanupEvery = d }
}

// WithKeyPrefix muda o prefixo das chaves no store compartilhado.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) { o.keyPrefix = prefix }
}

// WithFailClosedRetryAfter define o Retry-After sugerido quando o store está
// fora e o modo é closed.
func WithFailClosedRetryAfter(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.failClosedRetryAfter = d
		}
	}
}

// WithMemberFunc troca o gerador de membros únicos do conjunto ordenado.
func WithMemberFunc(fn func(now time.Time) string) Option {
	return func(o *options) {
		if fn != nil {
			o.member = fn
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		clock:                SystemClock{},
		shards:               defaultShards,
		cleanupEvery:         defaultCleanupEvery,
		keyPrefix:            defaultKeyPrefix,
		failClosedRetryAfter: defaultFailClosedRetryAfter,
		member:               uniqueMember,
	}
	for _, opt := range opts {
		opt(&o)
	}
	switch {
	case o.reporter != nil:
	case o.logger != nil:
		o.reporter = NewLogReporter(o.logger)
	default:
		o.reporter = domain.NopReporter{}
	}
	return o
}
