package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

// Key identifica quem está sendo limitado (usuário, API key, IP).
// Duas chaves diferentes nunca compartilham estado.
type Key string

// Reason explica de onde veio uma decisão.
type Reason string

const (
	// ReasonPolicy é a decisão normal do algoritmo (cota respeitada ou esgotada).
	ReasonPolicy Reason = "policy"
	// ReasonFailOpen: o store compartilhado falhou e a política é liberar.
	ReasonFailOpen Reason = "fail_open"
	// ReasonFailClosed: o store compartilhado falhou e a política é negar.
	ReasonFailClosed Reason = "fail_closed"
)

// Degraded indica que a decisão não veio do algoritmo, e sim do modo de falha.
func (r Reason) Degraded() bool {
	return r == ReasonFailOpen || r == ReasonFailClosed
}

// Decision é o veredito de admissão de uma chamada.
//
// Negar não é erro: Allowed=false é o resultado esperado quando a cota acaba.
type Decision struct {
	Allowed bool
	// RetryAfter é uma estimativa (limite inferior) de quando uma nova tentativa
	// deve passar. Só é preenchido quando Allowed=false.
	RetryAfter time.Duration
	Reason     Reason
}

// Allow monta uma decisão positiva do algoritmo.
func Allow() Decision {
	return Decision{Allowed: true, Reason: ReasonPolicy}
}

// Deny monta uma decisão negativa do algoritmo.
func Deny(retryAfter time.Duration) Decision {
	return Decision{Allowed: false, RetryAfter: retryAfter, Reason: ReasonPolicy}
}

// Limiter decide se uma operação da chave pode prosseguir agora.
//
// Implementações devem ser seguras para uso concorrente e serializar as
// chamadas de uma mesma chave.
type Limiter interface {
	Check(ctx context.Context, key Key) Decision
}

// Peeker expõe o uso atual de uma chave sem consumir cota.
type Peeker interface {
	Peek(ctx context.Context, key Key) (Usage, error)
}

// Usage é um retrato somente-leitura do estado de uma chave.
type Usage struct {
	Key      Key
	Strategy Strategy
	// Limit é max_requests (janela) ou capacity (bucket).
	Limit float64
	// Used é o número de requisições vivas na janela, ou tokens consumidos.
	Used      float64
	Remaining float64
	// ResetAfter: na janela, quando a entrada mais antiga expira; no bucket,
	// quando o balde volta a ficar cheio. Zero se não há nada a devolver.
	ResetAfter time.Duration
}

// Clock é a única fonte de tempo dos algoritmos.
type Clock interface {
	Now() time.Time
}
