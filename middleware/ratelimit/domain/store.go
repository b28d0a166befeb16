package domain

import (
	"context"
	"time"
)

// WindowStore é o store compartilhado (conjunto ordenado por score em ms) usado
// pela janela deslizante distribuída.
//
// Admit deve executar como uma unidade atômica no servidor:
// remover scores <= Now-Window, contar, inserir Member se count < Limit e
// renovar a expiração da chave para Window.
type WindowStore interface {
	Admit(ctx context.Context, key string, req AdmitRequest) (WindowState, error)
	// Inspect lê o estado sem alterar nada.
	Inspect(ctx context.Context, key string, now time.Time, window time.Duration) (WindowState, error)
}

type AdmitRequest struct {
	Now    time.Time
	Window time.Duration
	Limit  int
	Member string
}

// WindowState é o que o store viu dentro da janela.
type WindowState struct {
	// Count é a quantidade de entradas vivas antes da inserção.
	Count int
	// Oldest é o score da entrada mais antiga ainda viva (zero se vazia).
	Oldest time.Time
}
