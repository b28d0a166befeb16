package domain

import "errors"

var (
	// ErrInvalidPolicy: valores de política inválidos. Só acontece na construção.
	ErrInvalidPolicy = errors.New("invalid rate limit policy")
	// ErrClockRegression: o relógio andou para trás. Nunca é devolvido ao
	// chamador de Check; vai para o Reporter.
	ErrClockRegression = errors.New("clock moved backwards")
	// ErrStoreUnavailable: o store compartilhado não respondeu dentro do
	// store_timeout. Check absorve o erro no modo de falha configurado.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
)
