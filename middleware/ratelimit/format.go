// utilitário pequeno para formatação rápida/consistente de valores numéricos em headers/logs.
//    Evita puxar fmt (que é mais “pesado” e genérico) só para formatação simples
// 	  Padroniza a formatação do float (strconv.FormatFloat), evitando notação científica em
//        valores comuns e mantendo o código consistente

package ratelimit

import (
	"math"
	"strconv"
	"time"
)

func formatInt(v int64) string { return strconv.FormatInt(v, 10) }

func formatFloat(v float64) string {
	// sem depender de fmt, e sem notação científica para valores comuns
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatSeconds arredonda para cima: um cliente que espera o valor do header
// nunca chega antes da hora.
func formatSeconds(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return formatInt(int64(math.Ceil(d.Seconds())))
}

// formatRetryAfter é formatSeconds com mínimo de 1 (Retry-After: 0 convida a
// repetir na hora).
func formatRetryAfter(d time.Duration) string {
	if d < time.Second {
		return "1"
	}
	return formatSeconds(d)
}

// formatRemaining trunca tokens fracionários: 1.5 tokens é 1 requisição.
func formatRemaining(v float64) string {
	return formatInt(int64(math.Floor(max(v, 0))))
}
