// Package domain define contratos e tipos de domínio para controle de admissão:
// políticas (janela deslizante, token bucket, janela distribuída), a decisão
// de admissão, o relógio, o store compartilhado e os eventos de observabilidade.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar regras de negócio
// de detalhes de infraestrutura.
package domain
