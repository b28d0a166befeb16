// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - SlidingWindowLimiter / TokenBucketLimiter: limiters locais com estado
//     por chave em um Store particionado por shards (xxhash)
//   - DistributedLimiter: janela deslizante sobre um WindowStore compartilhado
//     (RedisWindowStore com script Lua, ou MemoryWindowStore)
//   - LogReporter / MemoryStatsStore / RedisStatsStore: anomalias e estatísticas
//   - SemaphorePool: limite de concorrência (golang.org/x/sync/semaphore)
package infra
