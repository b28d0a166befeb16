package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admission-gateway/middleware/ratelimit/domain"
)

func TestMemoryStatsStore_Record(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	events := []domain.StatsEvent{
		{Key: "a", Allowed: true, Reason: domain.ReasonPolicy, Method: "GET", Path: "/orders"},
		{Key: "a", Allowed: false, Reason: domain.ReasonPolicy, Method: "GET", Path: "/orders"},
		{Key: "b", Allowed: true, Reason: domain.ReasonFailOpen, Method: "POST", Path: "/orders"},
		{Key: "b", Allowed: false, Reason: domain.ReasonFailClosed, Method: "POST", Path: "/orders"},
	}
	for _, ev := range events {
		require.NoError(t, s.Record(ctx, ev))
	}

	assert.Equal(t, Counters{Allowed: 2, Denied: 2, Degraded: 2}, s.Total())
	assert.Equal(t, Counters{Allowed: 1, Denied: 1}, s.ByRoute()["GET /orders"])
	assert.Equal(t, Counters{Allowed: 1, Denied: 1, Degraded: 2}, s.ByKey()["b"])
}

func TestMemoryStatsStore_KeysNotTrackedByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	require.NoError(t, s.Record(context.Background(), domain.StatsEvent{Key: "a", Allowed: true}))
	assert.Empty(t, s.ByKey())
}

func TestRedisStatsStore_Record(t *testing.T) {
	mr, rdb := newMiniredis(t)
	s := NewRedisStatsStore(rdb, WithStatsPrefix("rl:stats:"), WithStatsTrackKeys(true), WithStatsTTL(time.Hour))
	ctx := context.Background()
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "u1", Allowed: true, Reason: domain.ReasonPolicy, Method: "GET", Path: "/x", At: at}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{Key: "u1", Allowed: false, Reason: domain.ReasonFailClosed, Method: "GET", Path: "/x", At: at}))

	total, err := s.Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counters{Allowed: 1, Denied: 1, Degraded: 1}, total)

	minute := s.MinuteKey(at)
	assert.Equal(t, "rl:stats:minute:202603040506", minute)
	assert.Equal(t, "1", mr.HGet(minute, "degraded"))
	assert.Equal(t, time.Hour, mr.TTL(minute))

	assert.Equal(t, "1", mr.HGet("rl:stats:route", "GET /x:denied"))
	assert.Equal(t, "1", mr.HGet("rl:stats:key:u1", "allowed"))
}

func TestRedisStatsStore_NilClientIsNoop(t *testing.T) {
	var s *RedisStatsStore
	assert.NoError(t, s.Record(context.Background(), domain.StatsEvent{Allowed: true}))
}
