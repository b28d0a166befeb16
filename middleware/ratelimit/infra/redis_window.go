package infra

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"admission-gateway/middleware/ratelimit/domain"
)

//go:embed sliding_window.lua
var slidingWindowLua string

// slidingWindowScript roda via EVALSHA e cai para EVAL se o servidor ainda não
// tiver o script em cache.
var slidingWindowScript = redis.NewScript(slidingWindowLua)

// RedisWindowStore implementa domain.WindowStore com um sorted set por chave.
// Funciona com *redis.Client, *redis.ClusterClient ou *redis.Ring: o script só
// toca KEYS[1].
type RedisWindowStore struct {
	rdb redis.UniversalClient
}

var _ domain.WindowStore = (*RedisWindowStore)(nil)

func NewRedisWindowStore(rdb redis.UniversalClient) *RedisWindowStore {
	return &RedisWindowStore{rdb: rdb}
}

func (s *RedisWindowStore) Admit(ctx context.Context, key string, req domain.AdmitRequest) (domain.WindowState, error) {
	nowMs := req.Now.UnixMilli()
	windowMs := windowMillis(req.Window)

	res, err := slidingWindowScript.Run(ctx, s.rdb, []string{key},
		nowMs,
		nowMs-windowMs,
		req.Limit,
		req.Member,
		windowMs,
	).Slice()
	if err != nil {
		return domain.WindowState{}, err
	}
	if len(res) == 0 {
		return domain.WindowState{}, errors.New("sliding window script: empty reply")
	}

	count, ok := res[0].(int64)
	if !ok {
		return domain.WindowState{}, fmt.Errorf("sliding window script: unexpected count %T", res[0])
	}
	st := domain.WindowState{Count: int(count)}
	if len(res) > 1 {
		raw, _ := res[1].(string)
		oldest, err := parseScore(raw)
		if err != nil {
			return domain.WindowState{}, fmt.Errorf("sliding window script: %w", err)
		}
		st.Oldest = oldest
	}
	return st, nil
}

// Inspect lê a janela em um pipeline de leitura (ZCOUNT + primeiro membro).
func (s *RedisWindowStore) Inspect(ctx context.Context, key string, now time.Time, window time.Duration) (domain.WindowState, error) {
	lower := "(" + strconv.FormatInt(now.UnixMilli()-windowMillis(window), 10)

	pipe := s.rdb.Pipeline()
	countCmd := pipe.ZCount(ctx, key, lower, "+inf")
	oldestCmd := pipe.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min:   lower,
		Max:   "+inf",
		Count: 1,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.WindowState{}, err
	}

	st := domain.WindowState{Count: int(countCmd.Val())}
	if z := oldestCmd.Val(); len(z) > 0 {
		st.Oldest = time.UnixMilli(int64(z[0].Score))
	}
	return st, nil
}

func parseScore(raw string) (time.Time, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid score %q: %w", raw, err)
	}
	return time.UnixMilli(int64(f)), nil
}

// windowMillis arredonda a janela para cima em ms; o store não tem resolução menor.
func windowMillis(d time.Duration) int64 {
	ms := d.Milliseconds()
	if time.Duration(ms)*time.Millisecond < d {
		ms++
	}
	return max(ms, 1)
}
