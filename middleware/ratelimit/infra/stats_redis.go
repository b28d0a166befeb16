package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"admission-gateway/middleware/ratelimit/domain"
)

// RedisStatsStore grava contadores de decisão em hashes:
//
//	<prefix>:total              allowed | denied | degraded
//	<prefix>:minute:<yyyymmddhhmm>
//	<prefix>:route              "<METHOD> <path>:<campo>"
//	<prefix>:key:<key>          (opcional)
type RedisStatsStore struct {
	rdb redis.UniversalClient

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

var _ domain.StatsStore = (*RedisStatsStore)(nil)

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	degraded := ev.Reason.Degraded()

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.totalKey(), field, 1)
	if degraded {
		pipe.HIncrBy(ctx, s.totalKey(), "degraded", 1)
	}

	if s.bucket == "minute" {
		bucketKey := s.MinuteKey(at)
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if degraded {
			pipe.HIncrBy(ctx, bucketKey, "degraded", 1)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if ev.Method != "" || ev.Path != "" {
		routeKey := s.prefix + ":route"
		routeField := strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path)
		routeField = strings.TrimSpace(routeField)
		if routeField != "" {
			pipe.HIncrBy(ctx, routeKey, routeField+":"+field, 1)
		}
	}

	if s.trackKeys {
		k := strings.TrimSpace(string(ev.Key))
		if k != "" {
			keyKey := s.prefix + ":key:" + k
			pipe.HIncrBy(ctx, keyKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, keyKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// MinuteKey é a chave do bucket de um minuto (UTC).
func (s *RedisStatsStore) MinuteKey(at time.Time) string {
	return fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
}

func (s *RedisStatsStore) totalKey() string { return s.prefix + ":total" }

// Total lê os contadores cumulativos.
func (s *RedisStatsStore) Total(ctx context.Context) (Counters, error) {
	vals, err := s.rdb.HGetAll(ctx, s.totalKey()).Result()
	if err != nil {
		return Counters{}, err
	}
	var c Counters
	for field, dst := range map[string]*int64{"allowed": &c.Allowed, "denied": &c.Denied, "degraded": &c.Degraded} {
		if v, ok := vals[field]; ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return Counters{}, fmt.Errorf("stats field %s: %w", field, err)
			}
			*dst = n
		}
	}
	return c, nil
}
