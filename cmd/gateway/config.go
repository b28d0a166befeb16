package main

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"admission-gateway/middleware/ratelimit/domain"
)

type config struct {
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":8080"`
	UpstreamURL string `env:"UPSTREAM_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	TrustXFF   bool          `env:"TRUST_XFF"`
	RetryAfter time.Duration `env:"RETRY_AFTER" envDefault:"1s"`
	AddHeaders bool          `env:"ADD_RATELIMIT_HEADERS"`

	Rate        rateConfig        `envPrefix:"RATE_"`
	Stats       statsConfig       `envPrefix:"RATE_STATS_"`
	Redis       redisConfig       `envPrefix:"REDIS_"`
	Concurrency concurrencyConfig `envPrefix:"CONCURRENCY_"`
}

type rateConfig struct {
	Enabled  bool            `env:"ENABLED" envDefault:"true"`
	Strategy domain.Strategy `env:"STRATEGY" envDefault:"sliding_window"`

	// janela deslizante (local e distribuída)
	MaxRequests   int     `env:"MAX_REQUESTS" envDefault:"100"`
	WindowSeconds float64 `env:"WINDOW_SECONDS" envDefault:"60"`

	// token bucket
	Capacity   float64 `env:"CAPACITY" envDefault:"20"`
	RefillRate float64 `env:"REFILL_RATE" envDefault:"10"`

	// distribuída
	FailMode             domain.FailMode `env:"FAIL_MODE" envDefault:"open"`
	StoreTimeout         time.Duration   `env:"STORE_TIMEOUT" envDefault:"100ms"`
	FailClosedRetryAfter time.Duration   `env:"FAIL_CLOSED_RETRY_AFTER" envDefault:"1s"`
	KeyPrefix            string          `env:"KEY_PREFIX" envDefault:"ratelimit:"`

	// estado local
	Shards       int           `env:"SHARDS" envDefault:"32"`
	IdleTTL      time.Duration `env:"IDLE_TTL"`
	CleanupEvery time.Duration `env:"CLEANUP_EVERY" envDefault:"2m"`

	KeyHeader    string `env:"KEY_HEADER" envDefault:"X-User-Id"`
	AdminEnabled bool   `env:"ADMIN_ENABLED"`
}

type statsConfig struct {
	Enabled   bool          `env:"ENABLED"`
	Prefix    string        `env:"PREFIX" envDefault:"ratelimit:stats"`
	TTL       time.Duration `env:"TTL" envDefault:"24h"`
	Bucket    string        `env:"BUCKET" envDefault:"minute"`
	TrackKeys bool          `env:"TRACK_KEYS"`
}

type redisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type concurrencyConfig struct {
	Max     int           `env:"MAX" envDefault:"100"`
	Timeout time.Duration `env:"TIMEOUT"`
}

// loadConfig lê .env (se existir) e depois o ambiente do processo.
func loadConfig() (config, error) {
	_ = godotenv.Load()
	return parseConfig(env.Options{})
}

func parseConfig(opts env.Options) (config, error) {
	cfg, err := env.ParseAsWithOptions[config](opts)
	if err != nil {
		return config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c config) validate() error {
	u, err := url.Parse(c.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid UPSTREAM_URL %q: scheme and host are required", c.UpstreamURL)
	}
	if c.Concurrency.Max < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if c.Rate.Shards <= 0 {
		return errors.New("RATE_SHARDS must be > 0")
	}
	if c.Rate.Enabled {
		if err := c.Rate.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (r rateConfig) validate() error {
	switch r.Strategy {
	case domain.StrategySlidingWindow:
		return r.slidingWindow().Validate()
	case domain.StrategyTokenBucket:
		return r.tokenBucket().Validate()
	case domain.StrategyDistributedSlidingWindow:
		return r.distributed().Validate()
	default:
		return fmt.Errorf("%w: unknown strategy %q", domain.ErrInvalidPolicy, r.Strategy)
	}
}

func (r rateConfig) slidingWindow() domain.SlidingWindowPolicy {
	return domain.SlidingWindowPolicy{
		MaxRequests: r.MaxRequests,
		Window:      domain.WindowFromSeconds(r.WindowSeconds),
	}
}

func (r rateConfig) tokenBucket() domain.TokenBucketPolicy {
	return domain.TokenBucketPolicy{Capacity: r.Capacity, RefillRate: r.RefillRate}
}

func (r rateConfig) distributed() domain.DistributedPolicy {
	return domain.DistributedPolicy{
		SlidingWindowPolicy: r.slidingWindow(),
		FailMode:            r.FailMode,
		StoreTimeout:        r.StoreTimeout,
	}
}
