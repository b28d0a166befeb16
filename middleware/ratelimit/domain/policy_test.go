package domain_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admission-gateway/middleware/ratelimit/domain"
)

func TestSlidingWindowPolicy_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, domain.SlidingWindowPolicy{MaxRequests: 1, Window: time.Second}.Validate())

	for name, p := range map[string]domain.SlidingWindowPolicy{
		"zero requests":     {MaxRequests: 0, Window: time.Second},
		"negative requests": {MaxRequests: -3, Window: time.Second},
		"zero window":       {MaxRequests: 5},
		"negative window":   {MaxRequests: 5, Window: -time.Second},
	} {
		err := p.Validate()
		assert.ErrorIs(t, err, domain.ErrInvalidPolicy, name)
	}
}

func TestTokenBucketPolicy_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, domain.TokenBucketPolicy{Capacity: 0.5, RefillRate: 0.001}.Validate())

	for name, p := range map[string]domain.TokenBucketPolicy{
		"zero capacity":   {Capacity: 0, RefillRate: 1},
		"zero rate":       {Capacity: 10, RefillRate: 0},
		"negative rate":   {Capacity: 10, RefillRate: -1},
		"nan capacity":    {Capacity: math.NaN(), RefillRate: 1},
		"infinite rate":   {Capacity: 10, RefillRate: math.Inf(1)},
		"infinite bucket": {Capacity: math.Inf(1), RefillRate: 1},
	} {
		assert.ErrorIs(t, p.Validate(), domain.ErrInvalidPolicy, name)
	}
}

func TestTokenBucketPolicy_FullAfter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5*time.Second, domain.TokenBucketPolicy{Capacity: 10, RefillRate: 2}.FullAfter())
	assert.Equal(t, time.Duration(math.MaxInt64), domain.TokenBucketPolicy{Capacity: 1e12, RefillRate: 1e-12}.FullAfter())
}

func TestDistributedPolicy_Validate(t *testing.T) {
	t.Parallel()

	valid := domain.DistributedPolicy{
		SlidingWindowPolicy: domain.SlidingWindowPolicy{MaxRequests: 3, Window: 10 * time.Second},
		FailMode:            domain.FailClosed,
		StoreTimeout:        50 * time.Millisecond,
	}
	require.NoError(t, valid.Validate())

	noMode := valid
	noMode.FailMode = ""
	assert.ErrorIs(t, noMode.Validate(), domain.ErrInvalidPolicy)

	noTimeout := valid
	noTimeout.StoreTimeout = 0
	assert.ErrorIs(t, noTimeout.Validate(), domain.ErrInvalidPolicy)

	badWindow := valid
	badWindow.MaxRequests = 0
	assert.ErrorIs(t, badWindow.Validate(), domain.ErrInvalidPolicy)
}

func TestFailMode_UnmarshalText(t *testing.T) {
	t.Parallel()

	var m domain.FailMode
	require.NoError(t, m.UnmarshalText([]byte(" Closed ")))
	assert.Equal(t, domain.FailClosed, m)
	require.NoError(t, m.UnmarshalText([]byte("open")))
	assert.Equal(t, domain.FailOpen, m)
	assert.ErrorIs(t, m.UnmarshalText([]byte("sometimes")), domain.ErrInvalidPolicy)
}

func TestStrategy_UnmarshalText(t *testing.T) {
	t.Parallel()

	var s domain.Strategy
	require.NoError(t, s.UnmarshalText([]byte("redis")))
	assert.Equal(t, domain.StrategyDistributedSlidingWindow, s)
	require.NoError(t, s.UnmarshalText([]byte("TOKEN_BUCKET")))
	assert.Equal(t, domain.StrategyTokenBucket, s)
	assert.Error(t, s.UnmarshalText([]byte("leaky")))
}

func TestWindowFromSeconds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1500*time.Millisecond, domain.WindowFromSeconds(1.5))
	assert.Equal(t, time.Minute, domain.WindowFromSeconds(60))
}

func TestReason_Degraded(t *testing.T) {
	t.Parallel()

	assert.False(t, domain.ReasonPolicy.Degraded())
	assert.True(t, domain.ReasonFailOpen.Degraded())
	assert.True(t, domain.ReasonFailClosed.Degraded())
	assert.Equal(t, domain.Decision{Allowed: false, RetryAfter: time.Second, Reason: domain.ReasonPolicy}, domain.Deny(time.Second))
}
