package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"admission-gateway/middleware/ratelimit/domain"
)

type fakeLimiter struct {
	dec   domain.Decision
	calls int
}

func (f *fakeLimiter) Check(context.Context, domain.Key) domain.Decision {
	f.calls++
	return f.dec
}

type fakePeeker struct {
	fakeLimiter
	usage domain.Usage
	err   error
}

func (f *fakePeeker) Peek(context.Context, domain.Key) (domain.Usage, error) { return f.usage, f.err }

func TestService_Decide_AllowsWhenNoLimiter(t *testing.T) {
	svc := Service{}
	dec := svc.Decide(context.Background(), "k")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_AllowsWhenLimiterAllows(t *testing.T) {
	lim := &fakeLimiter{dec: domain.Allow()}
	svc := Service{Limiter: lim, RetryAfter: 5 * time.Second}
	dec := svc.Decide(context.Background(), "k")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if lim.calls != 1 {
		t.Fatalf("expected one Check, got %d", lim.calls)
	}
}

func TestService_Decide_KeepsLimiterEstimate(t *testing.T) {
	svc := Service{Limiter: &fakeLimiter{dec: domain.Deny(55 * time.Second)}, RetryAfter: 2 * time.Second}
	dec := svc.Decide(context.Background(), "k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 55*time.Second {
		t.Fatalf("expected limiter RetryAfter=55s, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_BlocksWithRetryAfterDefault(t *testing.T) {
	svc := Service{Limiter: &fakeLimiter{dec: domain.Deny(0)}}
	dec := svc.Decide(context.Background(), "k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 1*time.Second {
		t.Fatalf("expected default RetryAfter=1s, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_BlocksWithConfiguredRetryAfter(t *testing.T) {
	svc := Service{Limiter: &fakeLimiter{dec: domain.Deny(0)}, RetryAfter: 2500 * time.Millisecond}
	dec := svc.Decide(context.Background(), "k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 2500*time.Millisecond {
		t.Fatalf("expected RetryAfter=2.5s, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_KeepsDegradedReason(t *testing.T) {
	svc := Service{Limiter: &fakeLimiter{dec: domain.Decision{Allowed: true, Reason: domain.ReasonFailOpen}}}
	dec := svc.Decide(context.Background(), "k")
	if !dec.Allowed || dec.Reason != domain.ReasonFailOpen {
		t.Fatalf("expected fail_open decision to pass through, got %+v", dec)
	}
}

func TestService_Usage(t *testing.T) {
	if _, ok, _ := (Service{Limiter: &fakeLimiter{}}).Usage(context.Background(), "k"); ok {
		t.Fatalf("expected ok=false for limiter without Peek")
	}

	p := &fakePeeker{usage: domain.Usage{Key: "k", Limit: 5, Used: 2, Remaining: 3}}
	u, ok, err := Service{Limiter: p}.Usage(context.Background(), "k")
	if !ok || err != nil {
		t.Fatalf("expected usage, got ok=%v err=%v", ok, err)
	}
	if u.Remaining != 3 {
		t.Fatalf("expected remaining=3, got %v", u.Remaining)
	}
	if p.calls != 0 {
		t.Fatalf("Usage must not call Check")
	}

	p.err = domain.ErrStoreUnavailable
	if _, _, err := (Service{Limiter: p}).Usage(context.Background(), "k"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected store error, got %v", err)
	}
}
