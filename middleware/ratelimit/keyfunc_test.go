package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDefaultKeyFunc_PrefersHeaderWhenSet(t *testing.T) {
	fn := DefaultKeyFunc("X-Client", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Client", " client-123 ")

	if got := fn(r); got != "client-123" {
		t.Fatalf("expected header key, got %q", got)
	}
}

func TestDefaultKeyFunc_TrustXForwardedForUsesFirstIP(t *testing.T) {
	fn := DefaultKeyFunc("", true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	if got := fn(r); got != "1.2.3.4" {
		t.Fatalf("expected first XFF ip, got %q", got)
	}
}

func TestDefaultKeyFunc_FallbacksToRemoteAddrHost(t *testing.T) {
	fn := DefaultKeyFunc("", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"

	if got := fn(r); got != "10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestDefaultKeyFunc_IgnoresXForwardedForWhenNotTrusted(t *testing.T) {
	fn := DefaultKeyFunc("X-User-Id", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-User-Id", "   ")
	r.Header.Set("X-Forwarded-For", "1.2.3.4")

	if got := fn(r); got != "10.0.0.9" {
		t.Fatalf("expected remote host when header is blank and XFF untrusted, got %q", got)
	}
}

func TestDefaultKeyFunc_UserIdBeatsForwardedAndRemoteAddr(t *testing.T) {
	fn := DefaultKeyFunc("X-User-Id", true)

	// o mesmo usuário vindo de dois IPs diferentes divide a cota
	for _, remote := range []string{"10.0.0.1:1111", "192.168.1.7:2222"} {
		r := httptest.NewRequest(http.MethodPost, "http://example/orders", nil)
		r.RemoteAddr = remote
		r.Header.Set("X-User-Id", "user-42")
		r.Header.Set("X-Forwarded-For", "1.2.3.4")

		if got := fn(r); got != "user-42" {
			t.Fatalf("expected user id from %s, got %q", remote, got)
		}
	}
}

func TestDefaultKeyFunc_MissingUserIdFallsBackToClientIP(t *testing.T) {
	fn := DefaultKeyFunc("X-User-Id", true)

	r := httptest.NewRequest(http.MethodPost, "http://example/orders", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", " 203.0.113.5 ,10.0.0.9")

	if got := fn(r); got != "203.0.113.5" {
		t.Fatalf("expected forwarded client ip, got %q", got)
	}
}
