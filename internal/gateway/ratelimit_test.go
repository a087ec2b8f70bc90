package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRemoteLimiter_PerHost(t *testing.T) {
	t.Parallel()

	l := newRemoteLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 2, IdleTTL: time.Minute})
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.allow("10.0.0.1") || !l.allow("10.0.0.1") {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.allow("10.0.0.1") {
		t.Error("third request within the same instant should be limited")
	}
	if !l.allow("10.0.0.2") {
		t.Error("other hosts have their own bucket")
	}

	now = now.Add(time.Second)
	if !l.allow("10.0.0.1") {
		t.Error("bucket should refill after one second")
	}
}

func TestRemoteLimiter_DropsIdleBuckets(t *testing.T) {
	t.Parallel()

	l := newRemoteLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute})
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.allow("a")
	l.allow("b")
	if l.len() != 2 {
		t.Fatalf("buckets = %d, want 2", l.len())
	}

	now = now.Add(2 * time.Minute)
	l.allow("c")
	if l.len() != 1 {
		t.Errorf("buckets = %d, want 1 after idle sweep", l.len())
	}
}

func TestRemoteLimiter_Middleware(t *testing.T) {
	t.Parallel()

	l := newRemoteLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, IdleTTL: time.Minute})
	h := l.middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.RemoteAddr = "192.0.2.7:5555"

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("first status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestRemoteHost(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "[2001:db8::1]:443"
	if got := remoteHost(r); got != "2001:db8::1" {
		t.Errorf("remoteHost = %q", got)
	}
	r.RemoteAddr = "unix"
	if got := remoteHost(r); got != "unix" {
		t.Errorf("remoteHost = %q", got)
	}
}
