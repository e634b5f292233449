package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(t *testing.T, requests int, window time.Duration, burst int) (*Limiter, *fakeClock) {
	t.Helper()
	l := NewLimiter(requests, window, burst)
	t.Cleanup(l.Close)
	clk := &fakeClock{t: time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC)}
	l.now = clk.Now
	return l, clk
}

func TestLimiter_Allow(t *testing.T) {
	// 5 requests per minute, burst of 5.
	l, _ := newTestLimiter(t, 5, time.Minute, 5)
	for i := range 5 {
		r := l.Allow("k")
		if !r.Allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
		if r.Limit != 5 {
			t.Errorf("Limit = %d, want 5", r.Limit)
		}
		if r.Remaining != 4-i {
			t.Errorf("request %d: Remaining = %d, want %d", i+1, r.Remaining, 4-i)
		}
	}
	r := l.Allow("k")
	if r.Allowed {
		t.Error("6th request should be rate limited")
	}
	if r.RetryAfter < time.Second {
		t.Errorf("RetryAfter = %v, want >= 1s", r.RetryAfter)
	}
}

func TestLimiter_Refill(t *testing.T) {
	l, clk := newTestLimiter(t, 60, time.Minute, 1)
	if !l.Allow("k").Allowed {
		t.Fatal("first request denied")
	}
	if l.Allow("k").Allowed {
		t.Fatal("second request allowed with an empty bucket")
	}
	clk.Advance(time.Second)
	if !l.Allow("k").Allowed {
		t.Error("request denied after refill")
	}
}

func TestLimiter_DifferentKeys(t *testing.T) {
	l, _ := newTestLimiter(t, 2, time.Minute, 2)
	l.Allow("a")
	l.Allow("a")
	if l.Allow("a").Allowed {
		t.Error("a should be limited")
	}
	if !l.Allow("b").Allowed {
		t.Error("b should have its own bucket")
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	l, clk := newTestLimiter(t, 60, time.Minute, 5)
	l.Allow("a")
	clk.Advance(time.Minute)
	l.Allow("b")
	clk.Advance(10 * time.Minute)
	l.cleanup(10 * time.Minute)
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want only the recent bucket", l.Len())
	}
}

func TestConfig_Match(t *testing.T) {
	c := NewConfig(60, 6)
	defer c.Close()
	tests := []struct {
		method, path string
		want         string
	}{
		{"GET", "/api/notes", "read"},
		{"GET", "/api/notes/2024-0-15", "read"},
		{"POST", "/api/notes", "write"},
		{"PUT", "/api/notes/2024-0-15", "write"},
		{"POST", "/api/notes/restore", "write"},
		{"GET", "/health", ""},
		{"OPTIONS", "/api/notes", ""},
	}
	for _, tt := range tests {
		got := ""
		if tier := c.Match(tt.method, tt.path); tier != nil {
			got = tier.Name
		}
		if got != tt.want {
			t.Errorf("Match(%s %s) = %q, want %q", tt.method, tt.path, got, tt.want)
		}
	}
	var nilCfg *Config
	if nilCfg.Match("GET", "/api/notes") != nil {
		t.Error("nil Config should not limit")
	}
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewResponseWriter(rec, Result{Allowed: false, Limit: 10, Remaining: 0, ResetAt: time.Unix(1700000000, 0), RetryAfter: 3 * time.Second})
	w.WriteHeader(http.StatusTooManyRequests)
	h := rec.Result().Header
	if h.Get("X-RateLimit-Limit") != "10" || h.Get("X-RateLimit-Remaining") != "0" || h.Get("X-RateLimit-Reset") != "1700000000" || h.Get("Retry-After") != "3" {
		t.Errorf("headers = %v", h)
	}
	rec = httptest.NewRecorder()
	w = NewResponseWriter(rec, Result{Allowed: true, Limit: 10, Remaining: 9})
	_, _ = w.Write([]byte("ok"))
	if rec.Result().Header.Get("Retry-After") != "" {
		t.Error("Retry-After set on an allowed response")
	}
	if rec.Result().Header.Get("X-RateLimit-Remaining") != "9" {
		t.Error("headers not injected on Write")
	}
}

func TestBuildKey(t *testing.T) {
	if got := BuildKey("10.0.0.1", "read"); got != "ip:10.0.0.1:read" {
		t.Errorf("BuildKey() = %q", got)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 1},
		{100 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{6 * time.Second, 6},
	}
	for _, tt := range tests {
		if got := RetryAfterSeconds(Result{RetryAfter: tt.in}); got != tt.want {
			t.Errorf("RetryAfterSeconds(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
