package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterRejectsOverLimit(t *testing.T) {
	rl := NewRateLimiter(2, discardLogger())
	t.Cleanup(rl.Stop)

	next := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		next.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := serve("10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := serve("10.0.0.1:5678"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for same IP, got %d", code)
	}
	if code := serve("10.0.0.2:1234"); code != http.StatusOK {
		t.Fatalf("expected other IP to be allowed, got %d", code)
	}
}

func TestRateLimiterCleanupDropsIdleEntries(t *testing.T) {
	rl := NewRateLimiter(10, discardLogger())
	t.Cleanup(rl.Stop)

	rl.limiterFor("10.0.0.1")
	rl.cleanup(time.Now())
	if rl.size() != 1 {
		t.Fatalf("expected active entry to be kept, got %d", rl.size())
	}

	rl.cleanup(time.Now().Add(3 * rl.cleanupInterval))
	if rl.size() != 0 {
		t.Fatalf("expected idle entry to be evicted, got %d", rl.size())
	}
}

func TestLoginIsRateLimitedThroughRouter(t *testing.T) {
	app := newTestApp(t, withRateLimit(1))

	if rec := app.do(t, "/login", nil); rec.Code != http.StatusFound {
		t.Fatalf("expected first login to redirect, got %d", rec.Code)
	}
	rec := app.do(t, "/login", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestLoginLimitIgnoresSpoofedForwardingHeaders(t *testing.T) {
	app := newTestApp(t, withRateLimit(2))

	rejected := 0
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i))
		rec := httptest.NewRecorder()
		app.handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			rejected++
		}
	}
	if rejected != 8 {
		t.Fatalf("expected 8 of 10 requests from one peer to be rejected, got %d", rejected)
	}
}

func TestLoginLimitHonorsForwardingHeadersWhenTrusted(t *testing.T) {
	app := newTestApp(t, withRateLimit(1), withTrustedProxyHeaders())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.RemoteAddr = "192.0.2.10:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		app.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusFound {
			t.Fatalf("client %d: expected redirect, got %d", i, rec.Code)
		}
	}
}
