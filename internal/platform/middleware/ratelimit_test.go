package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// failingStore always returns an error, simulating an unreachable backend.
type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("store unavailable")
}

func newTestLimiter(store CounterStore, limits map[Class]Limit, mode FailMode) *RateLimiter {
	return NewRateLimiter(store, limits, mode, zerolog.Nop())
}

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	limits := map[Class]Limit{ClassAPI: {Requests: 10, Window: 60 * time.Second}}
	rl := newTestLimiter(NewMemoryCounterStore(), limits, FailClosed)

	for i := 1; i <= 10; i++ {
		res := rl.Check(context.Background(), "user-1", ClassAPI)
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if res.Remaining != 10-i {
			t.Errorf("request %d: remaining = %d, want %d", i, res.Remaining, 10-i)
		}
	}

	res := rl.Check(context.Background(), "user-1", ClassAPI)
	if res.Allowed {
		t.Error("11th request should be denied")
	}
	if res.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", res.Remaining)
	}
}

func TestRateLimiterFreshWindowAfterExpiry(t *testing.T) {
	limits := map[Class]Limit{ClassAPI: {Requests: 2, Window: 30 * time.Millisecond}}
	rl := newTestLimiter(NewMemoryCounterStore(), limits, FailClosed)

	rl.Check(context.Background(), "user-1", ClassAPI)
	rl.Check(context.Background(), "user-1", ClassAPI)
	if res := rl.Check(context.Background(), "user-1", ClassAPI); res.Allowed {
		t.Fatal("3rd request within window should be denied")
	}

	time.Sleep(40 * time.Millisecond)

	res := rl.Check(context.Background(), "user-1", ClassAPI)
	if !res.Allowed {
		t.Error("request after window expiry should start a fresh window")
	}
	if res.Remaining != 1 {
		t.Errorf("remaining = %d, want 1", res.Remaining)
	}
}

func TestRateLimiterSeparateIdentifiers(t *testing.T) {
	limits := map[Class]Limit{ClassAPI: {Requests: 1, Window: time.Minute}}
	rl := newTestLimiter(NewMemoryCounterStore(), limits, FailClosed)

	if res := rl.Check(context.Background(), "user-1", ClassAPI); !res.Allowed {
		t.Fatal("first request for user-1 should be allowed")
	}
	if res := rl.Check(context.Background(), "user-1", ClassAPI); res.Allowed {
		t.Error("second request for user-1 should be denied")
	}
	if res := rl.Check(context.Background(), "user-2", ClassAPI); !res.Allowed {
		t.Error("user-2 should have an independent window")
	}
}

func TestRateLimiterSeparateClasses(t *testing.T) {
	limits := map[Class]Limit{
		ClassAPI:        {Requests: 1, Window: time.Minute},
		ClassAIAnalysis: {Requests: 1, Window: time.Minute},
	}
	rl := newTestLimiter(NewMemoryCounterStore(), limits, FailClosed)

	rl.Check(context.Background(), "user-1", ClassAPI)
	if res := rl.Check(context.Background(), "user-1", ClassAPI); res.Allowed {
		t.Error("api class should be exhausted")
	}
	if res := rl.Check(context.Background(), "user-1", ClassAIAnalysis); !res.Allowed {
		t.Error("ai_analysis class should have its own counter")
	}
}

func TestRateLimiterFailOpen(t *testing.T) {
	rl := newTestLimiter(failingStore{}, DefaultLimits(), FailOpen)

	res := rl.Check(context.Background(), "user-1", ClassAPI)
	if !res.Allowed {
		t.Error("fail-open limiter should allow requests when the store is down")
	}
}

func TestRateLimiterFailClosed(t *testing.T) {
	rl := newTestLimiter(failingStore{}, DefaultLimits(), FailClosed)

	res := rl.Check(context.Background(), "user-1", ClassAPI)
	if res.Allowed {
		t.Error("fail-closed limiter should deny requests when the store is down")
	}
}

func TestFailModeForEnv(t *testing.T) {
	if FailModeForEnv("production") != FailClosed {
		t.Error("production should fail closed")
	}
	if FailModeForEnv("development") != FailOpen {
		t.Error("development should fail open")
	}
	if FailModeForEnv("staging") != FailOpen {
		t.Error("staging should fail open")
	}
}

func TestMemoryCounterStoreConcurrentIncr(t *testing.T) {
	store := NewMemoryCounterStore()

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			store.Incr(context.Background(), "shared-key", time.Minute)
		}()
	}
	wg.Wait()

	count, _, err := store.Incr(context.Background(), "shared-key", time.Minute)
	if err != nil {
		t.Fatalf("Incr: %v", err)
	}
	if count != goroutines+1 {
		t.Errorf("count = %d, want %d", count, goroutines+1)
	}
}

func TestRateLimitMiddlewareHeaders(t *testing.T) {
	limits := map[Class]Limit{ClassAPI: {Requests: 2, Window: time.Minute}}
	rl := newTestLimiter(NewMemoryCounterStore(), limits, FailClosed)

	e := echo.New()
	handler := rl.Middleware(ClassAPI)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	doRequest := func() (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		return rec, handler(c)
	}

	rec, err := doRequest()
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "2" {
		t.Errorf("X-RateLimit-Limit = %q, want 2", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "1" {
		t.Errorf("X-RateLimit-Remaining = %q, want 1", got)
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("X-RateLimit-Reset should be set")
	}

	doRequest()

	rec, err = doRequest()
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError on exhausted limit, got %v", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", httpErr.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After should be set on denial")
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}
}

func TestRateLimitMiddlewareUsesClientIPWhenUnauthenticated(t *testing.T) {
	limits := map[Class]Limit{ClassAPI: {Requests: 1, Window: time.Minute}}
	store := NewMemoryCounterStore()
	rl := newTestLimiter(store, limits, FailClosed)

	e := echo.New()
	handler := rl.Middleware(ClassAPI)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	doRequest := func(ip string) error {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
		req.Header.Set("X-Real-IP", ip)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		return handler(c)
	}

	if err := doRequest("10.0.0.1"); err != nil {
		t.Fatalf("first request from 10.0.0.1: %v", err)
	}
	if err := doRequest("10.0.0.1"); err == nil {
		t.Error("second request from same IP should be limited")
	}
	if err := doRequest("10.0.0.2"); err != nil {
		t.Errorf("request from different IP should be allowed: %v", err)
	}
}

func TestStartCleanupBlocksUntilCancelled(t *testing.T) {
	store := NewMemoryCounterStore()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		store.StartCleanup(ctx, time.Millisecond)
		close(done)
	}()

	// The loop must keep running until the context is cancelled; a caller
	// that invokes it inline would never get control back.
	select {
	case <-done:
		t.Fatal("StartCleanup returned before cancellation")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StartCleanup did not return after cancellation")
	}
}
