package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/acilhq/acil/internal/platform/auth"
)

// ---------------------------------------------------------------------------
// Operation classes and limits
// ---------------------------------------------------------------------------

// Class names a category of rate-limited operation. Each class carries its
// own threshold and window; the mapping is configuration, not logic.
type Class string

const (
	ClassAPI        Class = "api"
	ClassAIAnalysis Class = "ai_analysis"
	ClassUpload     Class = "upload"
)

// Limit is the threshold/window pair for one operation class.
type Limit struct {
	Requests int
	Window   time.Duration
}

// DefaultLimits returns the built-in per-class limits. AI analysis is bound
// much tighter than generic API traffic because each call fans out to a
// paid external model.
func DefaultLimits() map[Class]Limit {
	return map[Class]Limit{
		ClassAPI:        {Requests: 100, Window: time.Minute},
		ClassAIAnalysis: {Requests: 10, Window: time.Minute},
		ClassUpload:     {Requests: 20, Window: time.Minute},
	}
}

// Result carries the rate-limit decision plus the metadata callers need to
// set throttling headers and back off correctly.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// ---------------------------------------------------------------------------
// Counter store
// ---------------------------------------------------------------------------

// CounterStore is an increment-and-get-with-expiry counter. The increment
// must be atomic: the limiter never does read-then-write. A Redis INCR with
// EXPIRE satisfies this contract; the shipped implementation is in-process.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

type windowCounter struct {
	mu      sync.Mutex
	count   int64
	resetAt time.Time
}

// MemoryCounterStore implements CounterStore with per-key windows held in
// process memory.
type MemoryCounterStore struct {
	mu      sync.RWMutex
	windows map[string]*windowCounter
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{windows: make(map[string]*windowCounter)}
}

func (s *MemoryCounterStore) getOrCreate(key string) *windowCounter {
	s.mu.RLock()
	w, ok := s.windows[key]
	s.mu.RUnlock()
	if ok {
		return w
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Double-check after acquiring write lock
	if w, ok := s.windows[key]; ok {
		return w
	}
	w = &windowCounter{}
	s.windows[key] = w
	return w
}

// Incr starts a fresh window (count=1) when none exists or the current one
// has expired, otherwise increments the running count.
func (s *MemoryCounterStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	w := s.getOrCreate(key)
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if w.resetAt.IsZero() || !now.Before(w.resetAt) {
		w.count = 1
		w.resetAt = now.Add(window)
	} else {
		w.count++
	}
	return w.count, w.resetAt, nil
}

// StartCleanup removes expired windows on a periodic interval. It blocks
// until ctx is cancelled, so call it in a goroutine.
func (s *MemoryCounterStore) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, w := range s.windows {
				w.mu.Lock()
				stale := !w.resetAt.IsZero() && now.After(w.resetAt)
				w.mu.Unlock()
				if stale {
					delete(s.windows, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

// ---------------------------------------------------------------------------
// Rate limiter
// ---------------------------------------------------------------------------

// FailMode is the degrade policy when the counter store is unreachable.
type FailMode int

const (
	// FailOpen allows the request through. Used outside production so a
	// broken counter store cannot break the dev loop.
	FailOpen FailMode = iota
	// FailClosed denies the request. Used in production.
	FailClosed
)

// FailModeForEnv resolves the degrade policy from the environment name once
// at startup, so the asymmetry is visible in configuration rather than
// buried in an env check at decision time.
func FailModeForEnv(env string) FailMode {
	if env == "production" {
		return FailClosed
	}
	return FailOpen
}

// RateLimiter bounds the rate of operations per (identifier, class) key.
type RateLimiter struct {
	store    CounterStore
	limits   map[Class]Limit
	failMode FailMode
	logger   zerolog.Logger
}

func NewRateLimiter(store CounterStore, limits map[Class]Limit, failMode FailMode, logger zerolog.Logger) *RateLimiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &RateLimiter{store: store, limits: limits, failMode: failMode, logger: logger}
}

// Check records one call for the identifier under the given class and
// returns the decision. Store failures are absorbed by the fail mode and
// logged; they are never surfaced as a distinct error to the caller.
func (rl *RateLimiter) Check(ctx context.Context, identifier string, class Class) Result {
	lim, ok := rl.limits[class]
	if !ok {
		lim = rl.limits[ClassAPI]
	}

	key := identifier + ":" + string(class)
	count, resetAt, err := rl.store.Incr(ctx, key, lim.Window)
	if err != nil {
		allowed := rl.failMode == FailOpen
		rl.logger.Warn().
			Err(err).
			Str("class", string(class)).
			Bool("allowed", allowed).
			Msg("rate limit store unavailable, applying degrade policy")
		return Result{
			Allowed:   allowed,
			Remaining: 0,
			Limit:     lim.Requests,
			ResetAt:   time.Now().Add(lim.Window),
		}
	}

	remaining := lim.Requests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(lim.Requests),
		Remaining: remaining,
		Limit:     lim.Requests,
		ResetAt:   resetAt,
	}
}

// Middleware enforces the limiter for one operation class. The identifier
// is the authenticated principal when present, the client IP otherwise.
func (rl *RateLimiter) Middleware(class Class) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identifier := c.RealIP()
			if p, ok := auth.PrincipalFromContext(c.Request().Context()); ok {
				identifier = p.ID.String()
			}

			res := rl.Check(c.Request().Context(), identifier, class)

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retryAfter := secondsUntil(res.ResetAt)
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				return echo.NewHTTPError(http.StatusTooManyRequests,
					fmt.Sprintf("rate limit exceeded, retry after %d seconds", retryAfter))
			}

			return next(c)
		}
	}
}

// secondsUntil returns the number of seconds from now until t, minimum 1.
func secondsUntil(t time.Time) int {
	d := time.Until(t)
	s := int(d.Seconds())
	if s < 1 {
		return 1
	}
	return s
}
