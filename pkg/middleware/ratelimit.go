package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/platinummonkey/folio/pkg/apperr"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// LoginRateLimitConfig returns the default budget for login attempts per client
func LoginRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Minute,
	}
}

// Limiter decides whether a keyed request may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Limit() int
	Window() time.Duration
}

// RateLimiter implements rate limiting using token bucket algorithm
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*bucket
	mu      sync.RWMutex
	now     func() time.Time
}

type bucket struct {
	tokens     int
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new in-process rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = LoginRateLimitConfig()
	}

	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Limit returns the per-window request budget
func (rl *RateLimiter) Limit() int { return rl.config.RequestsPerWindow }

// Window returns the refill window
func (rl *RateLimiter) Window() time.Duration { return rl.config.WindowDuration }

// Allow checks if a request is allowed for the given key
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	maxTokens := rl.config.RequestsPerWindow + rl.config.BurstSize

	rl.mu.Lock()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{tokens: maxTokens, lastUpdate: rl.now()}
		rl.buckets[key] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := rl.now()
	elapsed := now.Sub(b.lastUpdate)

	tokensToAdd := int(elapsed.Seconds() * float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds())
	if tokensToAdd > 0 {
		b.tokens += tokensToAdd
		if b.tokens > maxTokens {
			b.tokens = maxTokens
		}
		b.lastUpdate = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true, nil
	}

	return false, nil
}

// Cleanup removes idle buckets
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// StartCleanup starts a background goroutine to cleanup old buckets
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// KeyFunc derives the rate limit key for a request
type KeyFunc func(r *http.Request) string

// RateLimit rejects requests over the limiter's budget with 429 RATE_LIMITED.
// Limiter errors fail open.
func RateLimit(limiter Limiter, keyFn KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				observability.FromContext(r.Context()).WithError(err).Warn("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.Limit()))
			if !allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", limiter.Window().Seconds()))
				w.Header().Set("X-RateLimit-Remaining", "0")
				httputil.WriteError(w, r, apperr.New(http.StatusTooManyRequests, apperr.CodeRateLimited, "Too many requests, try again later").WithDetail("key %s", key))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
