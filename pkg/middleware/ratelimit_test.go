package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/folio/pkg/apperr"
)

func TestRateLimiter_Allow(t *testing.T) {
	config := &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         2,
	}
	limiter := NewRateLimiter(config)

	now := time.Unix(1000, 0)
	limiter.now = func() time.Time { return now }

	allowed := 0
	for i := 0; i < 20; i++ {
		ok, err := limiter.Allow(context.Background(), "ip:1")
		require.NoError(t, err)
		if ok {
			allowed++
		}
	}
	assert.Equal(t, 12, allowed)

	ok, _ := limiter.Allow(context.Background(), "ip:2")
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Second)
	ok, _ = limiter.Allow(context.Background(), "ip:1")
	assert.True(t, ok, "tokens refill after the window")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Second})
	now := time.Unix(1000, 0)
	limiter.now = func() time.Time { return now }

	_, _ = limiter.Allow(context.Background(), "k")
	now = now.Add(3 * time.Second)
	limiter.Cleanup()

	limiter.mu.RLock()
	defer limiter.mu.RUnlock()
	assert.Empty(t, limiter.buckets)
}

func newMiniredisLimiter(t *testing.T, limit int) (*DistributedRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewDistributedRateLimiter(client, &RateLimitConfig{RequestsPerWindow: limit, WindowDuration: time.Minute}, "login"), mr
}

func TestDistributedRateLimiter_Allow(t *testing.T) {
	limiter, mr := newMiniredisLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "ip:10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := limiter.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := limiter.Remaining(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.Zero(t, remaining)

	assert.True(t, mr.TTL("login:ip:10.0.0.1") > 0)

	mr.FastForward(time.Minute + time.Second)
	ok, err = limiter.Allow(ctx, "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok, "window expires")
}

func TestDistributedRateLimiter_Reset(t *testing.T) {
	limiter, _ := newMiniredisLimiter(t, 1)
	ctx := context.Background()

	_, _ = limiter.Allow(ctx, "k")
	ok, _ := limiter.Allow(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, limiter.Reset(ctx, "k"))
	ok, _ = limiter.Allow(ctx, "k")
	assert.True(t, ok)

	remaining, err := limiter.Remaining(ctx, "unused")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
	assert.NoError(t, limiter.HealthCheck(ctx))
}

func TestDistributedRateLimiter_RedisDown(t *testing.T) {
	limiter, mr := newMiniredisLimiter(t, 1)
	mr.Close()

	ok, err := limiter.Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.True(t, ok, "fails open")
}

type errLimiter struct{}

func (errLimiter) Allow(context.Context, string) (bool, error) { return true, errors.New("down") }
func (errLimiter) Limit() int                                   { return 1 }
func (errLimiter) Window() time.Duration                        { return time.Second }

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Hour})
	byIP := func(r *http.Request) string { return r.RemoteAddr }

	handler := RateLimit(limiter, byIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), apperr.CodeRateLimited)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))

	t.Run("limiter error fails open", func(t *testing.T) {
		h := RateLimit(errLimiter{}, byIP)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", nil))
		assert.Equal(t, http.StatusAccepted, w.Code)
	})
}
