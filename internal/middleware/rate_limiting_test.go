package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/metrics"

	"github.com/go-redis/redis_rate/v9"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRateLimiter struct {
	allowed int
	calls   int
	keys    []string
	err     error
}

func (l *testRateLimiter) Allow(_ context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	l.calls++
	l.keys = append(l.keys, key)
	if l.err != nil {
		return nil, l.err
	}
	if l.calls > l.allowed {
		return &redis_rate.Result{Limit: limit, Allowed: 0, RetryAfter: 2 * time.Second}, nil
	}
	return &redis_rate.Result{Limit: limit, Allowed: 1, Remaining: l.allowed - l.calls}, nil
}

func TestRateLimit(t *testing.T) {
	limiter := &testRateLimiter{allowed: 2}
	metricsManager := metrics.NewTestManager()
	handler := RateLimit(limiter, metricsManager, "api", 2)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	serve := func(method string) int {
		req, err := http.NewRequest(method, "/favorites/1/toggle", nil)
		require.NoError(t, err)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, serve("POST"))
	assert.Equal(t, http.StatusOK, serve("PUT"))
	assert.Equal(t, http.StatusTooManyRequests, serve("POST"))
	// reads are not limited
	assert.Equal(t, http.StatusOK, serve("GET"))

	assert.Equal(t, 3, limiter.calls)
	assert.Equal(t, "gymtracker::rate::api", limiter.keys[0])
	assert.Equal(t, float64(1), testutil.ToFloat64(metricsManager.CounterRateLimitedRequests))
}

func TestRateLimit_LimiterError(t *testing.T) {
	limiter := &testRateLimiter{err: errors.New("redis down")}
	handler := RateLimit(limiter, nil, "api", 10)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	req, err := http.NewRequest("DELETE", "/favorites/1", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
