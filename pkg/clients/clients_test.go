package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTokenBucketRateLimiter(t *testing.T) {
	now := time.Unix(0, 0)
	tb := NewTokenBucketRateLimiter(2, 2)
	tb.now = func() time.Time { return now }
	tb.lastTime = now

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	now = now.Add(500 * time.Millisecond)
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
}

func TestTokenBucketWaitHonoursContext(t *testing.T) {
	tb := NewTokenBucketRateLimiter(0.001, 1)
	require.NoError(t, tb.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}

func TestCircuitBreakerTransitions(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute}, zap.NewNop())
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Minute)
	require.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}

type requestLog struct {
	statuses []int
}

func (r *requestLog) ObserveRequest(_, _ string, status int, _ time.Duration, _ error) {
	r.statuses = append(r.statuses, status)
}

func TestHTTPClientOpensCircuitOnServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := DefaultHTTPConfig()
	cfg.EnableHTTP2 = false
	cfg.RateLimit = 0
	cfg.FailureThreshold = 2
	cfg.OpenTimeout = time.Hour
	cfg.UserAgent = "test-agent"
	obs := &requestLog{}
	client := NewHTTPClient(cfg, zap.NewNop(), WithRequestObserver(obs))
	defer client.Close()

	for i := 0; i < 2; i++ {
		req, err := client.NewRequest(context.Background(), http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	}

	req, err := client.NewRequest(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, []int{502, 502}, obs.statuses)
}
