package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeProviderError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, ""},
		{"breaker open", errors.New("circuit breaker is open"), ProviderErrorBreakerOpen},
		{"timeout", errors.New("context deadline exceeded"), ProviderErrorTimeout},
		{"rate limit", errors.New("got 429 from upstream"), ProviderErrorRateLimit},
		{"auth", errors.New("401 unauthorized"), ProviderErrorAuth},
		{"network", errors.New("connection refused"), ProviderErrorNetwork},
		{"bad request", errors.New("invalid symbol"), ProviderErrorInvalidReq},
		{"server error", errors.New("status 503"), ProviderErrorServerError},
		{"unknown", errors.New("something odd"), ProviderErrorOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeProviderError(tt.err))
		})
	}
}

func TestRecordHelpersDoNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordToolCall("market", "get_live_price", "success", 12.5)
		RecordPeerCall("risk", "validate_trade", "success", 8.0)
		RecordProviderRequest("chart", 120, nil)
		RecordProviderRequest("binance", 80, errors.New("timeout"))
		RecordTrade("BUY", true)
		RecordTrade("SELL", false)
		UpdatePortfolio(50000, 100000, 3)
		UpdatePositionValue("BTCUSDT", 15000)
		RecordPipelineRun("trade", "EXECUTED", 900)
		RecordSignalVote("technical", "BUY")
		RecordRiskDecision(true)
		RecordAuditEvent("proposal", "info")
		RecordNotification("slack", true)
		RecordMonitorTick(nil)
		RecordMonitorTick(errors.New("fetch failed"))
		RecordError("decode", "rpc")
	})
}

func TestRedisMetricsHitRate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rm := NewRedisMetrics(client)
	ctx := context.Background()

	// Miss on empty cache
	_, err := rm.Get(ctx, "quote:BTCUSDT")
	assert.ErrorIs(t, err, redis.Nil)

	// Hit after a set
	require.NoError(t, rm.Set(ctx, "quote:BTCUSDT", "67000", time.Minute))
	val, err := rm.Get(ctx, "quote:BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "67000", val)

	assert.Equal(t, int64(1), rm.hits.Load())
	assert.Equal(t, int64(1), rm.misses.Load())

	rm.ResetStats()
	assert.Equal(t, int64(0), rm.hits.Load())
	assert.Equal(t, int64(0), rm.misses.Load())
}

func TestRedisMetricsDel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rm := NewRedisMetrics(client)
	ctx := context.Background()

	require.NoError(t, rm.Set(ctx, "k", "v", 0))
	require.NoError(t, rm.Del(ctx, "k"))
	_, err := rm.Get(ctx, "k")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestHTTPMiddleware(t *testing.T) {
	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}

func TestMetricsHandlerServes(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "autofinance_")
}
