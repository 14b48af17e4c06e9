package logger

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obstracing "github.com/rraasi/coin-service/internal/observability/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observeGlobal(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func newLoggedEngine(cfg MiddlewareConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(cfg))
	return r
}

func TestRequestLogCarriesChargeFields(t *testing.T) {
	logs := observeGlobal(t)
	r := newLoggedEngine(MiddlewareConfig{})
	r.POST("/coins/deduct", func(c *gin.Context) {
		c.Set(obstracing.FeatureIDKey, "birth_chart")
		c.Set(obstracing.CoinCostKey, int64(25))
		c.Status(http.StatusPaymentRequired)
	})

	req := httptest.NewRequest(http.MethodPost, "/coins/deduct", nil)
	req.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-Id"))
	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "birth_chart", fields["feature_id"])
	assert.EqualValues(t, 25, fields["coins_cost"])
	assert.Equal(t, "/coins/deduct", fields["route"])
	assert.Equal(t, "req-42", fields["request_id"])
}

func TestRequestLogClassifiesErrors(t *testing.T) {
	logs := observeGlobal(t)
	r := newLoggedEngine(MiddlewareConfig{
		ErrorClassifier: func(error) (string, string) { return "internal_error", "boom" },
	})
	r.GET("/coins/balance", func(c *gin.Context) {
		_ = c.Error(errors.New("db down"))
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/coins/balance", nil))

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "boom", entries[0].ContextMap()["error_code"])
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestRequestLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, requestLevel("/health", http.StatusOK, ""))
	assert.Equal(t, zapcore.DebugLevel, requestLevel("/coins/deduct", http.StatusBadRequest, "validation_error"))
	assert.Equal(t, zapcore.InfoLevel, requestLevel("/coins/deduct", http.StatusTooManyRequests, "rate_limited"))
	assert.Equal(t, zapcore.ErrorLevel, requestLevel("/coins/bonus", http.StatusServiceUnavailable, ""))
}

func TestWithContextSkipsEmptyFields(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, WithContext(t.Context(), base))
	assert.Nil(t, WithCharge(nil, "basic_chat", 0))
}
