package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTracedEngine(t *testing.T) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := gin.New()
	r.Use(GinMiddleware())
	return r, recorder
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestRefusedChargeIsNotASpanError(t *testing.T) {
	r, recorder := newTracedEngine(t)
	r.POST("/coins/deduct", func(c *gin.Context) {
		c.Set(FeatureIDKey, "birth_chart")
		c.Set(CoinCostKey, int64(0))
		c.JSON(http.StatusPaymentRequired, gin.H{"success": false})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/coins/deduct", nil))
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "HTTP POST /coins/deduct", span.Name())
	assert.NotEqual(t, codes.Error, span.Status().Code)

	attrs := spanAttrs(span)
	assert.Equal(t, "birth_chart", attrs["feature_id"].AsString())
	assert.Equal(t, "insufficient_coins", attrs["coins.outcome"].AsString())
	assert.Equal(t, int64(0), attrs["coins.cost"].AsInt64())
}

func TestServerFailureMarksSpan(t *testing.T) {
	r, recorder := newTracedEngine(t)
	r.GET("/coins/balance", func(c *gin.Context) {
		c.AbortWithStatus(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/coins/balance", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.NotContains(t, spanAttrs(spans[0]), attribute.Key("coins.outcome"))
}

func TestSafeAttributesDropsUnknownKeys(t *testing.T) {
	out := SafeAttributes(
		attribute.String("feature_id", "basic_chat"),
		attribute.String("user_id", "user-1"),
	)
	require.Len(t, out, 1)
	assert.Equal(t, attribute.Key("feature_id"), out[0].Key)
}
