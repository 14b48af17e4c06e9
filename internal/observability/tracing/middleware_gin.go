package tracing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/rraasi/coin-service/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Gin context keys handlers set so the request span can be annotated.
const (
	FeatureIDKey = "feature_id"
	CoinCostKey  = "coins_cost"
)

// GinMiddleware opens a server span per request. Payment-required and
// rate-limited answers are expected outcomes and are recorded as such,
// not as span errors.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("rraasi-coin-service/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		method := strings.ToUpper(c.Request.Method)
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			ctx = withRequestBaggage(ctx, requestID)
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		}
		if actorType, _ := obscontext.ActorFromContext(c.Request.Context()); actorType != "" {
			attrs = append(attrs, attribute.String("actor.type", actorType))
		}
		if featureID := c.GetString(FeatureIDKey); featureID != "" {
			attrs = append(attrs, attribute.String("feature_id", featureID))
		}
		if cost, ok := c.Get(CoinCostKey); ok {
			if v, ok := cost.(int64); ok {
				attrs = append(attrs, attribute.Int64("coins.cost", v))
			}
		}
		if outcome := chargeOutcome(status); outcome != "" {
			attrs = append(attrs, attribute.String("coins.outcome", outcome))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
	}
}

func chargeOutcome(status int) string {
	switch status {
	case http.StatusPaymentRequired:
		return "insufficient_coins"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusConflict:
		return "concurrent_charge"
	default:
		return ""
	}
}

func withRequestBaggage(ctx context.Context, requestID string) context.Context {
	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.New(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
