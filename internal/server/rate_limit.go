package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rraasi/coin-service/internal/observability/logger"
	"github.com/rraasi/coin-service/internal/ratelimit"
	"go.uber.org/zap"
)

// ChargeRateLimit spends one token from the caller's bucket before a charge.
// Without redis the route is unthrottled.
func (s *Server) ChargeRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.chargeLimiter.Enabled() {
			c.Next()
			return
		}

		identity, ok := identityFrom(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		ctx := c.Request.Context()

		res, err := s.chargeLimiter.Allow(ctx, endpoint, identity.UID)
		if err != nil {
			logger.FromContext(ctx).Warn("charge rate limit check failed", zap.Error(err))
			AbortWithError(c, err)
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			denyChargeRateLimit(c, endpoint, res)
			return
		}

		c.Next()
	}
}

func denyChargeRateLimit(c *gin.Context, endpoint string, res *ratelimit.Result) {
	logger.FromContext(c.Request.Context()).Warn("charge rate limit exceeded",
		zap.String("endpoint", endpoint),
	)

	retryAfter := int(res.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	AbortWithError(c, ratelimit.ErrRateLimited)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
