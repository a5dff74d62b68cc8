package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/newshub-app/newshub/backend/internal/ratelimit"
	"github.com/newshub-app/newshub/backend/pkg/useragent"
)

// RateLimit gates an endpoint class with the given limiter. Keys combine the
// class with the client IP so unauthenticated attempts are throttled too.
func RateLimit(limiter ratelimit.Limiter, class string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		key := class + ":" + useragent.ExtractIPAddress(c.Request)

		result, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// A broken counter store is an infrastructure failure, not
			// an auth failure; surface it instead of masking it.
			logger.Error("rate limit check failed", zap.String("class", class), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "An error occurred. Please try again.",
			})
			return
		}

		if !result.Allowed {
			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"message":     "Too many requests. Please try again later.",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}
