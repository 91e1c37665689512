// middleware/rate_limiter.go

package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/scorecache/logging"
)

// Limiter decides whether key may make another request in the current
// window. Implementations fail open when their backing store is down.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, per time.Duration) bool
}

// RateLimiter limits requests per client IP. A non-positive limit disables it.
func RateLimiter(limiter Limiter, limit int, per time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 || per <= 0 {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Duration", per.String())

		if !limiter.Allow(c, c.ClientIP(), limit, per) {
			logger.Warn("Rate limit exceeded",
				zap.String("ip", c.ClientIP()),
				zap.Int("limit", limit),
				zap.Duration("per", per))
			c.Header("Retry-After", strconv.Itoa(int(per.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		c.Next()
	}
}
