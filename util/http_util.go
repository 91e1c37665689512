// util/http_util.go
package util

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/scorecache/logging"
)

func RespondWithError(c *gin.Context, code int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method))
	c.JSON(code, gin.H{"error": message})
}

// ParseWindow parses a duration such as "6h". Empty returns fallback.
func ParseWindow(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	window, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid window %q: %w", raw, err)
	}
	if window <= 0 {
		return 0, fmt.Errorf("invalid window %q: must be positive", raw)
	}
	return window, nil
}
