package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"moveon-server/services/messaging-api/internal/infrastructure/metrics"
)

// Metrics records HTTP request counts and latency.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordRequest(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start).Seconds(),
		)
	}
}
