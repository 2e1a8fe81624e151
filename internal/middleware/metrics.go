package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lms-community/lms-api/internal/service"
)

// Metrics records per-request duration and status labelled by route
// template, not raw path, to keep cardinality bounded.
func Metrics(m *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
