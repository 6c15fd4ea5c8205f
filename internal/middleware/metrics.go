package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/javandres/bultti-inspections-api/internal/service"
)

// Metrics records per-request method/route/status/duration observations.
// The route template is used when gin resolved one, so /inspections/:id
// stays a single series regardless of the concrete id.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
