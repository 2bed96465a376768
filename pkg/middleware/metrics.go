package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/warehouse-core/pkg/metrics"
)

// unmatchedRoute labels requests no route matched, so scanners cannot grow
// the path label set.
const unmatchedRoute = "unmatched"

// probes and scrapes are not part of the API traffic
var operationalPaths = map[string]bool{
	"/metrics": true,
	"/health":  true,
	"/ready":   true,
}

// MetricsMiddleware records count, latency and the in-flight gauge of API
// requests, labelled with the gin route pattern.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if operationalPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		m.IncrementHTTPRequestsInFlight()
		defer m.DecrementHTTPRequestsInFlight()

		start := time.Now()
		c.Next()
		m.RecordHTTPRequest(c.Request.Method, routeLabel(c), c.Writer.Status(), time.Since(start))
	}
}

func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return unmatchedRoute
}

// MetricsEndpoint serves the registry of m in the Prometheus exposition format
func MetricsEndpoint(m *metrics.Metrics) gin.HandlerFunc {
	return gin.WrapH(m.Handler())
}
