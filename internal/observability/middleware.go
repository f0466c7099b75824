package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func routePath(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return c.Request.URL.Path
}

// RequestLogger logs one line per request. Metrics scrapes log at debug.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := routePath(c)

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		case path == "/metrics":
			event = logger.Debug()
		default:
			event = logger.Info()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("http_request")
	}
}

func RequestMetricsMiddleware(node string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		RecordHTTPRequest(node, c.Request.Method, routePath(c), c.Writer.Status(), time.Since(start))
	}
}
