package observability

import (
	"net/http"
	"time"

	"github.com/danmuck/iggywire/internal/auth"
	"github.com/danmuck/iggywire/internal/protocol/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const Version = "0.1.0"

// SessionSource lists live sessions for the status endpoints.
type SessionSource interface {
	Sessions() []session.Stats
}

// NewRouter builds the metrics and status router for one node. A non-nil guard
// protects /sessions; /health and /metrics stay open for probes and scrapers.
func NewRouter(node string, corsOrigins []string, sessions SessionSource, guard auth.Validator) *gin.Engine {
	RegisterMetrics()
	appeared := time.Now()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log.Logger))
	r.Use(RequestMetricsMiddleware(node))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(appeared).String(),
			"service": node,
			"version": Version,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	status := r.Group("/")
	if guard != nil {
		status.Use(auth.Middleware(guard))
	}
	status.GET("/sessions", func(c *gin.Context) {
		list := []session.Stats{}
		if sessions != nil {
			list = append(list, sessions.Sessions()...)
		}
		c.JSON(http.StatusOK, gin.H{
			"count":    len(list),
			"sessions": list,
		})
	})
	return r
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
