package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/communitykit/onboardbot/internal/config"
	"github.com/communitykit/onboardbot/internal/store"
)

// RegisterRoutes attaches middleware and the ops endpoints to the given Gin
// engine. The surface is deliberately read-only; onboarding state changes
// only through chat commands.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, st *store.Store, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(RequestID())

	// 3) Structured access logging
	r.Use(Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(Recovery())

	// 5) Prometheus metrics and /metrics endpoint
	r.Use(Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 6) Compression for the JSON listings
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) CORS posture (allow all when no origins configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins: true,
			AllowMethods:    []string{"GET", "OPTIONS"},
			AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:   []string{"X-Request-ID", "Content-Length"},
			MaxAge:          12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.CORS.AllowedOrigins,
			AllowMethods:  []string{"GET", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders: []string{"X-Request-ID", "Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	// 8) Security headers
	r.Use(SecurityHeaders())

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		Fail(c, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		Fail(c, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := &Handlers{DB: db, Store: st}
	api := r.Group("/api/v1")
	{
		api.GET("/sessions/pending", h.ListPendingSessions)
		api.GET("/audit", h.ListAudit)
	}
}
