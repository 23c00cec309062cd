package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"docextract/internal/handler"
	"docextract/internal/middleware"
)

// Options carries the router's cross-cutting settings.
type Options struct {
	CORSOrigins []string
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	Logger  logrus.FieldLogger
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(docH *handler.DocumentHandler, healthH *handler.HealthHandler, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.CORS(opts.CORSOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	v1 := r.Group("/api/v1")
	v1.POST("/documents/process", docH.Process)
	v1.GET("/records", docH.ListRecords)
	v1.GET("/records/:id", docH.GetRecord)

	return r
}
