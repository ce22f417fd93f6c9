// Package server serves the job form over HTTP: an HTML page for browsers and
// a small JSON API over the same catalog and generator.
package server

import (
	"html/template"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/researchapps/job-maker/internal/catalog"
)

// Router holds what the handlers share.
type Router struct {
	store  *catalog.Store
	logger *slog.Logger
	page   *template.Template
}

// NewRouter builds the handlers over store. The store may still be loading;
// handlers report the catalog as unavailable until it is published.
func NewRouter(store *catalog.Store, logger *slog.Logger) (*Router, error) {
	page, err := parsePage()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{store: store, logger: logger, page: page}, nil
}

// Register mounts every route on r.
func (rt *Router) Register(r *gin.Engine) {
	r.GET("/", rt.HandlerGetForm)   // GET /
	r.POST("/", rt.HandlerPostForm) // POST /
	r.GET("/healthz", rt.HandlerHealth)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/clusters", rt.HandlerListClusters)        // GET /api/v1/clusters
		v1.GET("/clusters/:cluster", rt.HandlerGetCluster) // GET /api/v1/clusters/{cluster}
		v1.POST("/scripts", rt.HandlerCreateScript)        // POST /api/v1/scripts
	}
}

// New returns a gin engine with recovery, request logging and every route.
func New(store *catalog.Store, logger *slog.Logger) (*gin.Engine, error) {
	rt, err := NewRouter(store, logger)
	if err != nil {
		return nil, err
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(rt.logger))
	rt.Register(r)
	return r, nil
}

// requestLogger logs one line per request at info level, or warn for 5xx.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelWarn
		}
		logger.LogAttrs(c.Request.Context(), level, "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("client", c.ClientIP()),
		)
	}
}
