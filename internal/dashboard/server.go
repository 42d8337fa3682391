// Package dashboard serves the oversold screener over HTTP: a JSON API, an
// HTML overview page, a manual refresh endpoint and Prometheus metrics.
package dashboard

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guregu/null/v6"

	"ReversalFlow/internal/cache"
	"ReversalFlow/internal/collector"
	"ReversalFlow/internal/metrics"
	"ReversalFlow/internal/store"
	"ReversalFlow/internal/strategy"
)

//go:embed templates/*.html
var templateFS embed.FS

// Refresher runs an on-demand stale refresh. Implemented by *scheduler.Scheduler.
type Refresher interface {
	Refresh(ctx context.Context) (collector.Results, error)
}

// Server wires the read path and refresh control onto a gin router.
type Server struct {
	Router *gin.Engine

	reader    store.Reader
	cache     *cache.QueryCache
	refresher Refresher
	engine    *strategy.Engine
	metrics   *metrics.Metrics
}

// NewServer builds the router. m may be nil, in which case /metrics is 404.
func NewServer(reader store.Reader, qc *cache.QueryCache, refresher Refresher, engine *strategy.Engine, m *metrics.Metrics) (*Server, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	s := &Server{
		Router:    router,
		reader:    reader,
		cache:     qc,
		refresher: refresher,
		engine:    engine,
		metrics:   m,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Router.GET("/", s.handleIndex)
	s.Router.GET("/healthz", s.handleHealth)
	s.Router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := s.Router.Group("/api/v1")
	{
		v1.GET("/stocks/:symbol/history", s.handleHistory)
		v1.GET("/snapshot", s.handleSnapshot)
		v1.GET("/oversold", s.handleOversold)
		v1.GET("/overview", s.handleOverview)
		v1.POST("/refresh", s.handleRefresh)
	}
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.Router }

// NewHTTPServer wraps the router with timeouts. Refresh can take minutes
// under the provider rate gate, so the write timeout is generous.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/metrics" || c.Request.URL.Path == "/healthz" {
			return
		}
		log.Printf("[INFO] %s %s %d %v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"num": func(v null.Float, format string) string {
			if !v.Valid {
				return "-"
			}
			return fmt.Sprintf(format, v.Float64)
		},
		"date": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
	}
}
