// Package api exposes the control surface of the bot over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hamidbarzin/cryptobarzin/internal/cache"
	"github.com/hamidbarzin/cryptobarzin/internal/logger"
	"github.com/hamidbarzin/cryptobarzin/internal/maintenance"
	"github.com/hamidbarzin/cryptobarzin/internal/metrics"
	"github.com/hamidbarzin/cryptobarzin/internal/models"
	"github.com/hamidbarzin/cryptobarzin/internal/scheduler"
)

// Scheduler is the subset of scheduler.Service the API drives.
type Scheduler interface {
	Start() error
	Stop() error
	Status() scheduler.Status
	UpdateSettings(ctx context.Context, patch scheduler.SettingsPatch) (scheduler.Status, error)
}

// Alerts is the subset of alerts.Registry the API drives.
type Alerts interface {
	Set(symbol string, target float64, dir models.Direction) error
	Remove(symbol string, target float64, dir models.Direction) bool
	Get(symbol string) map[string][]models.PriceAlert
	Check(ctx context.Context) []models.TriggeredEvent
}

// Prices resolves live quotes.
type Prices interface {
	Quote(ctx context.Context, symbol string) (models.Quote, error)
}

// EventStore reads the triggered-alert history.
type EventStore interface {
	RecentEvents(ctx context.Context, symbol string, limit int) ([]models.TriggeredEvent, error)
	Ping(ctx context.Context) error
}

// Deps wires the services behind the routes. Events, Metrics and Jobs may
// be nil.
type Deps struct {
	Scheduler Scheduler
	Alerts    Alerts
	Prices    Prices
	Events    EventStore
	Caches    []*cache.Manager
	Metrics   *metrics.Metrics
	Jobs      *maintenance.Runner
	Version   string
}

// Response is the envelope of every JSON reply.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Server is the gin HTTP server.
type Server struct {
	deps       Deps
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer builds the router. Call ListenAndServe to accept connections.
func NewServer(addr string, deps Deps) *Server {
	router := gin.New()
	s := &Server{
		deps:   deps,
		router: router,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
		},
	}
	s.setupRoutes()
	return s
}

// Handler returns the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger())

	s.router.GET("/health", s.health)
	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	api := s.router.Group("/api")
	{
		sched := api.Group("/scheduler")
		sched.POST("/start", s.startScheduler)
		sched.POST("/stop", s.stopScheduler)
		sched.GET("/status", s.schedulerStatus)
		sched.PATCH("/settings", s.updateSettings)

		alerts := api.Group("/alerts")
		alerts.GET("", s.listAlerts)
		alerts.POST("", s.setAlert)
		alerts.DELETE("", s.removeAlert)
		alerts.POST("/check", s.checkAlerts)
		alerts.GET("/events", s.alertEvents)

		api.GET("/prices/:base/:quote", s.price)
		api.GET("/cache/stats", s.cacheStats)
		api.GET("/maintenance", s.maintenanceStatus)
	}
}

// ListenAndServe blocks until the server stops. It returns nil after a
// graceful Shutdown.
func (s *Server) ListenAndServe() error {
	logger.Info("Starting API server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("API server stopped")
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(map[string]interface{}{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("http request")
	}
}
