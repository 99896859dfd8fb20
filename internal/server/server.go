package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"catering/internal/conflict"
	"catering/internal/httpx"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server provides HTTP handlers for the conflict detection service.
type Server struct {
	engine   *gin.Engine
	conflict *conflict.Service
	db       Pinger
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs the HTTP server with routes and middleware configured.
func New(svc *conflict.Service, db Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &Server{
		engine:   httpx.NewEngine(logger),
		conflict: svc,
		db:       db,
		logger:   logger,
		now:      time.Now,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.POST("/check-conflicts", s.handleCheckConflicts)
	s.engine.GET("/resource-availability", s.handleAvailability)
	s.engine.GET("/resource-availability.ics", s.handleAvailabilityICS)
}

// handleHealth reports liveness plus database reachability.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "ok"})
}
