// Package api serves the main catering application: events, tasks,
// resource assignment and generation.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"catering/internal/assign"
	"catering/internal/generate"
	"catering/internal/httpx"
	"catering/internal/lifecycle"
	"catering/internal/storage/sqlite"
	"catering/internal/tasks"
)

// ActorHeader names the authenticated user recorded in history and logs.
const ActorHeader = "X-Actor"

// Options configure the API.
type Options struct {
	// Strict enables the in-transaction overlap guard on assignment.
	Strict bool
	// MaxSeries caps a clone series when the request does not.
	MaxSeries int
}

// Server provides HTTP handlers for the application API.
type Server struct {
	engine    *gin.Engine
	store     *sqlite.Store
	events    *lifecycle.Machine
	tasks     *tasks.Service
	assign    *assign.Orchestrator
	generator *generate.Generator
	logger    *slog.Logger
	maxSeries int
}

// New wires the domain services over store. checker answers conflict
// queries, normally the remote conflict service.
func New(store *sqlite.Store, checker assign.Checker, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxSeries <= 0 {
		opts.MaxSeries = generate.DefaultMaxSeries
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &Server{
		engine:    httpx.NewEngine(logger),
		store:     store,
		events:    lifecycle.New(store, logger),
		tasks:     tasks.New(store, logger),
		assign:    assign.New(store, checker, logger, assign.Options{Strict: opts.Strict}),
		generator: generate.New(store, logger),
		logger:    logger,
		maxSeries: opts.MaxSeries,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)

		api.POST("/events", s.handleCreateEvent)
		api.GET("/events/:id", s.handleGetEvent)
		api.PUT("/events/:id", s.handleUpdateEvent)
		api.POST("/events/:id/status", s.handleTransition)
		api.POST("/events/:id/archive", s.handleArchive)
		api.GET("/events/:id/history", s.handleHistory)
		api.GET("/events/:id/tasks", s.handleListTasks)
		api.POST("/events/:id/tasks", s.handleCreateTask)
		api.POST("/events/:id/clone", s.handleClone)
		api.POST("/events/:id/clone-series", s.handleCloneSeries)
		api.POST("/events/:id/template", s.handleInstantiateTemplate)

		api.PUT("/tasks/:id", s.handleUpdateTask)
		api.POST("/tasks/:id/status", s.handleTaskStatus)
		api.DELETE("/tasks/:id", s.handleDeleteTask)
		api.POST("/tasks/:id/resources", s.handleAssign)
		api.DELETE("/tasks/:id/resources/:resourceId", s.handleUnassign)

		api.GET("/resources", s.handleListResources)
		api.POST("/resources", s.handleCreateResource)
		api.GET("/templates", s.handleListTemplates)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// actor returns the caller named by X-Actor, or "anonymous".
func actor(c *gin.Context) string {
	if a := strings.TrimSpace(c.GetHeader(ActorHeader)); a != "" {
		return a
	}
	return "anonymous"
}

// respondSuccess writes payload, or only the status when payload is nil.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}

func getString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
