package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"catering/internal/apperr"
	"catering/internal/generate"
	"catering/internal/httpx"
	"catering/internal/lifecycle"
	"catering/internal/models"
)

type eventRequest struct {
	ClientID      int64  `json:"client_id"`
	Name          string `json:"name" binding:"required"`
	EventDate     string `json:"event_date" binding:"required"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Location      string `json:"location"`
	AttendeeCount int    `json:"attendee_count"`
	Notes         string `json:"notes"`
}

type eventUpdateRequest struct {
	ClientID      *int64  `json:"client_id"`
	Name          *string `json:"name"`
	EventDate     *string `json:"event_date"`
	StartTime     *string `json:"start_time"`
	EndTime       *string `json:"end_time"`
	Location      *string `json:"location"`
	AttendeeCount *int    `json:"attendee_count"`
	Notes         *string `json:"notes"`
	Status        *string `json:"status"`
}

type transitionRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

type cloneRequest struct {
	EventDate     string  `json:"event_date" binding:"required"`
	ClientID      *int64  `json:"client_id"`
	Name          *string `json:"name"`
	StartTime     *string `json:"start_time"`
	EndTime       *string `json:"end_time"`
	Location      *string `json:"location"`
	AttendeeCount *int    `json:"attendee_count"`
	Notes         *string `json:"notes"`
}

type seriesRequest struct {
	Rule      string `json:"rule" binding:"required"`
	FirstDate string `json:"first_date" binding:"required"`
	Max       int    `json:"max"`
}

type templateRequest struct {
	TemplateID int64 `json:"template_id" binding:"required"`
}

// handleCreateEvent opens a new event at inquiry.
func (s *Server) handleCreateEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.RespondError(c, s.logger, httpx.BindError("create event", err))
		return
	}
	date, err := parseDate("create event", "event_date", req.EventDate)
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}

	event, err := s.events.Create(c.Request.Context(), lifecycle.NewEvent{
		ClientID:      req.ClientID,
		Name:          req.Name,
		EventDate:     date,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Location:      req.Location,
		AttendeeCount: req.AttendeeCount,
		Notes:         req.Notes,
	}, actor(c))
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"event": event})
}

func (s *Server) handleGetEvent(c *gin.Context) {
	id, ok := httpx.ParseID(c, s.logger, "id")
	if !ok {
		return
	}
	event, err := s.events.Get(c.Request.Context(), id)
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"event": event})
}

// handleUpdateEvent edits descriptive fields. Status changes go through
// /status and are rejected here.
func (s *Server) handleUpdateEvent(c *gin.Context) {
	id, ok := httpx.ParseID(c, s.logger, "id")
	if !ok {
		return
	}
	var req eventUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.RespondError(c, s.logger, httpx.BindError("update event", err))
		return
	}

	ch := lifecycle.EventChanges{
		ClientID:      req.ClientID,
		Name:          req.Name,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Location:      req.Location,
		AttendeeCount: req.AttendeeCount,
		Notes:         req.Notes,
	}
	if req.EventDate != nil {
		date, err := parseDate("update event", "event_date", *req.EventDate)
		if err != nil {
			httpx.RespondError(c, s.logger, err)
			return
		}
		ch.EventDate = &date
	}
	if req.Status != nil {
		status := models.EventStatus(*req.Status)
		ch.Status = &status
	}

	event, err := s.events.Update(c.Request.Context(), id, ch)
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"event": event})
}

// handleTransition advances the event one lifecycle step.
func (s *Server) handleTransition(c *gin.Context) {
	id, ok := httpx.ParseID(c, s.logger, "id")
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.RespondError(c, s.logger, httpx.BindError("transition event", err))
		return
	}

	event, err := s.events.Transition(c.Request.Context(), id, models.EventStatus(req.Status), actor(c), req.Notes)
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"event": event})
}

func (s *Server) handleArchive(c *gin.Context) {
	id, ok := httpx.ParseID(c, s.logger, "id")
	if !ok {
		return
	}
	event, err := s.events.Archive(c.Request.Context(), id, actor(c))
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"event": event})
}

func (s *Server) handleHistory(c *gin.Context) {
	id, ok := httpx.ParseID(c, s.logger, "id")
	if !ok {
		return
	}
	history, err := s.events.History(c.Request.Context(), id)
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"history": history})
}

// handleClone copies an event and its tasks onto a new date.
func (s *Server) handleClone(c *gin.Context) {
	id, ok := httpx.ParseID(c, s.logger, "id")
	if !ok {
		return
	}
	var req cloneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.RespondError(c, s.logger, httpx.BindError("clone event", err))
		return
	}
	date, err := parseDate("clone event", "event_date", req.EventDate)
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}

	event, tasks, err := s.generator.CloneEvent(c.Request.Context(), id, generate.CloneOptions{
		EventDate:     date,
		ClientID:      req.ClientID,
		Name:          req.Name,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Location:      req.Location,
		AttendeeCount: req.AttendeeCount,
		Notes:         req.Notes,
		Actor:         actor(c),
	})
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"event": event, "tasks": tasks})
}

// handleCloneSeries clones an event once per date of a recurrence rule.
func (s *Server) handleCloneSeries(c *gin.Context) {
	id, ok := httpx.ParseID(c, s.logger, "id")
	if !ok {
		return
	}
	var req seriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.RespondError(c, s.logger, httpx.BindError("clone series", err))
		return
	}
	first, err := parseDate("clone series", "first_date", req.FirstDate)
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	limit := req.Max
	if limit <= 0 || limit > s.maxSeries {
		limit = s.maxSeries
	}

	events, err := s.generator.CloneSeries(c.Request.Context(), id, generate.SeriesOptions{
		Rule:  req.Rule,
		First: first,
		Max:   limit,
		Actor: actor(c),
	})
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"events": events})
}

func (s *Server) handleInstantiateTemplate(c *gin.Context) {
	id, ok := httpx.ParseID(c, s.logger, "id")
	if !ok {
		return
	}
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.RespondError(c, s.logger, httpx.BindError("instantiate template", err))
		return
	}

	tasks, err := s.generator.InstantiateTemplate(c.Request.Context(), id, req.TemplateID, actor(c))
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"tasks": tasks})
}

func parseDate(op, field, value string) (time.Time, error) {
	t, err := models.ParseDate(value)
	if err != nil {
		return time.Time{}, apperr.Validation(op, "%s: %v", field, err)
	}
	return t, nil
}
