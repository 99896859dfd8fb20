package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"catering/internal/assign"
	"catering/internal/httpx"
	"catering/internal/models"
	"catering/internal/tasks"
)

type taskRequest struct {
	Title           string  `json:"title" binding:"required"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	DueDate         *string `json:"due_date"`
	AssignedTo      *int64  `json:"assigned_to"`
	DependsOnTaskID *int64  `json:"depends_on_task_id"`
}

// taskUpdateRequest is a partial edit. An empty due_date clears it; the
// clear_* flags null the assignee or the dependency.
type taskUpdateRequest struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Category        *string `json:"category"`
	DueDate         *string `json:"due_date"`
	AssignedTo      *int64  `json:"assigned_to"`
	ClearAssignee   bool    `json:"clear_assigned_to"`
	DependsOnTaskID *int64  `json:"depends_on_task_id"`
	ClearDependency bool    `json:"clear_depends_on"`
}

type taskStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type assignRequest struct {
	ResourceIDs []int64 `json:"resource_ids" binding:"required"`
	Force       bool    `json:"force"`
	Notes       string  `json:"notes"`
}

// handleListTasks fetches tasks for an event.
func (s *Server) handleListTasks(c *gin.Context) {
	eventID, ok := httpx.ParseID(c, s.logger, "id")
	if !ok {
		return
	}
	list, err := s.tasks.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": list})
}

// handleCreateTask adds a pending task to an event.
func (s *Server) handleCreateTask(c *gin.Context) {
	eventID, ok := httpx.ParseID(c, s.logger, "id")
	if !ok {
		return
	}
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.RespondError(c, s.logger, httpx.BindError("create task", err))
		return
	}

	in := tasks.NewTask{
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		AssignedTo:      req.AssignedTo,
		DependsOnTaskID: req.DependsOnTaskID,
	}
	if due := strings.TrimSpace(getString(req.DueDate)); due != "" {
		d, err := parseDate("create task", "due_date", due)
		if err != nil {
			httpx.RespondError(c, s.logger, err)
			return
		}
		in.DueDate = &d
	}

	task, err := s.tasks.Create(c.Request.Context(), eventID, in)
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}

// handleUpdateTask updates descriptive fields, the due date, the assignee
// or the dependency.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := httpx.ParseID(c, s.logger, "id")
	if !ok {
		return
	}
	var req taskUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.RespondError(c, s.logger, httpx.BindError("update task", err))
		return
	}

	ch := tasks.Changes{
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		AssignedTo:      req.AssignedTo,
		ClearAssignee:   req.ClearAssignee,
		DependsOnTaskID: req.DependsOnTaskID,
		ClearDependency: req.ClearDependency,
	}
	if req.DueDate != nil {
		if due := strings.TrimSpace(*req.DueDate); due == "" {
			ch.ClearDueDate = true
		} else {
			d, err := parseDate("update task", "due_date", due)
			if err != nil {
				httpx.RespondError(c, s.logger, err)
				return
			}
			ch.DueDate = &d
		}
	}

	task, err := s.tasks.Update(c.Request.Context(), id, ch)
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleTaskStatus moves a task between pending, in_progress and completed.
func (s *Server) handleTaskStatus(c *gin.Context) {
	id, ok := httpx.ParseID(c, s.logger, "id")
	if !ok {
		return
	}
	var req taskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.RespondError(c, s.logger, httpx.BindError("task status", err))
		return
	}

	task, err := s.tasks.SetStatus(c.Request.Context(), id, models.TaskStatus(req.Status))
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleDeleteTask removes a task, its bookings and references to it.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := httpx.ParseID(c, s.logger, "id")
	if !ok {
		return
	}
	if err := s.tasks.Delete(c.Request.Context(), id); err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleAssign books resources on a task. A partial result, where some
// resources were held back by conflicts, is answered with 409 and the same
// body as a full success.
func (s *Server) handleAssign(c *gin.Context) {
	id, ok := httpx.ParseID(c, s.logger, "id")
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.RespondError(c, s.logger, httpx.BindError("assign resources", err))
		return
	}

	res, err := s.assign.AssignResources(c.Request.Context(), assign.Request{
		TaskID:      id,
		ResourceIDs: req.ResourceIDs,
		Force:       req.Force,
		Actor:       actor(c),
		Notes:       req.Notes,
	})
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	status := http.StatusOK
	if !res.Complete() {
		status = http.StatusConflict
	}
	respondSuccess(c, status, res)
}

func (s *Server) handleUnassign(c *gin.Context) {
	taskID, ok := httpx.ParseID(c, s.logger, "id")
	if !ok {
		return
	}
	resourceID, ok := httpx.ParseID(c, s.logger, "resourceId")
	if !ok {
		return
	}
	if err := s.assign.Unassign(c.Request.Context(), taskID, resourceID, actor(c)); err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}
