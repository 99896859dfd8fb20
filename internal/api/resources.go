package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"catering/internal/httpx"
	"catering/internal/models"
)

type resourceRequest struct {
	Name        string `json:"name" binding:"required"`
	Category    string `json:"category" binding:"required"`
	IsAvailable *bool  `json:"is_available"`
	Notes       string `json:"notes"`
}

// handleListResources returns all bookable resources.
func (s *Server) handleListResources(c *gin.Context) {
	resources, err := s.store.ListResources(c.Request.Context())
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"resources": resources})
}

// handleCreateResource registers staff, equipment or materials.
func (s *Server) handleCreateResource(c *gin.Context) {
	var req resourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.RespondError(c, s.logger, httpx.BindError("create resource", err))
		return
	}
	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	resource, err := s.store.CreateResource(c.Request.Context(), models.Resource{
		Name:        req.Name,
		Category:    models.ResourceCategory(req.Category),
		IsAvailable: available,
		Notes:       req.Notes,
	})
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"resource": resource})
}

func (s *Server) handleListTemplates(c *gin.Context) {
	templates, err := s.store.ListTemplates(c.Request.Context())
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"templates": templates})
}
