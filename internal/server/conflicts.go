package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"catering/internal/apperr"
	"catering/internal/conflict"
	"catering/internal/httpx"
	"catering/internal/models"
)

func (s *Server) handleCheckConflicts(c *gin.Context) {
	var req conflict.CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.RespondError(c, s.logger, httpx.BindError("check-conflicts", err))
		return
	}

	conflicts, err := s.conflict.Check(c.Request.Context(), req.Query())
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, conflict.CheckResponse{Conflicts: conflicts})
}

func (s *Server) handleAvailability(c *gin.Context) {
	resourceID, start, end, err := parseAvailabilityQuery(c)
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}

	entries, err := s.conflict.Availability(c.Request.Context(), resourceID, start, end)
	if err != nil {
		httpx.RespondError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, conflict.AvailabilityResponse{Entries: entries})
}

// parseAvailabilityQuery reads resourceId, startDate and endDate. Dates are
// either RFC3339 instants or YYYY-MM-DD days; a day-only endDate includes
// that whole day.
func parseAvailabilityQuery(c *gin.Context) (int64, time.Time, time.Time, error) {
	const op = "resource-availability"
	resourceID, err := strconv.ParseInt(c.Query("resourceId"), 10, 64)
	if err != nil || resourceID <= 0 {
		return 0, time.Time{}, time.Time{}, apperr.Validation(op, "resourceId must be a positive integer")
	}
	start, _, err := models.ParseInstant(c.Query("startDate"))
	if err != nil {
		return 0, time.Time{}, time.Time{}, apperr.Validation(op, "startDate: %v", err)
	}
	end, dayOnly, err := models.ParseInstant(c.Query("endDate"))
	if err != nil {
		return 0, time.Time{}, time.Time{}, apperr.Validation(op, "endDate: %v", err)
	}
	if dayOnly {
		end = end.Add(24 * time.Hour)
	}
	return resourceID, start, end, nil
}
