package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"catering/internal/httpx"
	"catering/internal/models"
)

var entryNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("catering/schedule-entries"))

// handleAvailabilityICS serves the same range as handleAvailability as an
// iCalendar feed for calendar clients.
func (s *Server) handleAvailabilityICS(c *gin.Context) {
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

	body := buildCalendar(resourceID, entries, s.now())
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=resource-%d.ics", resourceID))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

// buildCalendar renders entries as VEVENTs. UIDs derive from the schedule
// entry id so repeated fetches update rather than duplicate events.
func buildCalendar(resourceID int64, entries []models.AvailabilityEntry, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//catering//conflictd//EN")
	cal.SetXWRCalName("Resource " + strconv.FormatInt(resourceID, 10))

	for _, e := range entries {
		uid := uuid.NewSHA1(entryNamespace, []byte(strconv.FormatInt(e.ScheduleEntryID, 10)))
		ev := cal.AddEvent(uid.String())
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(e.StartTime.UTC())
		ev.SetEndAt(e.EndTime.UTC())
		summary := e.EventName
		if e.TaskTitle != nil && *e.TaskTitle != "" {
			summary = e.EventName + ": " + *e.TaskTitle
		}
		ev.SetSummary(summary)
		ev.SetDescription(fmt.Sprintf("event %d", e.EventID))
	}
	return cal.Serialize()
}
