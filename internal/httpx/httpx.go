// Package httpx holds the gin plumbing shared by the conflict service and
// the application API.
package httpx

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"catering/internal/apperr"
)

// RequestIDHeader carries the correlation id of a request.
const RequestIDHeader = "X-Request-ID"

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail names the error kind by its stable code.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEngine returns a gin engine with recovery, request ids and access logs.
func NewEngine(logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(AccessLog(logger))
	return router
}

// RequestID propagates or assigns X-Request-ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// AccessLog writes one structured line per request.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.Info("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(started)),
			slog.String("request_id", c.GetString(RequestIDHeader)))
	}
}

// HTTPStatus maps an error kind to its response status.
func HTTPStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindDependencyCycle, apperr.KindDependencyNotSatisfied:
		return http.StatusUnprocessableEntity
	case apperr.KindInvalidTransition, apperr.KindArchivedEvent:
		return http.StatusConflict
	case apperr.KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindInternal:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// RespondError logs err with request context and writes the error body.
// Internal errors are reported without their underlying message.
func RespondError(c *gin.Context, logger *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	status := HTTPStatus(kind)
	message := apperr.Message(err)

	attrs := []any{
		slog.String("path", c.FullPath()),
		slog.String("code", kind.Code()),
		slog.String("request_id", c.GetString(RequestIDHeader)),
		slog.String("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}
	if kind == apperr.KindInternal {
		message = "internal error"
	}
	c.JSON(status, ErrorBody{Error: ErrorDetail{Code: kind.Code(), Message: message}})
}

// BindError reports a malformed request body as a validation failure.
func BindError(op string, err error) error {
	return apperr.Validation(op, "malformed request: %v", err)
}

// ParseID converts a path parameter to int64, responding 400 on failure.
func ParseID(c *gin.Context, logger *slog.Logger, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		RespondError(c, logger, apperr.Validation("parse "+name, "invalid identifier %q", raw))
		return 0, false
	}
	return id, true
}
