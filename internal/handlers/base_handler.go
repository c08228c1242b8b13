package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Lyndoncatan/onlin-examination/internal/services"
	"github.com/Lyndoncatan/onlin-examination/internal/utils"
	"github.com/Lyndoncatan/onlin-examination/internal/validator"
)

// BaseHandler carries the shared handler plumbing: logging, error mapping and
// parameter parsing.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	args = append(args, "method", c.Request.Method, "path", c.Request.URL.Path)
	h.logger.Info(msg, args...)
}

// parseIDParam parses a positive integer path parameter. On failure it writes
// a 400 and returns zero; callers bail out on zero.
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name + " parameter",
		})
		return 0
	}
	return uint(id)
}

// parseQueryInt reads an integer query parameter with a fallback.
func parseQueryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

// currentUserID returns the authenticated identity, writing a 401 when the
// auth middleware did not run.
func (h *BaseHandler) currentUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	id, ok := userID.(string)
	if !ok || id == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return id, true
}

// handleServiceError maps service errors onto HTTP statuses.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrs,
		})
		return
	}

	if services.IsPermissionError(err) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Permission denied",
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrProfileNotFound),
		errors.Is(err, services.ErrSubjectNotFound),
		errors.Is(err, services.ErrExamNotFound),
		errors.Is(err, services.ErrQuestionNotFound),
		errors.Is(err, services.ErrAttemptNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrExamNotAvailable),
		errors.Is(err, services.ErrExamHasNoQuestions),
		errors.Is(err, services.ErrSubjectInactive),
		errors.Is(err, services.ErrQuestionNotInExam),
		errors.Is(err, services.ErrAttemptNotCompleted):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrAttemptAlreadySubmitted),
		errors.Is(err, services.ErrAttemptNotActive),
		errors.Is(err, services.ErrProfileAlreadyExists),
		errors.Is(err, services.ErrEmailTaken):
		c.JSON(http.StatusConflict, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrAttemptTimeExpired):
		c.JSON(http.StatusGone, ErrorResponse{Message: err.Error()})

	default:
		h.logger.Error("Unhandled service error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
