package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Lyndoncatan/onlin-examination/internal/models"
	"github.com/Lyndoncatan/onlin-examination/internal/repositories"
	"github.com/Lyndoncatan/onlin-examination/internal/services"
	"github.com/Lyndoncatan/onlin-examination/internal/utils"
	"github.com/Lyndoncatan/onlin-examination/internal/validator"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
}

func NewAttemptHandler(attemptService services.AttemptService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
	}
}

// StartAttempt starts the caller's attempt for an exam, or resumes the live
// one. There is no separate resume endpoint; this call is idempotent per
// (student, exam) while an attempt is in progress.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req services.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Starting attempt", "exam_id", req.ExamID)

	attempt, err := h.attemptService.StartOrResume(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if attempt.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, attempt)
}

// SubmitAnswer records one answer for a question of the attempt.
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req validator.AnswerSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.attemptService.RecordAnswer(c.Request.Context(), attemptID, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer recorded"})
}

// SubmitAttempt finalizes the attempt and returns the graded result.
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", attemptID)

	result, err := h.attemptService.Submit(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetByID(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempt)
}

func (h *AttemptHandler) GetResult(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	result, err := h.attemptService.GetResult(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetTimeRemaining returns the server-authoritative countdown for the attempt.
func (h *AttemptHandler) GetTimeRemaining(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	remaining, err := h.attemptService.GetTimeRemaining(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"remaining_seconds": remaining})
}

// ListMyAttempts returns the caller's attempt history.
func (h *AttemptHandler) ListMyAttempts(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	filters := h.attemptFilters(c)
	attempts, err := h.attemptService.ListByStudent(c.Request.Context(), userID, filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempts)
}

// ListExamAttempts returns all attempts of an exam. Admin only.
func (h *AttemptHandler) ListExamAttempts(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	filters := h.attemptFilters(c)
	attempts, err := h.attemptService.ListByExam(c.Request.Context(), examID, filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempts)
}

func (h *AttemptHandler) attemptFilters(c *gin.Context) repositories.AttemptFilters {
	filters := repositories.AttemptFilters{
		Limit:     parseQueryInt(c, "limit", 50),
		Offset:    parseQueryInt(c, "offset", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.AttemptStatus(raw)
		filters.Status = &status
	}
	if raw := c.Query("exam_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			examID := uint(id)
			filters.ExamID = &examID
		}
	}
	return filters
}
