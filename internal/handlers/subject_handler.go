package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Lyndoncatan/onlin-examination/internal/repositories"
	"github.com/Lyndoncatan/onlin-examination/internal/services"
	"github.com/Lyndoncatan/onlin-examination/internal/utils"
	"github.com/Lyndoncatan/onlin-examination/internal/validator"
)

type SubjectHandler struct {
	BaseHandler
	subjectService services.SubjectService
}

func NewSubjectHandler(subjectService services.SubjectService, logger utils.Logger) *SubjectHandler {
	return &SubjectHandler{
		BaseHandler:    NewBaseHandler(logger),
		subjectService: subjectService,
	}
}

func (h *SubjectHandler) CreateSubject(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req validator.SubjectCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Creating subject", "name", req.Name)

	subject, err := h.subjectService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, subject)
}

func (h *SubjectHandler) GetSubject(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	subject, err := h.subjectService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, subject)
}

func (h *SubjectHandler) UpdateSubject(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req validator.SubjectUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Updating subject", "subject_id", id)

	subject, err := h.subjectService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, subject)
}

// DeleteSubject removes the subject and everything under it.
func (h *SubjectHandler) DeleteSubject(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting subject", "subject_id", id)

	if err := h.subjectService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Subject deleted"})
}

func (h *SubjectHandler) ListSubjects(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	filters := repositories.SubjectFilters{
		Limit:     parseQueryInt(c, "limit", 50),
		Offset:    parseQueryInt(c, "offset", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("is_active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filters.IsActive = &active
		}
	}

	subjects, err := h.subjectService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, subjects)
}
