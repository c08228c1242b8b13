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

type ExamHandler struct {
	BaseHandler
	examService         services.ExamService
	importExportService services.ImportExportService
}

func NewExamHandler(examService services.ExamService, importExportService services.ImportExportService, logger utils.Logger) *ExamHandler {
	return &ExamHandler{
		BaseHandler:         NewBaseHandler(logger),
		examService:         examService,
		importExportService: importExportService,
	}
}

func (h *ExamHandler) CreateExam(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req validator.ExamCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Creating exam", "title", req.Title, "subject_id", req.SubjectID)

	exam, err := h.examService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exam)
}

func (h *ExamHandler) GetExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, exam)
}

// GetExamWithQuestions returns the exam with its ordered questions. Students
// receive the questions with the answer key stripped.
func (h *ExamHandler) GetExamWithQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	exam, err := h.examService.GetWithQuestions(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, exam)
}

func (h *ExamHandler) UpdateExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req validator.ExamUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Updating exam", "exam_id", id)

	exam, err := h.examService.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, exam)
}

func (h *ExamHandler) DeleteExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting exam", "exam_id", id)

	if err := h.examService.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam deleted"})
}

func (h *ExamHandler) ListExams(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	filters := repositories.ExamFilters{
		Limit:     parseQueryInt(c, "limit", 50),
		Offset:    parseQueryInt(c, "offset", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("subject_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			subjectID := uint(id)
			filters.SubjectID = &subjectID
		}
	}
	if raw := c.Query("is_active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filters.IsActive = &active
		}
	}

	exams, err := h.examService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, exams)
}

// ImportQuestions accepts an xlsx upload and appends its rows as questions.
func (h *ExamHandler) ImportQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing file upload",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	h.LogRequest(c, "Importing questions", "exam_id", id)

	count, err := h.importExportService.ImportQuestions(c.Request.Context(), id, file, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Questions imported",
		Data:    gin.H{"imported": count},
	})
}

// ExportQuestions streams the exam's questions as an xlsx workbook.
func (h *ExamHandler) ExportQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting questions", "exam_id", id)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="questions.xlsx"`)
	if err := h.importExportService.ExportQuestions(c.Request.Context(), id, c.Writer, userID); err != nil {
		h.handleServiceError(c, err)
	}
}

// ExportResults streams the exam's completed attempts as an xlsx workbook.
func (h *ExamHandler) ExportResults(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting results", "exam_id", id)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="results.xlsx"`)
	if err := h.importExportService.ExportResults(c.Request.Context(), id, c.Writer, userID); err != nil {
		h.handleServiceError(c, err)
	}
}
