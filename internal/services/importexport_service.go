package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Lyndoncatan/onlin-examination/internal/authz"
	"github.com/Lyndoncatan/onlin-examination/internal/models"
	"github.com/Lyndoncatan/onlin-examination/internal/repositories"
	"github.com/Lyndoncatan/onlin-examination/internal/validator"
)

// questionSheetHeader is the expected column layout for question import and
// the layout written on export.
var questionSheetHeader = []string{
	"question_text", "option_a", "option_b", "option_c", "option_d",
	"correct_answer", "marks", "order_number",
}

type importExportService struct {
	repo      repositories.Repository
	resolver  roleResolver
	logger    *slog.Logger
	validator *validator.Validator
}

func NewImportExportService(repo repositories.Repository, resolver roleResolver, logger *slog.Logger, v *validator.Validator) ImportExportService {
	return &importExportService{
		repo:      repo,
		resolver:  resolver,
		logger:    logger,
		validator: v,
	}
}

func (s *importExportService) ImportQuestions(ctx context.Context, examID uint, r io.Reader, actorID string) (int, error) {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return 0, err
	}
	if !authz.CanAccessQuestion(actor, false, authz.OpCreate) {
		return 0, NewPermissionError(actorID, examID, "question", "import", "admin only")
	}

	file, err := excelize.OpenReader(r)
	if err != nil {
		return 0, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer file.Close()

	sheet := file.GetSheetName(0)
	rows, err := file.GetRows(sheet)
	if err != nil {
		return 0, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return 0, fmt.Errorf("sheet %q has no data rows", sheet)
	}

	questions := make([]*models.Question, 0, len(rows)-1)
	for i, row := range rows[1:] {
		question, err := s.parseQuestionRow(examID, row, len(questions)+1)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i+2, err)
		}
		questions = append(questions, question)
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if _, err := txRepo.Exam().GetByID(ctx, nil, examID); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrExamNotFound
			}
			return fmt.Errorf("failed to get exam: %w", err)
		}
		if err := txRepo.Question().CreateBatch(ctx, nil, questions); err != nil {
			return fmt.Errorf("failed to insert questions: %w", err)
		}
		total, err := txRepo.Question().SumMarksByExam(ctx, nil, examID)
		if err != nil {
			return fmt.Errorf("failed to sum marks: %w", err)
		}
		return txRepo.Exam().SetTotalMarks(ctx, nil, examID, total)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Questions imported", "exam_id", examID, "count", len(questions), "imported_by", actorID)
	return len(questions), nil
}

func (s *importExportService) ExportQuestions(ctx context.Context, examID uint, w io.Writer, actorID string) error {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin {
		return NewPermissionError(actorID, examID, "question", "export", "admin only")
	}

	if _, err := s.repo.Exam().GetByID(ctx, nil, examID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to get exam: %w", err)
	}

	questions, err := s.repo.Question().GetByExam(ctx, nil, examID)
	if err != nil {
		return fmt.Errorf("failed to load questions: %w", err)
	}

	file := excelize.NewFile()
	defer file.Close()
	sheet := file.GetSheetName(0)

	if err := file.SetSheetRow(sheet, "A1", &questionSheetHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, q := range questions {
		row := []interface{}{
			q.QuestionText, q.OptionA, q.OptionB, q.OptionC, q.OptionD,
			string(q.CorrectAnswer), q.Marks, q.OrderNumber,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (s *importExportService) ExportResults(ctx context.Context, examID uint, w io.Writer, actorID string) error {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin {
		return NewPermissionError(actorID, examID, "attempt", "export", "admin only")
	}

	status := models.AttemptCompleted
	attempts, _, err := s.repo.Attempt().List(ctx, nil, repositories.AttemptFilters{
		ExamID: &examID,
		Status: &status,
	})
	if err != nil {
		return fmt.Errorf("failed to load attempts: %w", err)
	}

	file := excelize.NewFile()
	defer file.Close()
	sheet := file.GetSheetName(0)

	header := []string{"attempt_id", "student_id", "started_at", "completed_at", "score", "total_marks", "percentage", "end_reason"}
	if err := file.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, a := range attempts {
		row := []interface{}{a.ID, a.StudentID, a.StartedAt}
		if a.CompletedAt != nil {
			row = append(row, *a.CompletedAt)
		} else {
			row = append(row, "")
		}
		score := 0
		if a.Score != nil {
			score = *a.Score
		}
		percentage := 0.0
		if a.Percentage != nil {
			percentage = *a.Percentage
		}
		reason := ""
		if a.EndReason != nil {
			reason = *a.EndReason
		}
		row = append(row, score, a.TotalMarks, percentage, reason)

		cell := fmt.Sprintf("A%d", i+2)
		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (s *importExportService) parseQuestionRow(examID uint, row []string, fallbackOrder int) (*models.Question, error) {
	get := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	marks := 1
	if raw := get(6); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid marks %q", raw)
		}
		marks = parsed
	}
	order := fallbackOrder
	if raw := get(7); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid order_number %q", raw)
		}
		order = parsed
	}

	req := &validator.QuestionCreateRequest{
		QuestionText:  get(0),
		OptionA:       get(1),
		OptionB:       get(2),
		OptionC:       get(3),
		OptionD:       get(4),
		CorrectAnswer: models.AnswerChoice(strings.ToUpper(get(5))),
		Marks:         marks,
		OrderNumber:   order,
	}
	if errs := s.validator.Validate(req); errs.HasErrors() {
		return nil, errs
	}

	return &models.Question{
		ExamID:        examID,
		QuestionText:  req.QuestionText,
		OptionA:       req.OptionA,
		OptionB:       req.OptionB,
		OptionC:       req.OptionC,
		OptionD:       req.OptionD,
		CorrectAnswer: req.CorrectAnswer,
		Marks:         req.Marks,
		OrderNumber:   req.OrderNumber,
	}, nil
}
