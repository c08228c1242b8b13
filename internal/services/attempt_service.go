package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"

	"github.com/Lyndoncatan/onlin-examination/internal/authz"
	"github.com/Lyndoncatan/onlin-examination/internal/events"
	"github.com/Lyndoncatan/onlin-examination/internal/models"
	"github.com/Lyndoncatan/onlin-examination/internal/repositories"
	"github.com/Lyndoncatan/onlin-examination/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	resolver  roleResolver
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewAttemptService(repo repositories.Repository, resolver roleResolver, publisher events.EventPublisher, logger *slog.Logger, v *validator.Validator) AttemptService {
	return &attemptService{
		repo:      repo,
		resolver:  resolver,
		publisher: publisher,
		logger:    logger,
		validator: v,
		now:       time.Now,
	}
}

// StartOrResume is the single entry point for taking an exam. It returns the
// student's in-progress attempt when a live one exists, finalizes a stale one
// it finds expired, and otherwise creates a fresh attempt. Two concurrent
// calls converge on one row: the partial unique index rejects the second
// insert and the loser resumes the winner's attempt.
func (s *attemptService) StartOrResume(ctx context.Context, req *StartAttemptRequest, studentID string) (*AttemptResponse, error) {
	if errs := s.validator.Validate(req); errs.HasErrors() {
		return nil, errs
	}

	actor, err := resolveActor(ctx, s.resolver, studentID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAccessAttempt(actor, &models.ExamAttempt{StudentID: studentID}, authz.OpCreate) {
		return nil, NewPermissionError(studentID, req.ExamID, "attempt", "start", "no role resolved")
	}

	exam, err := s.examAvailableForAttempt(ctx, req.ExamID)
	if err != nil {
		return nil, err
	}

	now := s.now()

	// Resume path.
	active, err := s.repo.Attempt().GetActiveAttempt(ctx, nil, studentID, req.ExamID)
	if err == nil {
		if active.Expired(now) {
			if _, err := s.finalize(ctx, active, models.AttemptEndReasonTimeout); err != nil {
				return nil, err
			}
			// Fall through to start a fresh attempt.
		} else {
			s.logger.Info("Resuming attempt", "attempt_id", active.ID, "student_id", studentID)
			return s.buildAttemptResponse(ctx, active, true)
		}
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up active attempt: %w", err)
	}

	attempt := &models.ExamAttempt{
		ExamID:     req.ExamID,
		StudentID:  studentID,
		Status:     models.AttemptInProgress,
		StartedAt:  now,
		ExpiresAt:  now.Add(time.Duration(exam.DurationMinutes) * time.Minute),
		TotalMarks: exam.TotalMarks,
	}
	if len(req.SessionData) > 0 {
		attempt.SessionData = datatypes.JSON(req.SessionData)
	}

	if err := s.repo.Attempt().Create(ctx, nil, attempt); err != nil {
		if repositories.IsDuplicateError(err) {
			// Lost the start race; the winner's row is the attempt.
			winner, lookupErr := s.repo.Attempt().GetActiveAttempt(ctx, nil, studentID, req.ExamID)
			if lookupErr != nil {
				return nil, fmt.Errorf("failed to resume concurrent attempt: %w", lookupErr)
			}
			s.logger.Info("Concurrent start resolved to existing attempt",
				"attempt_id", winner.ID, "student_id", studentID)
			return s.buildAttemptResponse(ctx, winner, true)
		}
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	s.logger.Info("Attempt started",
		"attempt_id", attempt.ID,
		"exam_id", req.ExamID,
		"student_id", studentID,
		"expires_at", attempt.ExpiresAt)
	s.publish(ctx, events.TopicAttemptStarted, map[string]interface{}{
		"attempt_id": attempt.ID,
		"exam_id":    req.ExamID,
		"student_id": studentID,
		"expires_at": attempt.ExpiresAt,
	})

	return s.buildAttemptResponse(ctx, attempt, false)
}

// RecordAnswer saves or overwrites one answer for an in-progress attempt. An
// answer arriving after the server deadline is rejected and the attempt is
// finalized as timed out, whatever the client's clock said.
func (s *attemptService) RecordAnswer(ctx context.Context, attemptID uint, req *validator.AnswerSubmitRequest, studentID string) error {
	if errs := s.validator.Validate(req); errs.HasErrors() {
		return errs
	}

	actor, err := resolveActor(ctx, s.resolver, studentID)
	if err != nil {
		return err
	}

	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return err
	}
	if !authz.CanAccessAnswer(actor, attempt.StudentID, authz.OpCreate) {
		return NewPermissionError(studentID, attemptID, "answer", "record", "attempt not owned by student")
	}

	if attempt.Status != models.AttemptInProgress {
		return ErrAttemptAlreadySubmitted
	}
	if attempt.Expired(s.now()) {
		if _, err := s.finalize(ctx, attempt, models.AttemptEndReasonTimeout); err != nil {
			return err
		}
		return ErrAttemptTimeExpired
	}

	question, err := s.repo.Question().GetByID(ctx, nil, req.QuestionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to get question: %w", err)
	}
	if question.ExamID != attempt.ExamID {
		return ErrQuestionNotInExam
	}

	answer := &models.StudentAnswer{
		AttemptID:      attemptID,
		QuestionID:     req.QuestionID,
		SelectedAnswer: req.SelectedAnswer,
	}
	if err := s.repo.Answer().Upsert(ctx, nil, answer); err != nil {
		return fmt.Errorf("failed to record answer: %w", err)
	}
	return nil
}

// Submit finalizes the attempt. Grading, the attempt row update and the
// answers' is_correct flags commit in one transaction; a submit arriving after
// the deadline still finalizes but is recorded as timed out.
func (s *attemptService) Submit(ctx context.Context, attemptID uint, studentID string) (*ResultResponse, error) {
	actor, err := resolveActor(ctx, s.resolver, studentID)
	if err != nil {
		return nil, err
	}

	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAccessAttempt(actor, attempt, authz.OpUpdate) {
		return nil, NewPermissionError(studentID, attemptID, "attempt", "submit", "attempt not owned by student")
	}

	if attempt.Status != models.AttemptInProgress {
		return nil, ErrAttemptAlreadySubmitted
	}

	reason := models.AttemptEndReasonSubmitted
	if attempt.Expired(s.now()) {
		reason = models.AttemptEndReasonTimeout
	}
	return s.finalize(ctx, attempt, reason)
}

func (s *attemptService) GetByID(ctx context.Context, attemptID uint, actorID string) (*AttemptResponse, error) {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}

	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAccessAttempt(actor, attempt, authz.OpRead) {
		return nil, NewPermissionError(actorID, attemptID, "attempt", "read", "attempt not owned by student")
	}

	return s.buildAttemptResponse(ctx, attempt, attempt.Status == models.AttemptInProgress)
}

func (s *attemptService) GetResult(ctx context.Context, attemptID uint, actorID string) (*ResultResponse, error) {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}

	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAccessAttempt(actor, attempt, authz.OpRead) {
		return nil, NewPermissionError(actorID, attemptID, "attempt", "read_result", "attempt not owned by student")
	}

	// An expired but never-submitted attempt is finalized on first read.
	if attempt.Status == models.AttemptInProgress {
		if attempt.Expired(s.now()) {
			return s.finalize(ctx, attempt, models.AttemptEndReasonTimeout)
		}
		return nil, ErrAttemptNotCompleted
	}

	return s.buildResultResponse(ctx, attempt.ID)
}

// GetTimeRemaining returns the server-authoritative seconds left. The clock
// never goes negative: an expired attempt reports zero and is finalized.
func (s *attemptService) GetTimeRemaining(ctx context.Context, attemptID uint, studentID string) (int, error) {
	actor, err := resolveActor(ctx, s.resolver, studentID)
	if err != nil {
		return 0, err
	}

	attempt, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return 0, err
	}
	if !authz.CanAccessAttempt(actor, attempt, authz.OpRead) {
		return 0, NewPermissionError(studentID, attemptID, "attempt", "read", "attempt not owned by student")
	}

	if attempt.Status != models.AttemptInProgress {
		return 0, nil
	}

	now := s.now()
	if attempt.Expired(now) {
		if _, err := s.finalize(ctx, attempt, models.AttemptEndReasonTimeout); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return attempt.RemainingSeconds(now), nil
}

func (s *attemptService) ListByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters, actorID string) (*ListResponse[*models.ExamAttempt], error) {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && actorID != studentID {
		return nil, NewPermissionError(actorID, studentID, "attempt", "list", "not owner and not admin")
	}

	attempts, total, err := s.repo.Attempt().GetByStudent(ctx, nil, studentID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return &ListResponse[*models.ExamAttempt]{
		Items:  attempts,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	}, nil
}

func (s *attemptService) ListByExam(ctx context.Context, examID uint, filters repositories.AttemptFilters, actorID string) (*ListResponse[*models.ExamAttempt], error) {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin {
		return nil, NewPermissionError(actorID, examID, "attempt", "list", "admin only")
	}

	filters.ExamID = &examID
	attempts, total, err := s.repo.Attempt().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return &ListResponse[*models.ExamAttempt]{
		Items:  attempts,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	}, nil
}
