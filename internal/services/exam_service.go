package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lyndoncatan/onlin-examination/internal/authz"
	"github.com/Lyndoncatan/onlin-examination/internal/events"
	"github.com/Lyndoncatan/onlin-examination/internal/models"
	"github.com/Lyndoncatan/onlin-examination/internal/repositories"
	"github.com/Lyndoncatan/onlin-examination/internal/validator"
)

type examService struct {
	repo      repositories.Repository
	resolver  roleResolver
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
}

func NewExamService(repo repositories.Repository, resolver roleResolver, publisher events.EventPublisher, logger *slog.Logger, v *validator.Validator) ExamService {
	return &examService{
		repo:      repo,
		resolver:  resolver,
		publisher: publisher,
		logger:    logger,
		validator: v,
	}
}

func (s *examService) Create(ctx context.Context, req *validator.ExamCreateRequest, actorID string) (*ExamResponse, error) {
	if errs := s.validator.Validate(req); errs.HasErrors() {
		return nil, errs
	}

	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAccessExam(actor, nil, false, authz.OpCreate) {
		return nil, NewPermissionError(actorID, nil, "exam", "create", "admin only")
	}

	// The parent subject must exist before hanging an exam off it.
	if _, err := s.repo.Subject().GetByID(ctx, nil, req.SubjectID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}

	exam := &models.Exam{
		SubjectID:       req.SubjectID,
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		PassingMarks:    req.PassingMarks,
		CreatedBy:       actorID,
	}
	if req.IsActive != nil {
		exam.IsActive = *req.IsActive
	}

	if err := s.repo.Exam().Create(ctx, nil, exam); err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	s.logger.Info("Exam created", "exam_id", exam.ID, "subject_id", exam.SubjectID, "created_by", actorID)
	return &ExamResponse{Exam: exam}, nil
}

func (s *examService) GetByID(ctx context.Context, id uint, actorID string) (*ExamResponse, error) {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}

	exam, subjectActive, err := s.getExamWithSubjectState(ctx, id)
	if err != nil {
		return nil, err
	}

	if !authz.CanAccessExam(actor, exam, subjectActive, authz.OpRead) {
		return nil, ErrExamNotFound
	}
	return &ExamResponse{Exam: exam}, nil
}

func (s *examService) GetWithQuestions(ctx context.Context, id uint, actorID string) (*ExamResponse, error) {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if !authz.CanAccessExam(actor, exam, exam.Subject.IsActive, authz.OpRead) {
		return nil, ErrExamNotFound
	}

	// Students never see the answer key outside a graded result.
	if actor.Role == models.RoleStudent {
		for i := range exam.Questions {
			exam.Questions[i] = *exam.Questions[i].Sanitized()
		}
	}
	return &ExamResponse{Exam: exam}, nil
}

func (s *examService) Update(ctx context.Context, id uint, req *validator.ExamUpdateRequest, actorID string) (*ExamResponse, error) {
	if errs := s.validator.Validate(req); errs.HasErrors() {
		return nil, errs
	}

	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if !authz.CanAccessExam(actor, exam, false, authz.OpUpdate) {
		return nil, NewPermissionError(actorID, id, "exam", "update", "admin only")
	}

	wasActive := exam.IsActive
	if req.Title != nil {
		exam.Title = *req.Title
	}
	if req.Description != nil {
		exam.Description = req.Description
	}
	if req.DurationMinutes != nil {
		exam.DurationMinutes = *req.DurationMinutes
	}
	if req.PassingMarks != nil {
		exam.PassingMarks = *req.PassingMarks
	}
	if req.IsActive != nil {
		exam.IsActive = *req.IsActive
	}

	if err := s.repo.Exam().Update(ctx, nil, exam); err != nil {
		return nil, fmt.Errorf("failed to update exam: %w", err)
	}

	if !wasActive && exam.IsActive {
		s.publish(ctx, events.TopicExamPublished, map[string]interface{}{
			"exam_id":    exam.ID,
			"subject_id": exam.SubjectID,
			"title":      exam.Title,
		})
	}
	return &ExamResponse{Exam: exam}, nil
}

func (s *examService) Delete(ctx context.Context, id uint, actorID string) error {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return err
	}
	if !authz.CanAccessExam(actor, nil, false, authz.OpDelete) {
		return NewPermissionError(actorID, id, "exam", "delete", "admin only")
	}

	if err := s.repo.Exam().Delete(ctx, nil, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to delete exam: %w", err)
	}

	s.logger.Info("Exam deleted with cascade", "exam_id", id, "deleted_by", actorID)
	return nil
}

func (s *examService) List(ctx context.Context, filters repositories.ExamFilters, actorID string) (*ListResponse[*ExamResponse], error) {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleStudent:
		active := true
		filters.IsActive = &active
	default:
		return nil, NewPermissionError(actorID, "*", "exam", "list", "no role resolved")
	}

	exams, total, err := s.repo.Exam().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}

	items := make([]*ExamResponse, 0, len(exams))
	for _, exam := range exams {
		// A deactivated subject hides its exams from students.
		if actor.Role == models.RoleStudent && !exam.Subject.IsActive {
			continue
		}
		items = append(items, &ExamResponse{Exam: exam})
	}
	return &ListResponse[*ExamResponse]{
		Items:  items,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	}, nil
}

func (s *examService) getExamWithSubjectState(ctx context.Context, id uint) (*models.Exam, bool, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, false, ErrExamNotFound
		}
		return nil, false, fmt.Errorf("failed to get exam: %w", err)
	}

	subject, err := s.repo.Subject().GetByID(ctx, nil, exam.SubjectID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return exam, false, nil
		}
		return nil, false, fmt.Errorf("failed to get subject: %w", err)
	}
	return exam, subject.IsActive, nil
}

func (s *examService) publish(ctx context.Context, topic string, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, events.NewEvent(topic, data)); err != nil {
		s.logger.Warn("Failed to publish event", "topic", topic, "error", err)
	}
}
