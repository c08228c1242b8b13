package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lyndoncatan/onlin-examination/internal/authz"
	"github.com/Lyndoncatan/onlin-examination/internal/models"
	"github.com/Lyndoncatan/onlin-examination/internal/repositories"
	"github.com/Lyndoncatan/onlin-examination/internal/validator"
)

type questionService struct {
	repo      repositories.Repository
	resolver  roleResolver
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQuestionService(repo repositories.Repository, resolver roleResolver, logger *slog.Logger, v *validator.Validator) QuestionService {
	return &questionService{
		repo:      repo,
		resolver:  resolver,
		logger:    logger,
		validator: v,
	}
}

func (s *questionService) Create(ctx context.Context, examID uint, req *validator.QuestionCreateRequest, actorID string) (*models.Question, error) {
	if errs := s.validator.Validate(req); errs.HasErrors() {
		return nil, errs
	}

	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAccessQuestion(actor, false, authz.OpCreate) {
		return nil, NewPermissionError(actorID, examID, "question", "create", "admin only")
	}

	question := &models.Question{
		ExamID:        examID,
		QuestionText:  req.QuestionText,
		OptionA:       req.OptionA,
		OptionB:       req.OptionB,
		OptionC:       req.OptionC,
		OptionD:       req.OptionD,
		CorrectAnswer: req.CorrectAnswer,
		Marks:         req.Marks,
		OrderNumber:   req.OrderNumber,
	}

	// The question insert and the total_marks re-sync commit together, so the
	// derived column never drifts from the sum of the question rows.
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if _, err := txRepo.Exam().GetByID(ctx, nil, examID); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrExamNotFound
			}
			return fmt.Errorf("failed to get exam: %w", err)
		}
		if err := txRepo.Question().Create(ctx, nil, question); err != nil {
			return fmt.Errorf("failed to create question: %w", err)
		}
		return s.syncTotalMarks(ctx, txRepo, examID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Question created", "question_id", question.ID, "exam_id", examID)
	return question, nil
}

func (s *questionService) GetByID(ctx context.Context, examID, id uint, actorID string) (*models.Question, error) {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin {
		return nil, NewPermissionError(actorID, id, "question", "read", "admin only")
	}

	question, err := s.getInExam(ctx, examID, id)
	if err != nil {
		return nil, err
	}
	return question, nil
}

func (s *questionService) Update(ctx context.Context, examID, id uint, req *validator.QuestionUpdateRequest, actorID string) (*models.Question, error) {
	if errs := s.validator.Validate(req); errs.HasErrors() {
		return nil, errs
	}

	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAccessQuestion(actor, false, authz.OpUpdate) {
		return nil, NewPermissionError(actorID, id, "question", "update", "admin only")
	}

	question, err := s.getInExam(ctx, examID, id)
	if err != nil {
		return nil, err
	}

	if req.QuestionText != nil {
		question.QuestionText = *req.QuestionText
	}
	if req.OptionA != nil {
		question.OptionA = *req.OptionA
	}
	if req.OptionB != nil {
		question.OptionB = *req.OptionB
	}
	if req.OptionC != nil {
		question.OptionC = *req.OptionC
	}
	if req.OptionD != nil {
		question.OptionD = *req.OptionD
	}
	if req.CorrectAnswer != nil {
		question.CorrectAnswer = *req.CorrectAnswer
	}
	if req.Marks != nil {
		question.Marks = *req.Marks
	}
	if req.OrderNumber != nil {
		question.OrderNumber = *req.OrderNumber
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Question().Update(ctx, nil, question); err != nil {
			return fmt.Errorf("failed to update question: %w", err)
		}
		return s.syncTotalMarks(ctx, txRepo, examID)
	})
	if err != nil {
		return nil, err
	}
	return question, nil
}

func (s *questionService) Delete(ctx context.Context, examID, id uint, actorID string) error {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return err
	}
	if !authz.CanAccessQuestion(actor, false, authz.OpDelete) {
		return NewPermissionError(actorID, id, "question", "delete", "admin only")
	}

	if _, err := s.getInExam(ctx, examID, id); err != nil {
		return err
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Question().Delete(ctx, nil, id); err != nil {
			return fmt.Errorf("failed to delete question: %w", err)
		}
		return s.syncTotalMarks(ctx, txRepo, examID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Question deleted", "question_id", id, "exam_id", examID)
	return nil
}

func (s *questionService) ListByExam(ctx context.Context, examID uint, actorID string) ([]*models.Question, error) {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin {
		return nil, NewPermissionError(actorID, examID, "question", "list", "admin only")
	}

	questions, err := s.repo.Question().GetByExam(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, nil
}

func (s *questionService) getInExam(ctx context.Context, examID, id uint) (*models.Question, error) {
	question, err := s.repo.Question().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	if question.ExamID != examID {
		return nil, ErrQuestionNotInExam
	}
	return question, nil
}

func (s *questionService) syncTotalMarks(ctx context.Context, txRepo repositories.Repository, examID uint) error {
	total, err := txRepo.Question().SumMarksByExam(ctx, nil, examID)
	if err != nil {
		return fmt.Errorf("failed to sum marks: %w", err)
	}
	if err := txRepo.Exam().SetTotalMarks(ctx, nil, examID, total); err != nil {
		return fmt.Errorf("failed to sync total marks: %w", err)
	}
	return nil
}
