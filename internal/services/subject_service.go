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

type subjectService struct {
	repo      repositories.Repository
	resolver  roleResolver
	logger    *slog.Logger
	validator *validator.Validator
}

func NewSubjectService(repo repositories.Repository, resolver roleResolver, logger *slog.Logger, v *validator.Validator) SubjectService {
	return &subjectService{
		repo:      repo,
		resolver:  resolver,
		logger:    logger,
		validator: v,
	}
}

func (s *subjectService) Create(ctx context.Context, req *validator.SubjectCreateRequest, actorID string) (*SubjectResponse, error) {
	if errs := s.validator.Validate(req); errs.HasErrors() {
		return nil, errs
	}

	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAccessSubject(actor, nil, authz.OpCreate) {
		return nil, NewPermissionError(actorID, nil, "subject", "create", "admin only")
	}

	subject := &models.Subject{
		Name:      req.Name,
		CreatedBy: actorID,
	}
	if req.Description != nil {
		subject.Description = req.Description
	}
	if req.IsActive != nil {
		subject.IsActive = *req.IsActive
	}

	if err := s.repo.Subject().Create(ctx, nil, subject); err != nil {
		return nil, fmt.Errorf("failed to create subject: %w", err)
	}

	s.logger.Info("Subject created", "subject_id", subject.ID, "created_by", actorID)
	return &SubjectResponse{Subject: subject}, nil
}

func (s *subjectService) GetByID(ctx context.Context, id uint, actorID string) (*SubjectResponse, error) {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}

	subject, err := s.repo.Subject().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}

	if !authz.CanAccessSubject(actor, subject, authz.OpRead) {
		// An inactive subject is invisible to students, not forbidden.
		return nil, ErrSubjectNotFound
	}
	return &SubjectResponse{Subject: subject}, nil
}

func (s *subjectService) Update(ctx context.Context, id uint, req *validator.SubjectUpdateRequest, actorID string) (*SubjectResponse, error) {
	if errs := s.validator.Validate(req); errs.HasErrors() {
		return nil, errs
	}

	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}

	subject, err := s.repo.Subject().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}

	if !authz.CanAccessSubject(actor, subject, authz.OpUpdate) {
		return nil, NewPermissionError(actorID, id, "subject", "update", "admin only")
	}

	if req.Name != nil {
		subject.Name = *req.Name
	}
	if req.Description != nil {
		subject.Description = req.Description
	}
	if req.IsActive != nil {
		subject.IsActive = *req.IsActive
	}

	if err := s.repo.Subject().Update(ctx, nil, subject); err != nil {
		return nil, fmt.Errorf("failed to update subject: %w", err)
	}
	return &SubjectResponse{Subject: subject}, nil
}

func (s *subjectService) Delete(ctx context.Context, id uint, actorID string) error {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return err
	}
	if !authz.CanAccessSubject(actor, nil, authz.OpDelete) {
		return NewPermissionError(actorID, id, "subject", "delete", "admin only")
	}

	if err := s.repo.Subject().Delete(ctx, nil, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrSubjectNotFound
		}
		return fmt.Errorf("failed to delete subject: %w", err)
	}

	s.logger.Info("Subject deleted with cascade", "subject_id", id, "deleted_by", actorID)
	return nil
}

func (s *subjectService) List(ctx context.Context, filters repositories.SubjectFilters, actorID string) (*ListResponse[*SubjectResponse], error) {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case models.RoleAdmin:
		// Admins see every row, filters applied as requested.
	case models.RoleStudent:
		active := true
		filters.IsActive = &active
	default:
		return nil, NewPermissionError(actorID, "*", "subject", "list", "no role resolved")
	}

	subjects, total, err := s.repo.Subject().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}

	items := make([]*SubjectResponse, len(subjects))
	for i, subject := range subjects {
		items[i] = &SubjectResponse{Subject: subject}
	}
	return &ListResponse[*SubjectResponse]{
		Items:  items,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	}, nil
}
