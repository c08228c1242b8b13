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

type profileService struct {
	repo      repositories.Repository
	resolver  roleResolver
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
}

func NewProfileService(repo repositories.Repository, resolver roleResolver, publisher events.EventPublisher, logger *slog.Logger, v *validator.Validator) ProfileService {
	return &profileService{
		repo:      repo,
		resolver:  resolver,
		publisher: publisher,
		logger:    logger,
		validator: v,
	}
}

func (s *profileService) EnsureProfile(ctx context.Context, req *validator.ProfileCreateRequest) (*ProfileResponse, error) {
	if errs := s.validator.Validate(req); errs.HasErrors() {
		return nil, errs
	}

	existing, err := s.repo.Profile().GetByID(ctx, nil, req.ID)
	if err == nil {
		return &ProfileResponse{Profile: existing}, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up profile: %w", err)
	}

	profile := &models.Profile{
		ID:       req.ID,
		FullName: req.FullName,
		Email:    req.Email,
		Role:     models.RoleStudent,
	}
	if err := s.repo.Profile().Create(ctx, nil, profile); err != nil {
		if repositories.IsDuplicateError(err) {
			// Lost a race with a concurrent first login; the winner's row is ours.
			if existing, lookupErr := s.repo.Profile().GetByID(ctx, nil, req.ID); lookupErr == nil {
				return &ProfileResponse{Profile: existing}, nil
			}
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	s.logger.Info("Profile created", "profile_id", profile.ID, "role", profile.Role)
	return &ProfileResponse{Profile: profile}, nil
}

func (s *profileService) GetByID(ctx context.Context, id string, actorID string) (*ProfileResponse, error) {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}

	profile, err := s.repo.Profile().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if !authz.CanAccessProfile(actor, profile, authz.OpRead) {
		return nil, NewPermissionError(actorID, id, "profile", "read", "not owner and not admin")
	}
	return &ProfileResponse{Profile: profile}, nil
}

func (s *profileService) Update(ctx context.Context, id string, req *validator.ProfileUpdateRequest, actorID string) (*ProfileResponse, error) {
	if errs := s.validator.Validate(req); errs.HasErrors() {
		return nil, errs
	}

	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}

	profile, err := s.repo.Profile().GetByID(ctx, nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	if !authz.CanAccessProfile(actor, profile, authz.OpUpdate) {
		return nil, NewPermissionError(actorID, id, "profile", "update", "not owner and not admin")
	}

	if req.FullName != nil {
		profile.FullName = *req.FullName
	}
	if req.Email != nil && *req.Email != profile.Email {
		if holder, err := s.repo.Profile().GetByEmail(ctx, nil, *req.Email); err == nil && holder.ID != profile.ID {
			return nil, ErrEmailTaken
		} else if err != nil && !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		profile.Email = *req.Email
	}

	if err := s.repo.Profile().Update(ctx, nil, profile); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return &ProfileResponse{Profile: profile}, nil
}

func (s *profileService) UpdateRole(ctx context.Context, id string, req *validator.RoleUpdateRequest, actorID string) error {
	if errs := s.validator.Validate(req); errs.HasErrors() {
		return errs
	}

	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return err
	}
	if !authz.CanChangeRole(actor) {
		return NewPermissionError(actorID, id, "profile", "change_role", "admin only")
	}

	if err := s.repo.Profile().UpdateRole(ctx, nil, id, req.Role); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("failed to update role: %w", err)
	}

	// The cached role must not outlive the change.
	s.resolver.Invalidate(ctx, id)

	s.logger.Info("Role changed", "profile_id", id, "role", req.Role, "changed_by", actorID)
	s.publish(ctx, events.TopicRoleChanged, map[string]interface{}{
		"profile_id": id,
		"role":       req.Role,
		"changed_by": actorID,
	})
	return nil
}

func (s *profileService) List(ctx context.Context, filters repositories.ProfileFilters, actorID string) (*ListResponse[*ProfileResponse], error) {
	actor, err := resolveActor(ctx, s.resolver, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin {
		return nil, NewPermissionError(actorID, "*", "profile", "list", "admin only")
	}

	profiles, total, err := s.repo.Profile().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	items := make([]*ProfileResponse, len(profiles))
	for i, p := range profiles {
		items[i] = &ProfileResponse{Profile: p}
	}
	return &ListResponse[*ProfileResponse]{
		Items:  items,
		Total:  total,
		Limit:  filters.Limit,
		Offset: filters.Offset,
	}, nil
}

func (s *profileService) publish(ctx context.Context, topic string, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, events.NewEvent(topic, data)); err != nil {
		s.logger.Warn("Failed to publish event", "topic", topic, "error", err)
	}
}
