package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lyndoncatan/onlin-examination/internal/cache"
	"github.com/Lyndoncatan/onlin-examination/internal/models"
	"github.com/Lyndoncatan/onlin-examination/internal/repositories"
)

// RoleResolver maps an authenticated identity to its role via the profile
// table. It is the only component allowed to read roles for authorization;
// policies depend on it and it depends on nothing but the profile repository.
// Token claims are never consulted.
type RoleResolver struct {
	profiles repositories.ProfileRepository
	roles    *cache.CacheHelper
	logger   *slog.Logger
}

func NewRoleResolver(profiles repositories.ProfileRepository, roles *cache.CacheHelper, logger *slog.Logger) *RoleResolver {
	return &RoleResolver{
		profiles: profiles,
		roles:    roles,
		logger:   logger,
	}
}

// Resolve returns the role recorded on the identity's profile row. A missing
// profile resolves to RoleUnknown with a nil error; every policy check denies
// RoleUnknown, so absence fails closed. A non-nil error means the backend
// could not be consulted and callers must also deny.
func (r *RoleResolver) Resolve(ctx context.Context, identityID string) (models.UserRole, error) {
	if identityID == "" {
		return models.RoleUnknown, nil
	}

	if r.roles != nil {
		if cached, err := r.roles.GetString(ctx, identityID); err == nil {
			return models.UserRole(cached), nil
		}
	}

	profile, err := r.profiles.GetByID(ctx, nil, identityID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return models.RoleUnknown, nil
		}
		return models.RoleUnknown, fmt.Errorf("failed to resolve role: %w", err)
	}

	if r.roles != nil {
		if err := r.roles.SetString(ctx, identityID, string(profile.Role), cache.RoleCacheConfig.TTL); err != nil && !errors.Is(err, cache.ErrCacheNotAvailable) {
			r.logger.Warn("Failed to cache resolved role", "identity_id", identityID, "error", err)
		}
	}

	return profile.Role, nil
}

// Invalidate drops the cached role after a promotion or demotion so the next
// policy check sees the new role immediately.
func (r *RoleResolver) Invalidate(ctx context.Context, identityID string) {
	if r.roles == nil {
		return
	}
	if err := r.roles.Delete(ctx, identityID); err != nil {
		r.logger.Warn("Failed to invalidate cached role", "identity_id", identityID, "error", err)
	}
}
