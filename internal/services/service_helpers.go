package services

import (
	"context"
	"fmt"

	"github.com/Lyndoncatan/onlin-examination/internal/authz"
	"github.com/Lyndoncatan/onlin-examination/internal/models"
)

// roleResolver is what services need from authz.RoleResolver.
type roleResolver interface {
	Resolve(ctx context.Context, identityID string) (models.UserRole, error)
	Invalidate(ctx context.Context, identityID string)
}

// resolveActor builds the policy actor for an identity. A resolver failure is
// surfaced so callers deny rather than proceed with RoleUnknown silently.
func resolveActor(ctx context.Context, resolver roleResolver, actorID string) (authz.Actor, error) {
	role, err := resolver.Resolve(ctx, actorID)
	if err != nil {
		return authz.Actor{}, fmt.Errorf("failed to resolve actor role: %w", err)
	}
	return authz.Actor{ID: actorID, Role: role}, nil
}
