package authz

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"gorm.io/gorm"

	"github.com/Lyndoncatan/onlin-examination/internal/models"
	"github.com/Lyndoncatan/onlin-examination/internal/repositories"
)

type stubProfileRepo struct {
	profiles map[string]*models.Profile
	failWith error
}

func (s *stubProfileRepo) Create(ctx context.Context, tx *gorm.DB, p *models.Profile) error {
	return nil
}

func (s *stubProfileRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Profile, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	p, ok := s.profiles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (s *stubProfileRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.Profile, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubProfileRepo) Update(ctx context.Context, tx *gorm.DB, p *models.Profile) error {
	return nil
}

func (s *stubProfileRepo) UpdateRole(ctx context.Context, tx *gorm.DB, id string, role models.UserRole) error {
	return nil
}

func (s *stubProfileRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.ProfileFilters) ([]*models.Profile, int64, error) {
	return nil, 0, nil
}

func newTestResolver(repo repositories.ProfileRepository) *RoleResolver {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return NewRoleResolver(repo, nil, logger)
}

func TestRoleResolver_Resolve(t *testing.T) {
	repo := &stubProfileRepo{profiles: map[string]*models.Profile{
		"admin-1":   {ID: "admin-1", Role: models.RoleAdmin},
		"student-1": {ID: "student-1", Role: models.RoleStudent},
	}}
	resolver := newTestResolver(repo)
	ctx := context.Background()

	tests := []struct {
		name string
		id   string
		want models.UserRole
	}{
		{"admin profile", "admin-1", models.RoleAdmin},
		{"student profile", "student-1", models.RoleStudent},
		{"missing profile fails closed", "nobody", models.RoleUnknown},
		{"empty identity fails closed", "", models.RoleUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(ctx, tt.id)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRoleResolver_BackendFailure(t *testing.T) {
	repo := &stubProfileRepo{failWith: errors.New("connection refused")}
	resolver := newTestResolver(repo)

	role, err := resolver.Resolve(context.Background(), "student-1")
	if err == nil {
		t.Fatal("expected error when backend unavailable")
	}
	if role != models.RoleUnknown {
		t.Errorf("Resolve() on failure = %q, want RoleUnknown", role)
	}
}
