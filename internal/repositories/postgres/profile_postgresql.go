package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Lyndoncatan/onlin-examination/internal/models"
	"github.com/Lyndoncatan/onlin-examination/internal/repositories"
)

type ProfilePostgreSQL struct {
	db *gorm.DB
}

func NewProfilePostgreSQL(db *gorm.DB) repositories.ProfileRepository {
	return &ProfilePostgreSQL{db: db}
}

func (p *ProfilePostgreSQL) Create(ctx context.Context, tx *gorm.DB, profile *models.Profile) error {
	return pick(p.db, tx).WithContext(ctx).Create(profile).Error
}

func (p *ProfilePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := pick(p.db, tx).WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (p *ProfilePostgreSQL) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.Profile, error) {
	var profile models.Profile
	if err := pick(p.db, tx).WithContext(ctx).First(&profile, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (p *ProfilePostgreSQL) Update(ctx context.Context, tx *gorm.DB, profile *models.Profile) error {
	return pick(p.db, tx).WithContext(ctx).Save(profile).Error
}

func (p *ProfilePostgreSQL) UpdateRole(ctx context.Context, tx *gorm.DB, id string, role models.UserRole) error {
	result := pick(p.db, tx).WithContext(ctx).
		Model(&models.Profile{}).
		Where("id = ?", id).
		Update("role", role)
	if result.Error != nil {
		return fmt.Errorf("failed to update role: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (p *ProfilePostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ProfileFilters) ([]*models.Profile, int64, error) {
	var profiles []*models.Profile
	var total int64

	query := pick(p.db, tx).WithContext(ctx).Model(&models.Profile{})
	if filters.Role != nil {
		query = query.Where("role = ?", *filters.Role)
	}
	if filters.Search != nil && *filters.Search != "" {
		pattern := "%" + *filters.Search + "%"
		query = query.Where("full_name ILIKE ? OR email ILIKE ?", pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applySort(query, filters.SortBy, filters.SortOrder, "created_at",
		map[string]bool{"created_at": true, "full_name": true, "email": true})
	query = applyPagination(query, filters.Limit, filters.Offset)

	if err := query.Find(&profiles).Error; err != nil {
		return nil, 0, err
	}
	return profiles, total, nil
}
