package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Lyndoncatan/onlin-examination/internal/models"
	"github.com/Lyndoncatan/onlin-examination/internal/repositories"
)

type SubjectPostgreSQL struct {
	db *gorm.DB
}

func NewSubjectPostgreSQL(db *gorm.DB) repositories.SubjectRepository {
	return &SubjectPostgreSQL{db: db}
}

func (s *SubjectPostgreSQL) Create(ctx context.Context, tx *gorm.DB, subject *models.Subject) error {
	return pick(s.db, tx).WithContext(ctx).Create(subject).Error
}

func (s *SubjectPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Subject, error) {
	var subject models.Subject
	if err := pick(s.db, tx).WithContext(ctx).First(&subject, id).Error; err != nil {
		return nil, err
	}
	return &subject, nil
}

func (s *SubjectPostgreSQL) Update(ctx context.Context, tx *gorm.DB, subject *models.Subject) error {
	return pick(s.db, tx).WithContext(ctx).Save(subject).Error
}

// Delete removes the subject and everything under it. The cascade is explicit
// and bottom-up so it also holds on databases where the FK constraints were
// created without ON DELETE CASCADE.
func (s *SubjectPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := pick(s.db, tx)
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var examIDs []uint
		if err := tx.Model(&models.Exam{}).Where("subject_id = ?", id).Pluck("id", &examIDs).Error; err != nil {
			return fmt.Errorf("failed to collect exam ids: %w", err)
		}

		if len(examIDs) > 0 {
			var attemptIDs []uint
			if err := tx.Model(&models.ExamAttempt{}).Where("exam_id IN ?", examIDs).Pluck("id", &attemptIDs).Error; err != nil {
				return fmt.Errorf("failed to collect attempt ids: %w", err)
			}
			if len(attemptIDs) > 0 {
				if err := tx.Where("attempt_id IN ?", attemptIDs).Delete(&models.StudentAnswer{}).Error; err != nil {
					return fmt.Errorf("failed to delete answers: %w", err)
				}
			}
			if err := tx.Where("exam_id IN ?", examIDs).Delete(&models.ExamAttempt{}).Error; err != nil {
				return fmt.Errorf("failed to delete attempts: %w", err)
			}
			if err := tx.Where("exam_id IN ?", examIDs).Delete(&models.Question{}).Error; err != nil {
				return fmt.Errorf("failed to delete questions: %w", err)
			}
			if err := tx.Where("subject_id = ?", id).Delete(&models.Exam{}).Error; err != nil {
				return fmt.Errorf("failed to delete exams: %w", err)
			}
		}

		result := tx.Delete(&models.Subject{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete subject: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (s *SubjectPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.SubjectFilters) ([]*models.Subject, int64, error) {
	var subjects []*models.Subject
	var total int64

	query := pick(s.db, tx).WithContext(ctx).Model(&models.Subject{})
	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applySort(query, filters.SortBy, filters.SortOrder, "created_at",
		map[string]bool{"created_at": true, "name": true})
	query = applyPagination(query, filters.Limit, filters.Offset)

	if err := query.Find(&subjects).Error; err != nil {
		return nil, 0, err
	}
	return subjects, total, nil
}
