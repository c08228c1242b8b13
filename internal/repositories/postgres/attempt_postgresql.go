package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/Lyndoncatan/onlin-examination/internal/models"
	"github.com/Lyndoncatan/onlin-examination/internal/repositories"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

// Create inserts a new attempt. The partial unique index on
// (exam_id, student_id) WHERE status = 'in_progress' makes concurrent starts
// for the same student and exam collide here; callers translate the duplicate
// key error into a resume of the surviving row.
func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	return pick(a.db, tx).WithContext(ctx).Create(attempt).Error
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	if err := pick(a.db, tx).WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	if err := pick(a.db, tx).WithContext(ctx).
		Preload("Exam").
		Preload("Student").
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_id ASC")
		}).
		First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	return pick(a.db, tx).WithContext(ctx).Save(attempt).Error
}

// Complete is the finalize write: a conditional update keyed on the row still
// being in progress. Two finalizers racing under READ COMMITTED both reload an
// in_progress row, but only one UPDATE matches; the other sees zero rows and
// reports the attempt as already finalized.
func (a *AttemptPostgreSQL) Complete(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	result := pick(a.db, tx).WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("id = ? AND status = ?", attempt.ID, models.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":       attempt.Status,
			"completed_at": attempt.CompletedAt,
			"score":        attempt.Score,
			"percentage":   attempt.Percentage,
			"end_reason":   attempt.EndReason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	var attempts []*models.ExamAttempt
	var total int64

	query := pick(a.db, tx).WithContext(ctx).Model(&models.ExamAttempt{})
	query = a.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applySort(query, filters.SortBy, filters.SortOrder, "started_at",
		map[string]bool{"started_at": true, "completed_at": true, "score": true})
	query = applyPagination(query, filters.Limit, filters.Offset)

	if err := query.Preload("Exam").Find(&attempts).Error; err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}

func (a *AttemptPostgreSQL) GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	filters.StudentID = &studentID
	return a.List(ctx, tx, filters)
}

func (a *AttemptPostgreSQL) GetActiveAttempt(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	err := pick(a.db, tx).WithContext(ctx).
		Where("student_id = ? AND exam_id = ? AND status = ?", studentID, examID, models.AttemptInProgress).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) applyFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.ExamID != nil {
		query = query.Where("exam_id = ?", *filters.ExamID)
	}
	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.DateFrom != nil {
		query = query.Where("started_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("started_at <= ?", *filters.DateTo)
	}
	return query
}
