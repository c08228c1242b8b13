package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Lyndoncatan/onlin-examination/internal/cache"
	"github.com/Lyndoncatan/onlin-examination/internal/models"
	"github.com/Lyndoncatan/onlin-examination/internal/repositories"
)

type ExamPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager

	// inTx marks a sub-repo whose db handle IS a transaction, as built by
	// WithTransaction. Reads must then skip the cache even when the caller
	// passes tx == nil.
	inTx bool
}

func NewExamPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// NewExamPostgreSQLTx builds the transaction-scoped variant around a tx handle.
func NewExamPostgreSQLTx(tx *gorm.DB, redisClient *redis.Client) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:           tx,
		cacheManager: cache.NewCacheManager(redisClient),
		inTx:         true,
	}
}

// bypassCache reports whether a read must go straight to the database: either
// the caller handed in an explicit transaction, or this sub-repo was built on
// one.
func (e *ExamPostgreSQL) bypassCache(tx *gorm.DB) bool {
	return tx != nil || e.inTx
}

func (e *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	return pick(e.db, tx).WithContext(ctx).Create(exam).Error
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := pick(e.db, tx)

	// Reads inside a transaction bypass the cache; they need current rows.
	if e.bypassCache(tx) {
		var exam models.Exam
		if err := db.WithContext(ctx).First(&exam, id).Error; err != nil {
			return nil, err
		}
		return &exam, nil
	}

	cacheKey := fmt.Sprintf("id:%d", id)
	var exam models.Exam
	err := e.cacheManager.Exam.CacheOrExecute(ctx, cacheKey, &exam, cache.ExamCacheConfig.TTL, func() (interface{}, error) {
		var dbExam models.Exam
		if err := db.WithContext(ctx).First(&dbExam, id).Error; err != nil {
			return nil, err
		}
		return &dbExam, nil
	})
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	var exam models.Exam
	if err := pick(e.db, tx).WithContext(ctx).
		Preload("Subject").
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_number ASC, id ASC")
		}).
		First(&exam, id).Error; err != nil {
		return nil, err
	}
	exam.QuestionsCount = len(exam.Questions)
	return &exam, nil
}

func (e *ExamPostgreSQL) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	if err := pick(e.db, tx).WithContext(ctx).Save(exam).Error; err != nil {
		return err
	}
	e.invalidate(ctx, exam.ID)
	return nil
}

func (e *ExamPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := pick(e.db, tx)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var attemptIDs []uint
		if err := tx.Model(&models.ExamAttempt{}).Where("exam_id = ?", id).Pluck("id", &attemptIDs).Error; err != nil {
			return fmt.Errorf("failed to collect attempt ids: %w", err)
		}
		if len(attemptIDs) > 0 {
			if err := tx.Where("attempt_id IN ?", attemptIDs).Delete(&models.StudentAnswer{}).Error; err != nil {
				return fmt.Errorf("failed to delete answers: %w", err)
			}
		}
		if err := tx.Where("exam_id = ?", id).Delete(&models.ExamAttempt{}).Error; err != nil {
			return fmt.Errorf("failed to delete attempts: %w", err)
		}
		if err := tx.Where("exam_id = ?", id).Delete(&models.Question{}).Error; err != nil {
			return fmt.Errorf("failed to delete questions: %w", err)
		}

		result := tx.Delete(&models.Exam{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete exam: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.invalidate(ctx, id)
	return nil
}

func (e *ExamPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	var exams []*models.Exam
	var total int64

	query := pick(e.db, tx).WithContext(ctx).Model(&models.Exam{})
	query = e.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applySort(query, filters.SortBy, filters.SortOrder, "created_at",
		map[string]bool{"created_at": true, "title": true})
	query = applyPagination(query, filters.Limit, filters.Offset)

	if err := query.Preload("Subject").Find(&exams).Error; err != nil {
		return nil, 0, err
	}
	return exams, total, nil
}

func (e *ExamPostgreSQL) GetBySubject(ctx context.Context, tx *gorm.DB, subjectID uint, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	filters.SubjectID = &subjectID
	return e.List(ctx, tx, filters)
}

func (e *ExamPostgreSQL) SetTotalMarks(ctx context.Context, tx *gorm.DB, examID uint, totalMarks int) error {
	if err := pick(e.db, tx).WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", examID).
		Update("total_marks", totalMarks).Error; err != nil {
		return fmt.Errorf("failed to set total marks: %w", err)
	}
	e.invalidate(ctx, examID)
	return nil
}

func (e *ExamPostgreSQL) applyFilters(query *gorm.DB, filters repositories.ExamFilters) *gorm.DB {
	if filters.SubjectID != nil {
		query = query.Where("subject_id = ?", *filters.SubjectID)
	}
	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

func (e *ExamPostgreSQL) invalidate(ctx context.Context, examID uint) {
	_ = e.cacheManager.Exam.Delete(ctx, fmt.Sprintf("id:%d", examID))
	_ = e.cacheManager.Question.Delete(ctx, fmt.Sprintf("exam:%d", examID))
}
