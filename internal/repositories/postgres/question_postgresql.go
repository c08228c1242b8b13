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

type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (q *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if err := pick(q.db, tx).WithContext(ctx).Create(question).Error; err != nil {
		return err
	}
	q.invalidateExam(ctx, question.ExamID)
	return nil
}

func (q *QuestionPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	if err := pick(q.db, tx).WithContext(ctx).CreateInBatches(questions, 100).Error; err != nil {
		return err
	}
	q.invalidateExam(ctx, questions[0].ExamID)
	return nil
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	var question models.Question
	if err := pick(q.db, tx).WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	if err := pick(q.db, tx).WithContext(ctx).Save(question).Error; err != nil {
		return err
	}
	q.invalidateExam(ctx, question.ExamID)
	return nil
}

func (q *QuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := pick(q.db, tx)

	var question models.Question
	if err := db.WithContext(ctx).First(&question, id).Error; err != nil {
		return err
	}

	// Answers referencing the question go first so the FK never dangles.
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&models.StudentAnswer{}).Error; err != nil {
			return fmt.Errorf("failed to delete answers: %w", err)
		}
		if err := tx.Delete(&models.Question{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete question: %w", err)
		}
		q.invalidateExam(ctx, question.ExamID)
		return nil
	})
}

func (q *QuestionPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Question, error) {
	var questions []*models.Question
	if err := pick(q.db, tx).WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("order_number ASC, id ASC").
		Find(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) SumMarksByExam(ctx context.Context, tx *gorm.DB, examID uint) (int, error) {
	var total int64
	err := pick(q.db, tx).WithContext(ctx).
		Model(&models.Question{}).
		Where("exam_id = ?", examID).
		Select("COALESCE(SUM(marks), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum marks: %w", err)
	}
	return int(total), nil
}

func (q *QuestionPostgreSQL) CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	var count int64
	err := pick(q.db, tx).WithContext(ctx).
		Model(&models.Question{}).
		Where("exam_id = ?", examID).
		Count(&count).Error
	return count, err
}

func (q *QuestionPostgreSQL) invalidateExam(ctx context.Context, examID uint) {
	_ = q.cacheManager.Question.Delete(ctx, fmt.Sprintf("exam:%d", examID))
	_ = q.cacheManager.Exam.Delete(ctx, fmt.Sprintf("id:%d", examID))
}
