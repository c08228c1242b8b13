package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Lyndoncatan/onlin-examination/internal/models"
	"github.com/Lyndoncatan/onlin-examination/internal/repositories"
)

type AnswerPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerPostgreSQL(db *gorm.DB) repositories.AnswerRepository {
	return &AnswerPostgreSQL{db: db}
}

// Upsert writes the answer keyed by (attempt_id, question_id). Re-answering a
// question overwrites the previous selection, so one row per question holds.
func (a *AnswerPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, answer *models.StudentAnswer) error {
	return pick(a.db, tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"selected_answer", "updated_at"}),
		}).
		Create(answer).Error
}

func (a *AnswerPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.StudentAnswer, error) {
	var answers []*models.StudentAnswer
	if err := pick(a.db, tx).WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}

// UpdateBatch persists graded answers. Used by the scoring pass, which runs
// inside the submit transaction so grading is all-or-nothing.
func (a *AnswerPostgreSQL) UpdateBatch(ctx context.Context, tx *gorm.DB, answers []*models.StudentAnswer) error {
	db := pick(a.db, tx)
	for _, answer := range answers {
		if err := db.WithContext(ctx).
			Model(&models.StudentAnswer{}).
			Where("id = ?", answer.ID).
			Updates(map[string]interface{}{"is_correct": answer.IsCorrect}).Error; err != nil {
			return fmt.Errorf("failed to update answer %d: %w", answer.ID, err)
		}
	}
	return nil
}
