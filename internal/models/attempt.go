package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

const (
	AttemptEndReasonSubmitted = "submitted"
	AttemptEndReasonTimeout   = "time_out"
)

// ExamAttempt is one student's run through one exam. At most one in_progress
// row may exist per (student, exam); a partial unique index enforces this so
// concurrent start requests cannot create duplicates.
type ExamAttempt struct {
	ID        uint          `json:"id" gorm:"primaryKey"`
	ExamID    uint          `json:"exam_id" gorm:"not null;index;uniqueIndex:idx_student_exam_in_progress,where:status = 'in_progress'"`
	StudentID string        `json:"student_id" gorm:"not null;index;size:255;uniqueIndex:idx_student_exam_in_progress,where:status = 'in_progress'"`
	Status    AttemptStatus `json:"status" gorm:"not null;default:in_progress;index"`

	// Timing. ExpiresAt = StartedAt + exam duration, computed server-side at
	// creation. Any answer or submit arriving after it is rejected and the
	// attempt is finalized regardless of client liveness.
	StartedAt   time.Time  `json:"started_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Scoring. TotalMarks is snapshotted from the exam at creation so later
	// exam edits do not retroactively change historical results.
	Score      *int     `json:"score"`
	Percentage *float64 `json:"percentage"`
	TotalMarks int      `json:"total_marks" gorm:"not null"`

	// Metadata
	EndReason   *string        `json:"end_reason" gorm:"size:20"`
	SessionData datatypes.JSON `json:"session_data" gorm:"type:jsonb"` // client hints: user agent, screen, etc.

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam    Exam            `json:"exam" gorm:"foreignKey:ExamID"`
	Student Profile         `json:"student" gorm:"foreignKey:StudentID"`
	Answers []StudentAnswer `json:"answers,omitempty" gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`
}

func (ExamAttempt) TableName() string {
	return "exam_attempts"
}

// Expired reports whether the server deadline has passed.
func (a *ExamAttempt) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// RemainingSeconds is the time left on the attempt clock, clamped at zero.
func (a *ExamAttempt) RemainingSeconds(now time.Time) int {
	remaining := int(a.ExpiresAt.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// StudentAnswer records the selected option for one question of one attempt.
// Unique per (attempt, question); answering again overwrites. IsCorrect stays
// nil until the attempt is submitted and the scoring pass runs.
type StudentAnswer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;index;uniqueIndex:idx_attempt_question"`
	QuestionID uint `json:"question_id" gorm:"not null;index;uniqueIndex:idx_attempt_question"`

	SelectedAnswer AnswerChoice `json:"selected_answer" gorm:"not null;size:1"`
	IsCorrect      *bool        `json:"is_correct"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Attempt  ExamAttempt `json:"attempt" gorm:"foreignKey:AttemptID"`
	Question Question    `json:"question" gorm:"foreignKey:QuestionID"`
}

func (StudentAnswer) TableName() string {
	return "student_answers"
}
