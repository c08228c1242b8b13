package models

import (
	"time"
)

type Exam struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	SubjectID   uint    `json:"subject_id" gorm:"not null;index"`
	Title       string  `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`

	// Duration in minutes. The server-side attempt deadline is derived from it.
	DurationMinutes int `json:"duration_minutes" gorm:"not null" validate:"required,min=5,max=300"`

	// TotalMarks is derived: kept equal to the sum of the exam's question marks
	// inside the same transaction as any question mutation.
	TotalMarks   int  `json:"total_marks" gorm:"not null;default:0"`
	PassingMarks int  `json:"passing_marks" gorm:"not null" validate:"min=0"`
	IsActive     bool `json:"is_active" gorm:"not null;default:false;index"`

	CreatedBy string    `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Subject   Subject       `json:"subject" gorm:"foreignKey:SubjectID"`
	Questions []Question    `json:"questions,omitempty" gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE"`
	Attempts  []ExamAttempt `json:"attempts,omitempty" gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE"`
	Creator   Profile       `json:"creator" gorm:"foreignKey:CreatedBy"`

	// Computed fields (not stored)
	QuestionsCount int `json:"questions_count" gorm:"-"`
}

func (Exam) TableName() string {
	return "exams"
}
