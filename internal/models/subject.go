package models

import (
	"time"
)

// Subject groups exams. Deleting a subject cascades to its exams and,
// transitively, their questions, attempts and answers - intentional cascade.
type Subject struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Name        string  `json:"name" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description *string `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	IsActive    bool    `json:"is_active" gorm:"not null;default:true;index"`

	CreatedBy string    `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exams   []Exam  `json:"exams,omitempty" gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE"`
	Creator Profile `json:"creator" gorm:"foreignKey:CreatedBy"`
}

func (Subject) TableName() string {
	return "subjects"
}
