package models

import (
	"time"
)

// AnswerChoice identifies one of the four fixed options of a question.
type AnswerChoice string

const (
	ChoiceA AnswerChoice = "A"
	ChoiceB AnswerChoice = "B"
	ChoiceC AnswerChoice = "C"
	ChoiceD AnswerChoice = "D"
)

func (c AnswerChoice) Valid() bool {
	switch c {
	case ChoiceA, ChoiceB, ChoiceC, ChoiceD:
		return true
	}
	return false
}

// Question is a four-option multiple choice item. Questions are ordered within
// an exam by OrderNumber; ties are broken by id (insertion order).
type Question struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	ExamID uint `json:"exam_id" gorm:"not null;index"`

	QuestionText string `json:"question_text" gorm:"type:text;not null" validate:"required"`
	OptionA      string `json:"option_a" gorm:"type:text;not null" validate:"required"`
	OptionB      string `json:"option_b" gorm:"type:text;not null" validate:"required"`
	OptionC      string `json:"option_c" gorm:"type:text;not null" validate:"required"`
	OptionD      string `json:"option_d" gorm:"type:text;not null" validate:"required"`

	CorrectAnswer AnswerChoice `json:"correct_answer" gorm:"not null;size:1" validate:"required,answer_choice"`
	Marks         int          `json:"marks" gorm:"not null;default:1" validate:"required,min=1"`
	OrderNumber   int          `json:"order_number" gorm:"not null;default:0;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam Exam `json:"exam" gorm:"foreignKey:ExamID"`
}

func (Question) TableName() string {
	return "questions"
}

// Sanitized returns a copy safe to hand to a student while an attempt is in
// progress: the answer key is stripped.
func (q *Question) Sanitized() *Question {
	if q == nil {
		return nil
	}
	clean := *q
	clean.CorrectAnswer = ""
	return &clean
}
