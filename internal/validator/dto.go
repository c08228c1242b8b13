package validator

import (
	"github.com/Lyndoncatan/onlin-examination/internal/models"
)

// ProfileCreateRequest creates a profile row for an authenticated identity.
type ProfileCreateRequest struct {
	ID       string `json:"id" validate:"required,max=128"`
	FullName string `json:"full_name" validate:"required,min=1,max=200"`
	Email    string `json:"email" validate:"required,email"`
}

type ProfileUpdateRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=200"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

// RoleUpdateRequest changes a profile's role. Admin only.
type RoleUpdateRequest struct {
	Role models.UserRole `json:"role" validate:"required,user_role"`
}

type SubjectCreateRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	IsActive    *bool   `json:"is_active"`
}

type SubjectUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	IsActive    *bool   `json:"is_active"`
}

type ExamCreateRequest struct {
	SubjectID       uint    `json:"subject_id" validate:"required"`
	Title           string  `json:"title" validate:"required,min=1,max=300"`
	Description     *string `json:"description" validate:"omitempty,max=2000"`
	DurationMinutes int     `json:"duration_minutes" validate:"required,exam_duration"`
	PassingMarks    int     `json:"passing_marks" validate:"min=0"`
	IsActive        *bool   `json:"is_active"`
}

type ExamUpdateRequest struct {
	Title           *string `json:"title" validate:"omitempty,min=1,max=300"`
	Description     *string `json:"description" validate:"omitempty,max=2000"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,exam_duration"`
	PassingMarks    *int    `json:"passing_marks" validate:"omitempty,min=0"`
	IsActive        *bool   `json:"is_active"`
}

type QuestionCreateRequest struct {
	QuestionText  string              `json:"question_text" validate:"required,min=1,max=2000"`
	OptionA       string              `json:"option_a" validate:"required,max=1000"`
	OptionB       string              `json:"option_b" validate:"required,max=1000"`
	OptionC       string              `json:"option_c" validate:"required,max=1000"`
	OptionD       string              `json:"option_d" validate:"required,max=1000"`
	CorrectAnswer models.AnswerChoice `json:"correct_answer" validate:"required,answer_choice"`
	Marks         int                 `json:"marks" validate:"required,marks_range"`
	OrderNumber   int                 `json:"order_number" validate:"min=0"`
}

type QuestionUpdateRequest struct {
	QuestionText  *string              `json:"question_text" validate:"omitempty,min=1,max=2000"`
	OptionA       *string              `json:"option_a" validate:"omitempty,max=1000"`
	OptionB       *string              `json:"option_b" validate:"omitempty,max=1000"`
	OptionC       *string              `json:"option_c" validate:"omitempty,max=1000"`
	OptionD       *string              `json:"option_d" validate:"omitempty,max=1000"`
	CorrectAnswer *models.AnswerChoice `json:"correct_answer" validate:"omitempty,answer_choice"`
	Marks         *int                 `json:"marks" validate:"omitempty,marks_range"`
	OrderNumber   *int                 `json:"order_number" validate:"omitempty,min=0"`
}

// AnswerSubmitRequest records a single answer during an attempt.
type AnswerSubmitRequest struct {
	QuestionID     uint                `json:"question_id" validate:"required"`
	SelectedAnswer models.AnswerChoice `json:"selected_answer" validate:"required,answer_choice"`
}
