package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Lyndoncatan/onlin-examination/internal/models"
)

// Validator wraps go-playground/validator with the domain rules registered.
type Validator struct {
	validate *validator.Validate
}

// New creates a validator with all custom rules registered.
func New() *Validator {
	validate := validator.New()

	v := &Validator{validate: validate}
	v.registerDomainRules()

	return v
}

// Validate validates any struct and returns nil when it passes.
func (v *Validator) Validate(s interface{}) ValidationErrors {
	if err := v.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

func (v *Validator) registerDomainRules() {
	// Exam duration in minutes.
	_ = v.validate.RegisterValidation("exam_duration", func(fl validator.FieldLevel) bool {
		duration := fl.Field().Int()
		return duration >= 5 && duration <= 300
	})

	// Per-question marks.
	_ = v.validate.RegisterValidation("marks_range", func(fl validator.FieldLevel) bool {
		marks := fl.Field().Int()
		return marks >= 1 && marks <= 100
	})

	// Single-letter answer choice.
	_ = v.validate.RegisterValidation("answer_choice", func(fl validator.FieldLevel) bool {
		choice := models.AnswerChoice(fl.Field().String())
		return choice.Valid()
	})

	_ = v.validate.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		switch models.UserRole(fl.Field().String()) {
		case models.RoleStudent, models.RoleAdmin:
			return true
		}
		return false
	})
}

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation failures.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ToValidationErrors converts a go-playground error into our error type.
func ToValidationErrors(err error) ValidationErrors {
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return ValidationErrors{{Field: "request", Message: err.Error(), Rule: "invalid"}}
	}

	out := make(ValidationErrors, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		out = append(out, ValidationError{
			Field:   strings.ToLower(fe.Field()),
			Message: messageFor(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "exam_duration":
		return "must be between 5 and 300 minutes"
	case "marks_range":
		return "must be between 1 and 100"
	case "answer_choice":
		return "must be one of A, B, C, D"
	case "user_role":
		return "must be 'student' or 'admin'"
	default:
		return fmt.Sprintf("failed validation rule '%s'", fe.Tag())
	}
}
