package repositories

import (
	"time"

	"github.com/Lyndoncatan/onlin-examination/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type ProfileFilters struct {
	Role      *models.UserRole `json:"role"`
	Search    *string          `json:"search"` // matches name or email
	Limit     int              `json:"limit"`
	Offset    int              `json:"offset"`
	SortBy    string           `json:"sort_by"`
	SortOrder string           `json:"sort_order"`
}

type SubjectFilters struct {
	IsActive  *bool   `json:"is_active"`
	CreatedBy *string `json:"created_by"`
	Limit     int     `json:"limit"`
	Offset    int     `json:"offset"`
	SortBy    string  `json:"sort_by"`    // "created_at", "name"
	SortOrder string  `json:"sort_order"` // "asc", "desc"
}

type ExamFilters struct {
	SubjectID *uint      `json:"subject_id"`
	IsActive  *bool      `json:"is_active"`
	CreatedBy *string    `json:"created_by"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`
	SortOrder string     `json:"sort_order"`
}

type AttemptFilters struct {
	Status    *models.AttemptStatus `json:"status"`
	ExamID    *uint                 `json:"exam_id"`
	StudentID *string               `json:"student_id"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}
