package services

import (
	"context"
	"io"

	"github.com/Lyndoncatan/onlin-examination/internal/models"
	"github.com/Lyndoncatan/onlin-examination/internal/repositories"
	"github.com/Lyndoncatan/onlin-examination/internal/validator"
)

// ===== RESPONSE DTOS =====

type ProfileResponse struct {
	*models.Profile
}

type SubjectResponse struct {
	*models.Subject
	ExamsCount int `json:"exams_count,omitempty"`
}

type ExamResponse struct {
	*models.Exam
}

// AttemptResponse is what a student sees while taking an exam: the attempt row,
// the questions with the answer key stripped, the answers recorded so far and
// the server-authoritative clock.
type AttemptResponse struct {
	Attempt          *models.ExamAttempt    `json:"attempt"`
	Questions        []*models.Question     `json:"questions,omitempty"`
	Answers          []*models.StudentAnswer `json:"answers,omitempty"`
	RemainingSeconds int                    `json:"remaining_seconds"`
	Resumed          bool                   `json:"resumed"`
}

// ResultResponse is the graded view of a completed attempt.
type ResultResponse struct {
	Attempt    *models.ExamAttempt     `json:"attempt"`
	Answers    []*models.StudentAnswer `json:"answers"`
	Score      int                     `json:"score"`
	TotalMarks int                     `json:"total_marks"`
	Percentage float64                 `json:"percentage"`
	Passed     bool                    `json:"passed"`
}

type ListResponse[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// ===== REQUEST DTOS =====

type StartAttemptRequest struct {
	ExamID      uint   `json:"exam_id" validate:"required"`
	SessionData []byte `json:"session_data,omitempty"`
}

// ===== SERVICE INTERFACES =====

type ProfileService interface {
	// EnsureProfile creates the profile row on first login, or returns the
	// existing one. New profiles default to the student role.
	EnsureProfile(ctx context.Context, req *validator.ProfileCreateRequest) (*ProfileResponse, error)
	GetByID(ctx context.Context, id string, actorID string) (*ProfileResponse, error)
	Update(ctx context.Context, id string, req *validator.ProfileUpdateRequest, actorID string) (*ProfileResponse, error)
	// UpdateRole promotes or demotes a profile. Admin only; the role cache for
	// the target identity is invalidated in the same call.
	UpdateRole(ctx context.Context, id string, req *validator.RoleUpdateRequest, actorID string) error
	List(ctx context.Context, filters repositories.ProfileFilters, actorID string) (*ListResponse[*ProfileResponse], error)
}

type SubjectService interface {
	Create(ctx context.Context, req *validator.SubjectCreateRequest, actorID string) (*SubjectResponse, error)
	GetByID(ctx context.Context, id uint, actorID string) (*SubjectResponse, error)
	Update(ctx context.Context, id uint, req *validator.SubjectUpdateRequest, actorID string) (*SubjectResponse, error)
	// Delete cascades to the subject's exams, questions, attempts and answers.
	Delete(ctx context.Context, id uint, actorID string) error
	List(ctx context.Context, filters repositories.SubjectFilters, actorID string) (*ListResponse[*SubjectResponse], error)
}

type ExamService interface {
	Create(ctx context.Context, req *validator.ExamCreateRequest, actorID string) (*ExamResponse, error)
	GetByID(ctx context.Context, id uint, actorID string) (*ExamResponse, error)
	// GetWithQuestions returns the exam with its ordered questions. For
	// students the answer key is stripped; admins get the full rows.
	GetWithQuestions(ctx context.Context, id uint, actorID string) (*ExamResponse, error)
	Update(ctx context.Context, id uint, req *validator.ExamUpdateRequest, actorID string) (*ExamResponse, error)
	Delete(ctx context.Context, id uint, actorID string) error
	List(ctx context.Context, filters repositories.ExamFilters, actorID string) (*ListResponse[*ExamResponse], error)
}

type QuestionService interface {
	// Create appends a question and re-syncs the exam's total_marks in the
	// same transaction.
	Create(ctx context.Context, examID uint, req *validator.QuestionCreateRequest, actorID string) (*models.Question, error)
	GetByID(ctx context.Context, examID, id uint, actorID string) (*models.Question, error)
	Update(ctx context.Context, examID, id uint, req *validator.QuestionUpdateRequest, actorID string) (*models.Question, error)
	Delete(ctx context.Context, examID, id uint, actorID string) error
	ListByExam(ctx context.Context, examID uint, actorID string) ([]*models.Question, error)
}

type AttemptService interface {
	// StartOrResume returns the student's active attempt for the exam,
	// creating one when none exists. Concurrent calls converge on a single
	// attempt row.
	StartOrResume(ctx context.Context, req *StartAttemptRequest, studentID string) (*AttemptResponse, error)
	// RecordAnswer saves or overwrites one answer. Rejected after the server
	// deadline; an expired attempt is finalized as timed out.
	RecordAnswer(ctx context.Context, attemptID uint, req *validator.AnswerSubmitRequest, studentID string) error
	// Submit finalizes the attempt and runs the scoring pass in one
	// transaction. Idempotent errors: a second submit returns
	// ErrAttemptAlreadySubmitted.
	Submit(ctx context.Context, attemptID uint, studentID string) (*ResultResponse, error)
	GetByID(ctx context.Context, attemptID uint, actorID string) (*AttemptResponse, error)
	// GetResult returns the graded view of a completed attempt.
	GetResult(ctx context.Context, attemptID uint, actorID string) (*ResultResponse, error)
	GetTimeRemaining(ctx context.Context, attemptID uint, studentID string) (int, error)
	ListByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters, actorID string) (*ListResponse[*models.ExamAttempt], error)
	ListByExam(ctx context.Context, examID uint, filters repositories.AttemptFilters, actorID string) (*ListResponse[*models.ExamAttempt], error)
}

type ImportExportService interface {
	// ImportQuestions reads an xlsx sheet of questions and appends them to the
	// exam, re-syncing total_marks in the same transaction.
	ImportQuestions(ctx context.Context, examID uint, r io.Reader, actorID string) (int, error)
	// ExportQuestions writes the exam's questions, answer key included, as an
	// xlsx workbook. Admin only.
	ExportQuestions(ctx context.Context, examID uint, w io.Writer, actorID string) error
	// ExportResults writes the exam's completed attempts as an xlsx workbook.
	ExportResults(ctx context.Context, examID uint, w io.Writer, actorID string) error
}

// ServiceManager wires all services and manages their lifecycle.
type ServiceManager interface {
	Profile() ProfileService
	Subject() SubjectService
	Exam() ExamService
	Question() QuestionService
	Attempt() AttemptService
	ImportExport() ImportExportService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
