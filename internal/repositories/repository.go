package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/Lyndoncatan/onlin-examination/internal/models"
)

// Repository aggregates all entity repositories.
type Repository interface {
	Profile() ProfileRepository
	Subject() SubjectRepository
	Exam() ExamRepository
	Question() QuestionRepository
	Attempt() AttemptRepository
	Answer() AnswerRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager manages repository lifecycle.
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type ProfileRepository interface {
	Create(ctx context.Context, tx *gorm.DB, profile *models.Profile) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Profile, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.Profile, error)
	Update(ctx context.Context, tx *gorm.DB, profile *models.Profile) error
	UpdateRole(ctx context.Context, tx *gorm.DB, id string, role models.UserRole) error
	List(ctx context.Context, tx *gorm.DB, filters ProfileFilters) ([]*models.Profile, int64, error)
}

type SubjectRepository interface {
	Create(ctx context.Context, tx *gorm.DB, subject *models.Subject) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Subject, error)
	Update(ctx context.Context, tx *gorm.DB, subject *models.Subject) error
	// Delete removes the subject and cascades to exams, questions, attempts
	// and answers in one transaction.
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters SubjectFilters) ([]*models.Subject, int64, error)
}

type ExamRepository interface {
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters ExamFilters) ([]*models.Exam, int64, error)
	GetBySubject(ctx context.Context, tx *gorm.DB, subjectID uint, filters ExamFilters) ([]*models.Exam, int64, error)
	// SetTotalMarks pins the derived total_marks column. Called inside the
	// same transaction as the question mutation that changed the sum.
	SetTotalMarks(ctx context.Context, tx *gorm.DB, examID uint, totalMarks int) error
}

type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	CreateBatch(ctx context.Context, tx *gorm.DB, questions []*models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	// GetByExam returns the exam's questions ordered by (order_number, id).
	GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Question, error)
	SumMarksByExam(ctx context.Context, tx *gorm.DB, examID uint) (int, error)
	CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error)
}

type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error
	// Complete flips the attempt to completed together with its score fields,
	// conditioned on the row still being in progress. A finalizer that lost the
	// race gets gorm.ErrRecordNotFound instead of overwriting the winner.
	Complete(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error
	List(ctx context.Context, tx *gorm.DB, filters AttemptFilters) ([]*models.ExamAttempt, int64, error)
	GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters AttemptFilters) ([]*models.ExamAttempt, int64, error)
	GetActiveAttempt(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (*models.ExamAttempt, error)
}

type AnswerRepository interface {
	// Upsert inserts or overwrites the answer keyed by (attempt_id, question_id).
	Upsert(ctx context.Context, tx *gorm.DB, answer *models.StudentAnswer) error
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.StudentAnswer, error)
	UpdateBatch(ctx context.Context, tx *gorm.DB, answers []*models.StudentAnswer) error
}
