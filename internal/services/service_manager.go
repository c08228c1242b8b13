package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Lyndoncatan/onlin-examination/internal/events"
	"github.com/Lyndoncatan/onlin-examination/internal/repositories"
	"github.com/Lyndoncatan/onlin-examination/internal/validator"
)

// serviceManager implements ServiceManager.
type serviceManager struct {
	repo      repositories.Repository
	resolver  roleResolver
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator

	profileService      ProfileService
	subjectService      SubjectService
	examService         ExamService
	questionService     QuestionService
	attemptService      AttemptService
	importExportService ImportExportService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a service manager with all dependencies.
func NewServiceManager(repo repositories.Repository, resolver roleResolver, publisher events.EventPublisher, logger *slog.Logger, v *validator.Validator) ServiceManager {
	return &serviceManager{
		repo:      repo,
		resolver:  resolver,
		publisher: publisher,
		logger:    logger,
		validator: v,
	}
}

func (m *serviceManager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}
	if m.repo == nil {
		return fmt.Errorf("repository is required")
	}
	if m.resolver == nil {
		return fmt.Errorf("role resolver is required")
	}

	m.profileService = NewProfileService(m.repo, m.resolver, m.publisher, m.logger, m.validator)
	m.subjectService = NewSubjectService(m.repo, m.resolver, m.logger, m.validator)
	m.examService = NewExamService(m.repo, m.resolver, m.publisher, m.logger, m.validator)
	m.questionService = NewQuestionService(m.repo, m.resolver, m.logger, m.validator)
	m.attemptService = NewAttemptService(m.repo, m.resolver, m.publisher, m.logger, m.validator)
	m.importExportService = NewImportExportService(m.repo, m.resolver, m.logger, m.validator)

	m.initialized = true
	m.logger.Info("Service manager initialized")
	return nil
}

func (m *serviceManager) Profile() ProfileService {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profileService
}

func (m *serviceManager) Subject() SubjectService {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.subjectService
}

func (m *serviceManager) Exam() ExamService {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.examService
}

func (m *serviceManager) Question() QuestionService {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.questionService
}

func (m *serviceManager) Attempt() AttemptService {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attemptService
}

func (m *serviceManager) ImportExport() ImportExportService {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.importExportService
}

func (m *serviceManager) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if m.shutdown {
		return fmt.Errorf("service manager is shut down")
	}
	return m.repo.Ping(ctx)
}

func (m *serviceManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return nil
	}
	m.shutdown = true

	if m.publisher != nil {
		if err := m.publisher.Close(); err != nil {
			m.logger.Warn("Failed to close event publisher", "error", err)
		}
	}
	m.logger.Info("Service manager shut down")
	return nil
}
