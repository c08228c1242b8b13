package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/Lyndoncatan/onlin-examination/internal/events"
	"github.com/Lyndoncatan/onlin-examination/internal/models"
	"github.com/Lyndoncatan/onlin-examination/internal/repositories"
	"github.com/Lyndoncatan/onlin-examination/internal/validator"
)

// ===== IN-MEMORY REPOSITORY =====

type memoryStore struct {
	profiles  map[string]*models.Profile
	subjects  map[uint]*models.Subject
	exams     map[uint]*models.Exam
	questions map[uint]*models.Question
	attempts  map[uint]*models.ExamAttempt
	answers   map[uint]*models.StudentAnswer

	nextAttemptID uint
	nextAnswerID  uint
}

type memoryRepo struct {
	store *memoryStore
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{store: &memoryStore{
		profiles:      make(map[string]*models.Profile),
		subjects:      make(map[uint]*models.Subject),
		exams:         make(map[uint]*models.Exam),
		questions:     make(map[uint]*models.Question),
		attempts:      make(map[uint]*models.ExamAttempt),
		answers:       make(map[uint]*models.StudentAnswer),
		nextAttemptID: 1,
		nextAnswerID:  1,
	}}
}

func (r *memoryRepo) Profile() repositories.ProfileRepository   { return &memProfiles{r.store} }
func (r *memoryRepo) Subject() repositories.SubjectRepository   { return &memSubjects{r.store} }
func (r *memoryRepo) Exam() repositories.ExamRepository         { return &memExams{r.store} }
func (r *memoryRepo) Question() repositories.QuestionRepository { return &memQuestions{r.store} }
func (r *memoryRepo) Attempt() repositories.AttemptRepository   { return &memAttempts{r.store} }
func (r *memoryRepo) Answer() repositories.AnswerRepository     { return &memAnswers{r.store} }

func (r *memoryRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(r)
}
func (r *memoryRepo) Ping(ctx context.Context) error { return nil }
func (r *memoryRepo) Close() error                   { return nil }

type memProfiles struct{ s *memoryStore }

func (m *memProfiles) Create(ctx context.Context, tx *gorm.DB, p *models.Profile) error {
	m.s.profiles[p.ID] = p
	return nil
}
func (m *memProfiles) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Profile, error) {
	if p, ok := m.s.profiles[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *memProfiles) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.Profile, error) {
	for _, p := range m.s.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *memProfiles) Update(ctx context.Context, tx *gorm.DB, p *models.Profile) error {
	m.s.profiles[p.ID] = p
	return nil
}
func (m *memProfiles) UpdateRole(ctx context.Context, tx *gorm.DB, id string, role models.UserRole) error {
	p, ok := m.s.profiles[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Role = role
	return nil
}
func (m *memProfiles) List(ctx context.Context, tx *gorm.DB, f repositories.ProfileFilters) ([]*models.Profile, int64, error) {
	return nil, 0, nil
}

type memSubjects struct{ s *memoryStore }

func (m *memSubjects) Create(ctx context.Context, tx *gorm.DB, sub *models.Subject) error {
	m.s.subjects[sub.ID] = sub
	return nil
}
func (m *memSubjects) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Subject, error) {
	if sub, ok := m.s.subjects[id]; ok {
		return sub, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *memSubjects) Update(ctx context.Context, tx *gorm.DB, sub *models.Subject) error { return nil }
func (m *memSubjects) Delete(ctx context.Context, tx *gorm.DB, id uint) error             { return nil }
func (m *memSubjects) List(ctx context.Context, tx *gorm.DB, f repositories.SubjectFilters) ([]*models.Subject, int64, error) {
	return nil, 0, nil
}

type memExams struct{ s *memoryStore }

func (m *memExams) Create(ctx context.Context, tx *gorm.DB, e *models.Exam) error {
	m.s.exams[e.ID] = e
	return nil
}
func (m *memExams) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	if e, ok := m.s.exams[id]; ok {
		return e, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *memExams) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	return m.GetByID(ctx, tx, id)
}
func (m *memExams) Update(ctx context.Context, tx *gorm.DB, e *models.Exam) error { return nil }
func (m *memExams) Delete(ctx context.Context, tx *gorm.DB, id uint) error        { return nil }
func (m *memExams) List(ctx context.Context, tx *gorm.DB, f repositories.ExamFilters) ([]*models.Exam, int64, error) {
	return nil, 0, nil
}
func (m *memExams) GetBySubject(ctx context.Context, tx *gorm.DB, subjectID uint, f repositories.ExamFilters) ([]*models.Exam, int64, error) {
	return nil, 0, nil
}
func (m *memExams) SetTotalMarks(ctx context.Context, tx *gorm.DB, examID uint, totalMarks int) error {
	if e, ok := m.s.exams[examID]; ok {
		e.TotalMarks = totalMarks
	}
	return nil
}

type memQuestions struct{ s *memoryStore }

func (m *memQuestions) Create(ctx context.Context, tx *gorm.DB, q *models.Question) error {
	m.s.questions[q.ID] = q
	return nil
}
func (m *memQuestions) CreateBatch(ctx context.Context, tx *gorm.DB, qs []*models.Question) error {
	for _, q := range qs {
		m.s.questions[q.ID] = q
	}
	return nil
}
func (m *memQuestions) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	if q, ok := m.s.questions[id]; ok {
		return q, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *memQuestions) Update(ctx context.Context, tx *gorm.DB, q *models.Question) error { return nil }
func (m *memQuestions) Delete(ctx context.Context, tx *gorm.DB, id uint) error            { return nil }
func (m *memQuestions) GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Question, error) {
	var out []*models.Question
	for _, q := range m.s.questions {
		if q.ExamID == examID {
			out = append(out, q)
		}
	}
	return out, nil
}
func (m *memQuestions) SumMarksByExam(ctx context.Context, tx *gorm.DB, examID uint) (int, error) {
	total := 0
	for _, q := range m.s.questions {
		if q.ExamID == examID {
			total += q.Marks
		}
	}
	return total, nil
}
func (m *memQuestions) CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	var count int64
	for _, q := range m.s.questions {
		if q.ExamID == examID {
			count++
		}
	}
	return count, nil
}

type memAttempts struct{ s *memoryStore }

func (m *memAttempts) Create(ctx context.Context, tx *gorm.DB, a *models.ExamAttempt) error {
	for _, existing := range m.s.attempts {
		if existing.StudentID == a.StudentID && existing.ExamID == a.ExamID &&
			existing.Status == models.AttemptInProgress {
			return gorm.ErrDuplicatedKey
		}
	}
	a.ID = m.s.nextAttemptID
	m.s.nextAttemptID++
	m.s.attempts[a.ID] = a
	return nil
}
func (m *memAttempts) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	if a, ok := m.s.attempts[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (m *memAttempts) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	attempt, err := m.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if e, ok := m.s.exams[attempt.ExamID]; ok {
		attempt.Exam = *e
	}
	for _, a := range m.s.answers {
		if a.AttemptID == id {
			attempt.Answers = append(attempt.Answers, *a)
		}
	}
	return attempt, nil
}
func (m *memAttempts) Update(ctx context.Context, tx *gorm.DB, a *models.ExamAttempt) error {
	m.s.attempts[a.ID] = a
	return nil
}
func (m *memAttempts) Complete(ctx context.Context, tx *gorm.DB, a *models.ExamAttempt) error {
	stored, ok := m.s.attempts[a.ID]
	if !ok || stored.Status != models.AttemptInProgress {
		return gorm.ErrRecordNotFound
	}
	copied := *a
	m.s.attempts[a.ID] = &copied
	return nil
}
func (m *memAttempts) List(ctx context.Context, tx *gorm.DB, f repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	var out []*models.ExamAttempt
	for _, a := range m.s.attempts {
		if f.ExamID != nil && a.ExamID != *f.ExamID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}
func (m *memAttempts) GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, f repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	f.StudentID = &studentID
	var out []*models.ExamAttempt
	for _, a := range m.s.attempts {
		if a.StudentID == studentID {
			out = append(out, a)
		}
	}
	return out, int64(len(out)), nil
}
func (m *memAttempts) GetActiveAttempt(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (*models.ExamAttempt, error) {
	for _, a := range m.s.attempts {
		if a.StudentID == studentID && a.ExamID == examID && a.Status == models.AttemptInProgress {
			copied := *a
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type memAnswers struct{ s *memoryStore }

func (m *memAnswers) Upsert(ctx context.Context, tx *gorm.DB, a *models.StudentAnswer) error {
	for _, existing := range m.s.answers {
		if existing.AttemptID == a.AttemptID && existing.QuestionID == a.QuestionID {
			existing.SelectedAnswer = a.SelectedAnswer
			a.ID = existing.ID
			return nil
		}
	}
	a.ID = m.s.nextAnswerID
	m.s.nextAnswerID++
	m.s.answers[a.ID] = a
	return nil
}
func (m *memAnswers) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.StudentAnswer, error) {
	var out []*models.StudentAnswer
	for _, a := range m.s.answers {
		if a.AttemptID == attemptID {
			out = append(out, a)
		}
	}
	return out, nil
}
func (m *memAnswers) UpdateBatch(ctx context.Context, tx *gorm.DB, answers []*models.StudentAnswer) error {
	for _, a := range answers {
		m.s.answers[a.ID] = a
	}
	return nil
}

// ===== FIXTURES =====

type fixedResolver struct {
	roles       map[string]models.UserRole
	invalidated []string
}

func (r *fixedResolver) Resolve(ctx context.Context, id string) (models.UserRole, error) {
	return r.roles[id], nil
}
func (r *fixedResolver) Invalidate(ctx context.Context, id string) {
	r.invalidated = append(r.invalidated, id)
}

func newTestAttemptService(t *testing.T) (*attemptService, *memoryRepo, *events.MockEventPublisher) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	repo := newMemoryRepo()
	publisher := events.NewMockEventPublisher(logger)
	resolver := &fixedResolver{roles: map[string]models.UserRole{
		"student-1": models.RoleStudent,
		"student-2": models.RoleStudent,
		"admin-1":   models.RoleAdmin,
	}}

	svc := NewAttemptService(repo, resolver, publisher, logger, validator.New()).(*attemptService)

	repo.store.subjects[1] = &models.Subject{ID: 1, Name: "Mathematics", IsActive: true}
	repo.store.exams[1] = &models.Exam{
		ID: 1, SubjectID: 1, Title: "Algebra Basics",
		DurationMinutes: 30, TotalMarks: 20, PassingMarks: 10, IsActive: true,
	}
	repo.store.questions[1] = &models.Question{ID: 1, ExamID: 1, CorrectAnswer: models.ChoiceB, Marks: 10}
	repo.store.questions[2] = &models.Question{ID: 2, ExamID: 1, CorrectAnswer: models.ChoiceA, Marks: 10}

	return svc, repo, publisher
}

// ===== TESTS =====

func TestAttemptService_StartOrResume(t *testing.T) {
	svc, _, publisher := newTestAttemptService(t)
	ctx := context.Background()

	first, err := svc.StartOrResume(ctx, &StartAttemptRequest{ExamID: 1}, "student-1")
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}
	if first.Resumed {
		t.Error("first start should not be a resume")
	}
	if first.Attempt.TotalMarks != 20 {
		t.Errorf("total marks snapshot = %d, want 20", first.Attempt.TotalMarks)
	}
	if got := first.Attempt.ExpiresAt.Sub(first.Attempt.StartedAt); got != 30*time.Minute {
		t.Errorf("deadline = started + %v, want 30m", got)
	}
	for _, q := range first.Questions {
		if q.CorrectAnswer != "" {
			t.Error("questions handed to a student must not carry the answer key")
		}
	}

	second, err := svc.StartOrResume(ctx, &StartAttemptRequest{ExamID: 1}, "student-1")
	if err != nil {
		t.Fatalf("StartOrResume() second call error = %v", err)
	}
	if !second.Resumed {
		t.Error("second start should resume the active attempt")
	}
	if second.Attempt.ID != first.Attempt.ID {
		t.Errorf("resumed attempt id = %d, want %d", second.Attempt.ID, first.Attempt.ID)
	}

	published := publisher.GetPublishedEvents()
	if len(published) != 1 {
		t.Fatalf("expected 1 started event, got %d", len(published))
	}
	if published[0].Type != events.TopicAttemptStarted {
		t.Errorf("event type = %q, want %q", published[0].Type, events.TopicAttemptStarted)
	}
}

func TestAttemptService_StartOrResume_InactiveExam(t *testing.T) {
	svc, repo, _ := newTestAttemptService(t)
	repo.store.exams[1].IsActive = false

	_, err := svc.StartOrResume(context.Background(), &StartAttemptRequest{ExamID: 1}, "student-1")
	if !errors.Is(err, ErrExamNotAvailable) {
		t.Errorf("error = %v, want ErrExamNotAvailable", err)
	}
}

func TestAttemptService_StartOrResume_InactiveSubjectHidesExam(t *testing.T) {
	svc, repo, _ := newTestAttemptService(t)
	repo.store.subjects[1].IsActive = false

	_, err := svc.StartOrResume(context.Background(), &StartAttemptRequest{ExamID: 1}, "student-1")
	if !errors.Is(err, ErrExamNotAvailable) {
		t.Errorf("error = %v, want ErrExamNotAvailable", err)
	}
}

func TestAttemptService_StartOrResume_NoRole(t *testing.T) {
	svc, _, _ := newTestAttemptService(t)

	_, err := svc.StartOrResume(context.Background(), &StartAttemptRequest{ExamID: 1}, "stranger")
	if !IsPermissionError(err) {
		t.Errorf("error = %v, want permission error for unresolved role", err)
	}
}

func TestAttemptService_RecordAnswerAndSubmit(t *testing.T) {
	svc, _, publisher := newTestAttemptService(t)
	ctx := context.Background()

	started, err := svc.StartOrResume(ctx, &StartAttemptRequest{ExamID: 1}, "student-1")
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}
	attemptID := started.Attempt.ID

	// Correct, then overwrite question 2 with a wrong choice.
	if err := svc.RecordAnswer(ctx, attemptID, &validator.AnswerSubmitRequest{QuestionID: 1, SelectedAnswer: models.ChoiceB}, "student-1"); err != nil {
		t.Fatalf("RecordAnswer() error = %v", err)
	}
	if err := svc.RecordAnswer(ctx, attemptID, &validator.AnswerSubmitRequest{QuestionID: 2, SelectedAnswer: models.ChoiceA}, "student-1"); err != nil {
		t.Fatalf("RecordAnswer() error = %v", err)
	}
	if err := svc.RecordAnswer(ctx, attemptID, &validator.AnswerSubmitRequest{QuestionID: 2, SelectedAnswer: models.ChoiceC}, "student-1"); err != nil {
		t.Fatalf("RecordAnswer() overwrite error = %v", err)
	}

	result, err := svc.Submit(ctx, attemptID, "student-1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.Score != 10 {
		t.Errorf("score = %d, want 10", result.Score)
	}
	if result.Percentage != 50 {
		t.Errorf("percentage = %v, want 50", result.Percentage)
	}
	if !result.Passed {
		t.Error("10/20 with passing marks 10 should pass")
	}

	published := publisher.GetPublishedEvents()
	last := published[len(published)-1]
	if last.Type != events.TopicAttemptSubmitted {
		t.Errorf("last event = %q, want %q", last.Type, events.TopicAttemptSubmitted)
	}
}

func TestAttemptService_SubmitTwice(t *testing.T) {
	svc, _, _ := newTestAttemptService(t)
	ctx := context.Background()

	started, _ := svc.StartOrResume(ctx, &StartAttemptRequest{ExamID: 1}, "student-1")
	if _, err := svc.Submit(ctx, started.Attempt.ID, "student-1"); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	_, err := svc.Submit(ctx, started.Attempt.ID, "student-1")
	if !errors.Is(err, ErrAttemptAlreadySubmitted) {
		t.Errorf("second Submit() error = %v, want ErrAttemptAlreadySubmitted", err)
	}
}

func TestAttemptService_OwnershipEnforced(t *testing.T) {
	svc, _, _ := newTestAttemptService(t)
	ctx := context.Background()

	started, _ := svc.StartOrResume(ctx, &StartAttemptRequest{ExamID: 1}, "student-1")

	err := svc.RecordAnswer(ctx, started.Attempt.ID, &validator.AnswerSubmitRequest{QuestionID: 1, SelectedAnswer: models.ChoiceA}, "student-2")
	if !IsPermissionError(err) {
		t.Errorf("RecordAnswer() by other student: error = %v, want permission error", err)
	}

	if _, err := svc.Submit(ctx, started.Attempt.ID, "student-2"); !IsPermissionError(err) {
		t.Errorf("Submit() by other student: error = %v, want permission error", err)
	}

	// Admin may read but the attempt still belongs to the student: no
	// force-submit, no answering on the student's behalf.
	if _, err := svc.GetByID(ctx, started.Attempt.ID, "admin-1"); err != nil {
		t.Errorf("GetByID() by admin: error = %v, want nil", err)
	}
	if _, err := svc.Submit(ctx, started.Attempt.ID, "admin-1"); !IsPermissionError(err) {
		t.Errorf("Submit() by admin: error = %v, want permission error", err)
	}
	err = svc.RecordAnswer(ctx, started.Attempt.ID, &validator.AnswerSubmitRequest{QuestionID: 1, SelectedAnswer: models.ChoiceB}, "admin-1")
	if !IsPermissionError(err) {
		t.Errorf("RecordAnswer() by admin: error = %v, want permission error", err)
	}
}

func TestAttemptService_DeadlineEnforced(t *testing.T) {
	svc, _, publisher := newTestAttemptService(t)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }

	started, err := svc.StartOrResume(ctx, &StartAttemptRequest{ExamID: 1}, "student-1")
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}
	if err := svc.RecordAnswer(ctx, started.Attempt.ID, &validator.AnswerSubmitRequest{QuestionID: 1, SelectedAnswer: models.ChoiceB}, "student-1"); err != nil {
		t.Fatalf("RecordAnswer() error = %v", err)
	}

	// Client disappears for 40 minutes on a 30-minute exam.
	svc.now = func() time.Time { return base.Add(40 * time.Minute) }

	err = svc.RecordAnswer(ctx, started.Attempt.ID, &validator.AnswerSubmitRequest{QuestionID: 2, SelectedAnswer: models.ChoiceA}, "student-1")
	if !errors.Is(err, ErrAttemptTimeExpired) {
		t.Fatalf("RecordAnswer() after deadline: error = %v, want ErrAttemptTimeExpired", err)
	}

	// The expired attempt was finalized as timed out with the answers it had.
	result, err := svc.GetResult(ctx, started.Attempt.ID, "student-1")
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if result.Attempt.Status != models.AttemptCompleted {
		t.Errorf("status = %q, want completed", result.Attempt.Status)
	}
	if result.Attempt.EndReason == nil || *result.Attempt.EndReason != models.AttemptEndReasonTimeout {
		t.Error("end reason should be time_out")
	}
	if result.Score != 10 {
		t.Errorf("score = %d, want 10 (only the in-time answer counts)", result.Score)
	}

	published := publisher.GetPublishedEvents()
	last := published[len(published)-1]
	if last.Type != events.TopicAttemptTimedOut {
		t.Errorf("last event = %q, want %q", last.Type, events.TopicAttemptTimedOut)
	}
}

func TestAttemptService_TimeRemainingClampedAtZero(t *testing.T) {
	svc, _, _ := newTestAttemptService(t)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }

	started, _ := svc.StartOrResume(ctx, &StartAttemptRequest{ExamID: 1}, "student-1")

	svc.now = func() time.Time { return base.Add(10 * time.Minute) }
	remaining, err := svc.GetTimeRemaining(ctx, started.Attempt.ID, "student-1")
	if err != nil {
		t.Fatalf("GetTimeRemaining() error = %v", err)
	}
	if remaining != 20*60 {
		t.Errorf("remaining = %d, want %d", remaining, 20*60)
	}

	svc.now = func() time.Time { return base.Add(time.Hour) }
	remaining, err = svc.GetTimeRemaining(ctx, started.Attempt.ID, "student-1")
	if err != nil {
		t.Fatalf("GetTimeRemaining() after expiry error = %v", err)
	}
	if remaining != 0 {
		t.Errorf("remaining after expiry = %d, want 0", remaining)
	}

	// The clock call finalized the overdue attempt.
	result, err := svc.GetResult(ctx, started.Attempt.ID, "student-1")
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if result.Attempt.Status != models.AttemptCompleted {
		t.Error("expired attempt should be finalized by the clock check")
	}
}

func TestAttemptService_ConcurrentStartConvergesOnOneRow(t *testing.T) {
	svc, repo, _ := newTestAttemptService(t)
	ctx := context.Background()

	first, err := svc.StartOrResume(ctx, &StartAttemptRequest{ExamID: 1}, "student-1")
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}

	// Simulate the second racer hitting the unique index directly.
	err = repo.Attempt().Create(ctx, nil, &models.ExamAttempt{
		ExamID: 1, StudentID: "student-1", Status: models.AttemptInProgress,
	})
	if !repositories.IsDuplicateError(err) {
		t.Fatalf("second insert error = %v, want duplicate key", err)
	}

	resumed, err := svc.StartOrResume(ctx, &StartAttemptRequest{ExamID: 1}, "student-1")
	if err != nil {
		t.Fatalf("StartOrResume() after race error = %v", err)
	}
	if resumed.Attempt.ID != first.Attempt.ID {
		t.Errorf("race loser got attempt %d, want winner's %d", resumed.Attempt.ID, first.Attempt.ID)
	}
}

func TestAttemptService_MidAttemptQuestionAddedCapsAtSnapshot(t *testing.T) {
	svc, repo, _ := newTestAttemptService(t)
	ctx := context.Background()

	started, err := svc.StartOrResume(ctx, &StartAttemptRequest{ExamID: 1}, "student-1")
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}
	if started.Attempt.TotalMarks != 20 {
		t.Fatalf("snapshot = %d, want 20", started.Attempt.TotalMarks)
	}

	// A big question lands on the exam while the attempt is running.
	repo.store.questions[3] = &models.Question{ID: 3, ExamID: 1, CorrectAnswer: models.ChoiceD, Marks: 50}

	for _, ans := range []validator.AnswerSubmitRequest{
		{QuestionID: 1, SelectedAnswer: models.ChoiceB},
		{QuestionID: 2, SelectedAnswer: models.ChoiceA},
		{QuestionID: 3, SelectedAnswer: models.ChoiceD},
	} {
		req := ans
		if err := svc.RecordAnswer(ctx, started.Attempt.ID, &req, "student-1"); err != nil {
			t.Fatalf("RecordAnswer(%d) error = %v", ans.QuestionID, err)
		}
	}

	result, err := svc.Submit(ctx, started.Attempt.ID, "student-1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.Score != 20 {
		t.Errorf("score = %d, want 20 (capped at the snapshot)", result.Score)
	}
	if result.Percentage > 100 {
		t.Errorf("percentage = %v, must never exceed 100", result.Percentage)
	}
	if result.Percentage != 100 {
		t.Errorf("percentage = %v, want 100", result.Percentage)
	}
}

// staleAttempts returns in_progress on reads even after the store row has been
// finalized, reproducing what a second finalizer sees under READ COMMITTED
// before the first one commits.
type staleAttempts struct {
	repositories.AttemptRepository
	s *memoryStore
}

func (m *staleAttempts) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	attempt, err := m.AttemptRepository.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	attempt.Status = models.AttemptInProgress
	attempt.Score = nil
	attempt.CompletedAt = nil
	return attempt, nil
}

type staleReadRepo struct{ *memoryRepo }

func (r *staleReadRepo) Attempt() repositories.AttemptRepository {
	return &staleAttempts{r.memoryRepo.Attempt(), r.store}
}
func (r *staleReadRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(r)
}

func TestAttemptService_ConcurrentFinalizeCompletesOnce(t *testing.T) {
	svc, repo, publisher := newTestAttemptService(t)
	ctx := context.Background()

	started, err := svc.StartOrResume(ctx, &StartAttemptRequest{ExamID: 1}, "student-1")
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}
	if err := svc.RecordAnswer(ctx, started.Attempt.ID, &validator.AnswerSubmitRequest{QuestionID: 1, SelectedAnswer: models.ChoiceB}, "student-1"); err != nil {
		t.Fatalf("RecordAnswer() error = %v", err)
	}
	if _, err := svc.Submit(ctx, started.Attempt.ID, "student-1"); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	eventsBefore := len(publisher.GetPublishedEvents())

	// Second finalizer whose reads predate the first one's commit: every
	// status check sees in_progress, so only the conditional completion
	// write can stop the double finalize.
	svc.repo = &staleReadRepo{repo}

	_, err = svc.Submit(ctx, started.Attempt.ID, "student-1")
	if !errors.Is(err, ErrAttemptAlreadySubmitted) {
		t.Fatalf("racing Submit() error = %v, want ErrAttemptAlreadySubmitted", err)
	}

	stored := repo.store.attempts[started.Attempt.ID]
	if stored.Status != models.AttemptCompleted {
		t.Error("attempt should stay completed")
	}
	if stored.EndReason == nil || *stored.EndReason != models.AttemptEndReasonSubmitted {
		t.Error("winning finalizer's end reason must survive the race")
	}
	if got := len(publisher.GetPublishedEvents()); got != eventsBefore {
		t.Errorf("racing finalizer published %d extra events, want 0", got-eventsBefore)
	}
}

func TestAttemptService_StartAfterExpiryFinalizesAndOpensRetake(t *testing.T) {
	svc, _, publisher := newTestAttemptService(t)
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }

	first, err := svc.StartOrResume(ctx, &StartAttemptRequest{ExamID: 1}, "student-1")
	if err != nil {
		t.Fatalf("StartOrResume() error = %v", err)
	}
	if err := svc.RecordAnswer(ctx, first.Attempt.ID, &validator.AnswerSubmitRequest{QuestionID: 1, SelectedAnswer: models.ChoiceB}, "student-1"); err != nil {
		t.Fatalf("RecordAnswer() error = %v", err)
	}

	// Reopen long after the 30-minute deadline.
	svc.now = func() time.Time { return base.Add(2 * time.Hour) }

	retake, err := svc.StartOrResume(ctx, &StartAttemptRequest{ExamID: 1}, "student-1")
	if err != nil {
		t.Fatalf("StartOrResume() after expiry error = %v", err)
	}
	if retake.Resumed {
		t.Error("expired attempt must not be resumed")
	}
	if retake.Attempt.ID == first.Attempt.ID {
		t.Error("retake should be a fresh attempt row")
	}
	if got := retake.Attempt.ExpiresAt.Sub(retake.Attempt.StartedAt); got != 30*time.Minute {
		t.Errorf("retake deadline = started + %v, want 30m", got)
	}

	// The stale attempt was finalized as timed out with its in-time answers.
	old, err := svc.GetResult(ctx, first.Attempt.ID, "student-1")
	if err != nil {
		t.Fatalf("GetResult() on expired attempt error = %v", err)
	}
	if old.Attempt.Status != models.AttemptCompleted {
		t.Error("expired attempt should be completed")
	}
	if old.Attempt.EndReason == nil || *old.Attempt.EndReason != models.AttemptEndReasonTimeout {
		t.Error("expired attempt end reason should be time_out")
	}
	if old.Score != 10 {
		t.Errorf("expired attempt score = %d, want 10", old.Score)
	}

	var sawTimeout, sawSecondStart bool
	for _, e := range publisher.GetPublishedEvents() {
		switch e.Type {
		case events.TopicAttemptTimedOut:
			sawTimeout = true
		case events.TopicAttemptStarted:
			sawSecondStart = true
		}
	}
	if !sawTimeout || !sawSecondStart {
		t.Error("expiry retake should publish both a timed-out and a started event")
	}
}

func TestAttemptService_GetResultBeforeCompletion(t *testing.T) {
	svc, _, _ := newTestAttemptService(t)
	ctx := context.Background()

	started, _ := svc.StartOrResume(ctx, &StartAttemptRequest{ExamID: 1}, "student-1")
	_, err := svc.GetResult(ctx, started.Attempt.ID, "student-1")
	if !errors.Is(err, ErrAttemptNotCompleted) {
		t.Errorf("GetResult() on live attempt: error = %v, want ErrAttemptNotCompleted", err)
	}
}
