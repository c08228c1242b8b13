package services

import (
	"context"
	"fmt"

	"github.com/Lyndoncatan/onlin-examination/internal/events"
	"github.com/Lyndoncatan/onlin-examination/internal/models"
	"github.com/Lyndoncatan/onlin-examination/internal/repositories"
)

// examAvailableForAttempt checks that the exam and its subject are active and
// that there is something to answer.
func (s *attemptService) examAvailableForAttempt(ctx context.Context, examID uint) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if !exam.IsActive {
		return nil, ErrExamNotAvailable
	}

	subject, err := s.repo.Subject().GetByID(ctx, nil, exam.SubjectID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotAvailable
		}
		return nil, fmt.Errorf("failed to get subject: %w", err)
	}
	if !subject.IsActive {
		return nil, ErrExamNotAvailable
	}

	count, err := s.repo.Question().CountByExam(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}
	if count == 0 {
		return nil, ErrExamHasNoQuestions
	}
	return exam, nil
}

// finalize runs the scoring pass and closes the attempt in one transaction.
// The status flip is guarded by a conditional update, so two finalizers racing
// on the same attempt produce exactly one completed row and one
// ErrAttemptAlreadySubmitted.
func (s *attemptService) finalize(ctx context.Context, attempt *models.ExamAttempt, endReason string) (*ResultResponse, error) {
	now := s.now()

	exam, err := s.repo.Exam().GetByID(ctx, nil, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load exam: %w", err)
	}

	var result *ResultResponse
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		current, err := txRepo.Attempt().GetByID(ctx, nil, attempt.ID)
		if err != nil {
			return fmt.Errorf("failed to reload attempt: %w", err)
		}
		if current.Status != models.AttemptInProgress {
			return ErrAttemptAlreadySubmitted
		}

		questions, err := txRepo.Question().GetByExam(ctx, nil, current.ExamID)
		if err != nil {
			return fmt.Errorf("failed to load questions: %w", err)
		}
		answers, err := txRepo.Answer().GetByAttempt(ctx, nil, current.ID)
		if err != nil {
			return fmt.Errorf("failed to load answers: %w", err)
		}

		score := ScoreAnswers(questions, answers)
		// Questions added or re-marked mid-attempt can push the earned marks
		// past the snapshot. The snapshot stays the denominator, so the score
		// caps there and the percentage never exceeds 100.
		if score > current.TotalMarks {
			score = current.TotalMarks
		}
		percentage := Percentage(score, current.TotalMarks)

		if err := txRepo.Answer().UpdateBatch(ctx, nil, answers); err != nil {
			return fmt.Errorf("failed to persist graded answers: %w", err)
		}

		completedAt := now
		current.Status = models.AttemptCompleted
		current.CompletedAt = &completedAt
		current.Score = &score
		current.Percentage = &percentage
		current.EndReason = &endReason

		if err := txRepo.Attempt().Complete(ctx, nil, current); err != nil {
			if repositories.IsNotFoundError(err) {
				// Another finalizer won between our reload and the write.
				return ErrAttemptAlreadySubmitted
			}
			return fmt.Errorf("failed to finalize attempt: %w", err)
		}

		result = &ResultResponse{
			Attempt:    current,
			Answers:    answers,
			Score:      score,
			TotalMarks: current.TotalMarks,
			Percentage: percentage,
			Passed:     Passed(score, exam.PassingMarks),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	topic := events.TopicAttemptSubmitted
	if endReason == models.AttemptEndReasonTimeout {
		topic = events.TopicAttemptTimedOut
	}
	s.logger.Info("Attempt finalized",
		"attempt_id", result.Attempt.ID,
		"score", result.Score,
		"total_marks", result.TotalMarks,
		"end_reason", endReason)
	s.publish(ctx, topic, map[string]interface{}{
		"attempt_id": result.Attempt.ID,
		"exam_id":    result.Attempt.ExamID,
		"student_id": result.Attempt.StudentID,
		"score":      result.Score,
		"percentage": result.Percentage,
		"end_reason": endReason,
	})
	return result, nil
}

func (s *attemptService) getAttempt(ctx context.Context, attemptID uint) (*models.ExamAttempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return attempt, nil
}

// buildAttemptResponse assembles the student view of an attempt: sanitized
// questions, recorded answers and the server clock.
func (s *attemptService) buildAttemptResponse(ctx context.Context, attempt *models.ExamAttempt, resumed bool) (*AttemptResponse, error) {
	resp := &AttemptResponse{
		Attempt:          attempt,
		RemainingSeconds: attempt.RemainingSeconds(s.now()),
		Resumed:          resumed,
	}
	if attempt.Status != models.AttemptInProgress {
		resp.RemainingSeconds = 0
		return resp, nil
	}

	questions, err := s.repo.Question().GetByExam(ctx, nil, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	sanitized := make([]*models.Question, len(questions))
	for i, q := range questions {
		sanitized[i] = q.Sanitized()
	}
	resp.Questions = sanitized

	answers, err := s.repo.Answer().GetByAttempt(ctx, nil, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers: %w", err)
	}
	// Correctness is not revealed mid-attempt.
	for _, a := range answers {
		a.IsCorrect = nil
	}
	resp.Answers = answers
	return resp, nil
}

func (s *attemptService) buildResultResponse(ctx context.Context, attemptID uint) (*ResultResponse, error) {
	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}

	answers := make([]*models.StudentAnswer, len(attempt.Answers))
	for i := range attempt.Answers {
		answers[i] = &attempt.Answers[i]
	}

	score := 0
	if attempt.Score != nil {
		score = *attempt.Score
	}
	percentage := 0.0
	if attempt.Percentage != nil {
		percentage = *attempt.Percentage
	}

	return &ResultResponse{
		Attempt:    attempt,
		Answers:    answers,
		Score:      score,
		TotalMarks: attempt.TotalMarks,
		Percentage: percentage,
		Passed:     Passed(score, attempt.Exam.PassingMarks),
	}, nil
}

func (s *attemptService) publish(ctx context.Context, topic string, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, topic, events.NewEvent(topic, data)); err != nil {
		s.logger.Warn("Failed to publish event", "topic", topic, "error", err)
	}
}
