package services

import (
	"math"

	"github.com/Lyndoncatan/onlin-examination/internal/models"
)

// ScoreAnswers grades the answers against the question key. Each answer's
// IsCorrect is set in place; the return value is the total marks earned.
// Unanswered questions contribute zero. Marks are the question's marks at
// grading time, all or nothing per question.
func ScoreAnswers(questions []*models.Question, answers []*models.StudentAnswer) int {
	key := make(map[uint]*models.Question, len(questions))
	for _, q := range questions {
		key[q.ID] = q
	}

	score := 0
	for _, answer := range answers {
		question, ok := key[answer.QuestionID]
		if !ok {
			// Answer for a question no longer on the exam; grade as wrong.
			incorrect := false
			answer.IsCorrect = &incorrect
			continue
		}
		correct := answer.SelectedAnswer == question.CorrectAnswer
		answer.IsCorrect = &correct
		if correct {
			score += question.Marks
		}
	}
	return score
}

// Percentage is score over total as a percentage rounded to two decimals.
// A zero total yields zero rather than dividing by zero.
func Percentage(score, totalMarks int) float64 {
	if totalMarks <= 0 {
		return 0
	}
	pct := float64(score) / float64(totalMarks) * 100
	return math.Round(pct*100) / 100
}

// Passed reports whether the score meets the exam's passing threshold.
func Passed(score, passingMarks int) bool {
	return score >= passingMarks
}
