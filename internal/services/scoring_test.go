package services

import (
	"testing"

	"github.com/Lyndoncatan/onlin-examination/internal/models"
)

func question(id uint, correct models.AnswerChoice, marks int) *models.Question {
	return &models.Question{ID: id, CorrectAnswer: correct, Marks: marks}
}

func answer(questionID uint, selected models.AnswerChoice) *models.StudentAnswer {
	return &models.StudentAnswer{QuestionID: questionID, SelectedAnswer: selected}
}

func TestScoreAnswers(t *testing.T) {
	questions := []*models.Question{
		question(1, models.ChoiceB, 10),
		question(2, models.ChoiceA, 10),
		question(3, models.ChoiceD, 5),
	}

	tests := []struct {
		name    string
		answers []*models.StudentAnswer
		want    int
	}{
		{
			name: "all correct",
			answers: []*models.StudentAnswer{
				answer(1, models.ChoiceB),
				answer(2, models.ChoiceA),
				answer(3, models.ChoiceD),
			},
			want: 25,
		},
		{
			name: "partially correct",
			answers: []*models.StudentAnswer{
				answer(1, models.ChoiceB),
				answer(2, models.ChoiceC),
				answer(3, models.ChoiceD),
			},
			want: 15,
		},
		{
			name:    "no answers",
			answers: nil,
			want:    0,
		},
		{
			name: "unanswered questions contribute zero",
			answers: []*models.StudentAnswer{
				answer(1, models.ChoiceB),
			},
			want: 10,
		},
		{
			name: "answer for removed question graded wrong",
			answers: []*models.StudentAnswer{
				answer(99, models.ChoiceA),
				answer(1, models.ChoiceB),
			},
			want: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreAnswers(questions, tt.answers)
			if got != tt.want {
				t.Errorf("ScoreAnswers() = %d, want %d", got, tt.want)
			}
			for _, a := range tt.answers {
				if a.IsCorrect == nil {
					t.Errorf("answer for question %d not graded", a.QuestionID)
				}
			}
		})
	}
}

func TestScoreAnswers_MarksIsCorrect(t *testing.T) {
	questions := []*models.Question{question(1, models.ChoiceB, 10)}

	right := answer(1, models.ChoiceB)
	wrong := answer(1, models.ChoiceA)
	ScoreAnswers(questions, []*models.StudentAnswer{right})
	ScoreAnswers(questions, []*models.StudentAnswer{wrong})

	if right.IsCorrect == nil || !*right.IsCorrect {
		t.Error("matching selection should be marked correct")
	}
	if wrong.IsCorrect == nil || *wrong.IsCorrect {
		t.Error("mismatched selection should be marked incorrect")
	}
}

func TestScoreAnswers_Idempotent(t *testing.T) {
	questions := []*models.Question{
		question(1, models.ChoiceB, 10),
		question(2, models.ChoiceA, 10),
	}
	answers := []*models.StudentAnswer{
		answer(1, models.ChoiceB),
		answer(2, models.ChoiceC),
	}

	first := ScoreAnswers(questions, answers)
	second := ScoreAnswers(questions, answers)
	if first != second {
		t.Errorf("scoring is not idempotent: %d then %d", first, second)
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name       string
		score      int
		totalMarks int
		want       float64
	}{
		{"full marks", 25, 25, 100},
		{"partial", 15, 25, 60},
		{"zero score", 0, 25, 0},
		{"zero total yields zero", 10, 0, 0},
		{"rounds to two decimals", 1, 3, 33.33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percentage(tt.score, tt.totalMarks); got != tt.want {
				t.Errorf("Percentage(%d, %d) = %v, want %v", tt.score, tt.totalMarks, got, tt.want)
			}
		})
	}
}

func TestPassed(t *testing.T) {
	if !Passed(15, 15) {
		t.Error("score equal to passing marks should pass")
	}
	if Passed(14, 15) {
		t.Error("score below passing marks should fail")
	}
	if !Passed(5, 0) {
		t.Error("zero passing marks should always pass")
	}
}
