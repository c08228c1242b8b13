package validator

import (
	"testing"
)

func TestValidate_ExamCreateRequest(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		req       ExamCreateRequest
		wantValid bool
		wantField string
	}{
		{
			name: "valid exam",
			req: ExamCreateRequest{
				SubjectID:       1,
				Title:           "Midterm",
				DurationMinutes: 60,
				PassingMarks:    10,
			},
			wantValid: true,
		},
		{
			name: "missing title",
			req: ExamCreateRequest{
				SubjectID:       1,
				DurationMinutes: 60,
				PassingMarks:    10,
			},
			wantValid: false,
			wantField: "title",
		},
		{
			name: "duration too short",
			req: ExamCreateRequest{
				SubjectID:       1,
				Title:           "Quick quiz",
				DurationMinutes: 2,
				PassingMarks:    5,
			},
			wantValid: false,
			wantField: "durationminutes",
		},
		{
			name: "duration too long",
			req: ExamCreateRequest{
				SubjectID:       1,
				Title:           "Marathon",
				DurationMinutes: 400,
				PassingMarks:    5,
			},
			wantValid: false,
			wantField: "durationminutes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.Validate(tt.req)
			if tt.wantValid {
				if errs.HasErrors() {
					t.Errorf("Validate() = %v, want no errors", errs)
				}
				return
			}
			if !errs.HasErrors() {
				t.Fatal("Validate() passed, want errors")
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("Validate() errors = %v, want a failure on field %q", errs, tt.wantField)
			}
		})
	}
}

func TestValidate_QuestionCreateRequest(t *testing.T) {
	v := New()

	valid := QuestionCreateRequest{
		QuestionText:  "What is 2 + 2?",
		OptionA:       "3",
		OptionB:       "4",
		OptionC:       "5",
		OptionD:       "6",
		CorrectAnswer: "B",
		Marks:         5,
		OrderNumber:   1,
	}

	if errs := v.Validate(valid); errs.HasErrors() {
		t.Fatalf("Validate() = %v, want no errors", errs)
	}

	t.Run("invalid answer choice", func(t *testing.T) {
		req := valid
		req.CorrectAnswer = "E"
		errs := v.Validate(req)
		if !errs.HasErrors() {
			t.Fatal("Validate() passed with correct_answer E")
		}
		if errs[0].Rule != "answer_choice" {
			t.Errorf("rule = %q, want answer_choice", errs[0].Rule)
		}
	})

	t.Run("marks out of range", func(t *testing.T) {
		req := valid
		req.Marks = 500
		if errs := v.Validate(req); !errs.HasErrors() {
			t.Error("Validate() passed with marks 500")
		}
	})

	t.Run("zero marks", func(t *testing.T) {
		req := valid
		req.Marks = 0
		if errs := v.Validate(req); !errs.HasErrors() {
			t.Error("Validate() passed with marks 0")
		}
	})
}

func TestValidate_RoleUpdateRequest(t *testing.T) {
	v := New()

	if errs := v.Validate(RoleUpdateRequest{Role: "admin"}); errs.HasErrors() {
		t.Errorf("Validate(admin) = %v, want no errors", errs)
	}
	if errs := v.Validate(RoleUpdateRequest{Role: "student"}); errs.HasErrors() {
		t.Errorf("Validate(student) = %v, want no errors", errs)
	}
	if errs := v.Validate(RoleUpdateRequest{Role: "superuser"}); !errs.HasErrors() {
		t.Error("Validate(superuser) passed, want user_role failure")
	}
	if errs := v.Validate(RoleUpdateRequest{Role: ""}); !errs.HasErrors() {
		t.Error("Validate(empty role) passed, want required failure")
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "title", Message: "is required"},
		{Field: "marks", Message: "must be between 1 and 100"},
	}
	got := errs.Error()
	want := "title: is required; marks: must be between 1 and 100"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if (ValidationErrors{}).HasErrors() {
		t.Error("empty ValidationErrors reports HasErrors() = true")
	}
}
