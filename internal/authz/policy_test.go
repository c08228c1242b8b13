package authz

import (
	"testing"

	"github.com/Lyndoncatan/onlin-examination/internal/models"
)

var (
	admin    = Actor{ID: "admin-1", Role: models.RoleAdmin}
	owner    = Actor{ID: "student-1", Role: models.RoleStudent}
	other    = Actor{ID: "student-2", Role: models.RoleStudent}
	unknown  = Actor{ID: "ghost-1", Role: models.RoleUnknown}
	allOps   = []Operation{OpCreate, OpRead, OpUpdate, OpDelete}
	writeOps = []Operation{OpCreate, OpUpdate, OpDelete}
)

func TestCanAccessProfile(t *testing.T) {
	profile := &models.Profile{ID: "student-1", Role: models.RoleStudent}

	tests := []struct {
		name  string
		actor Actor
		op    Operation
		want  bool
	}{
		{"owner reads own row", owner, OpRead, true},
		{"owner updates own row", owner, OpUpdate, true},
		{"owner cannot delete own row", owner, OpDelete, false},
		{"owner cannot create rows", owner, OpCreate, false},
		{"other student denied read", other, OpRead, false},
		{"other student denied update", other, OpUpdate, false},
		{"admin reads any row", admin, OpRead, true},
		{"admin updates any row", admin, OpUpdate, true},
		{"missing profile fails closed", unknown, OpRead, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanAccessProfile(tt.actor, profile, tt.op); got != tt.want {
				t.Errorf("CanAccessProfile() = %v, want %v", got, tt.want)
			}
		})
	}

	if CanAccessProfile(admin, nil, OpRead) {
		t.Error("nil profile row must be denied even for admin")
	}
}

func TestCanChangeRole(t *testing.T) {
	if !CanChangeRole(admin) {
		t.Error("admin must be allowed to change roles")
	}
	// A student must never escalate their own role via a write they control.
	if CanChangeRole(owner) || CanChangeRole(other) || CanChangeRole(unknown) {
		t.Error("non-admin must never change roles")
	}
}

func TestCanAccessSubject(t *testing.T) {
	active := &models.Subject{ID: 1, IsActive: true}
	inactive := &models.Subject{ID: 2, IsActive: false}

	for _, op := range allOps {
		if !CanAccessSubject(admin, active, op) {
			t.Errorf("admin denied %s on subject", op)
		}
	}
	for _, op := range writeOps {
		if CanAccessSubject(owner, active, op) {
			t.Errorf("student allowed %s on subject", op)
		}
	}
	if !CanAccessSubject(owner, active, OpRead) {
		t.Error("student denied read of active subject")
	}
	if CanAccessSubject(owner, inactive, OpRead) {
		t.Error("student allowed read of inactive subject")
	}
	if CanAccessSubject(unknown, active, OpRead) {
		t.Error("identity without profile must be denied")
	}
}

func TestCanAccessExam(t *testing.T) {
	active := &models.Exam{ID: 1, IsActive: true}
	inactive := &models.Exam{ID: 2, IsActive: false}

	for _, op := range allOps {
		if !CanAccessExam(admin, inactive, false, op) {
			t.Errorf("admin denied %s on exam", op)
		}
	}
	if !CanAccessExam(owner, active, true, OpRead) {
		t.Error("student denied read of active exam")
	}
	if CanAccessExam(owner, inactive, true, OpRead) {
		t.Error("student allowed read of inactive exam")
	}
	if CanAccessExam(owner, active, false, OpRead) {
		t.Error("student allowed read of exam under inactive subject")
	}
	for _, op := range writeOps {
		if CanAccessExam(owner, active, true, op) {
			t.Errorf("student allowed %s on exam", op)
		}
	}
}

func TestCanAccessQuestion(t *testing.T) {
	for _, op := range allOps {
		if !CanAccessQuestion(admin, false, op) {
			t.Errorf("admin denied %s on question", op)
		}
	}
	if !CanAccessQuestion(owner, true, OpRead) {
		t.Error("student denied question read on active exam")
	}
	if CanAccessQuestion(owner, false, OpRead) {
		t.Error("student allowed question read on inactive exam")
	}
	for _, op := range writeOps {
		if CanAccessQuestion(owner, true, op) {
			t.Errorf("student allowed %s on question", op)
		}
	}
}

func TestCanAccessAttempt(t *testing.T) {
	attempt := &models.ExamAttempt{ID: 1, StudentID: "student-1"}

	if !CanAccessAttempt(admin, attempt, OpRead) {
		t.Error("admin denied attempt read")
	}
	// Admins observe attempts; they never take or force-submit one.
	for _, op := range writeOps {
		if CanAccessAttempt(admin, attempt, op) {
			t.Errorf("admin allowed %s on attempt", op)
		}
	}
	for _, op := range []Operation{OpCreate, OpRead, OpUpdate} {
		if !CanAccessAttempt(owner, attempt, op) {
			t.Errorf("owner denied %s on own attempt", op)
		}
		if CanAccessAttempt(other, attempt, op) {
			t.Errorf("other student allowed %s on foreign attempt", op)
		}
	}
	if CanAccessAttempt(owner, attempt, OpDelete) {
		t.Error("student allowed attempt delete")
	}
	if CanAccessAttempt(unknown, attempt, OpRead) {
		t.Error("identity without profile must be denied")
	}
}

func TestCanAccessAnswer(t *testing.T) {
	if !CanAccessAnswer(admin, "student-1", OpRead) {
		t.Error("admin denied answer read")
	}
	for _, op := range writeOps {
		if CanAccessAnswer(admin, "student-1", op) {
			t.Errorf("admin allowed %s on answer", op)
		}
	}
	for _, op := range []Operation{OpCreate, OpRead, OpUpdate} {
		if !CanAccessAnswer(owner, "student-1", op) {
			t.Errorf("owner denied %s on own answer", op)
		}
		if CanAccessAnswer(other, "student-1", op) {
			t.Errorf("other student allowed %s on foreign answer", op)
		}
	}
	if CanAccessAnswer(owner, "student-1", OpDelete) {
		t.Error("student allowed answer delete")
	}
}
