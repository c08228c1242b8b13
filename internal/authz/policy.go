package authz

import (
	"github.com/Lyndoncatan/onlin-examination/internal/models"
)

// Operation identifies a row-level access kind.
type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Actor is an authenticated identity with its resolved role. The role always
// comes from RoleResolver, never from request data.
type Actor struct {
	ID   string
	Role models.UserRole
}

func (a Actor) isAdmin() bool {
	return a.Role == models.RoleAdmin
}

func (a Actor) isStudent() bool {
	return a.Role == models.RoleStudent
}

// CanAccessProfile: an identity may read and update its own profile row; an
// admin may read and update any row. Role changes are additionally restricted
// to admins (see CanChangeRole) so a student cannot escalate via a self-update.
func CanAccessProfile(actor Actor, profile *models.Profile, op Operation) bool {
	if profile == nil {
		return false
	}
	if actor.isAdmin() {
		return true
	}
	switch op {
	case OpRead, OpUpdate:
		return actor.ID != "" && actor.ID == profile.ID && actor.Role != models.RoleUnknown
	}
	return false
}

// CanChangeRole gates role promotion/demotion independently of row access.
func CanChangeRole(actor Actor) bool {
	return actor.isAdmin()
}

// CanAccessSubject: admins have full CRUD; students may only read active rows.
func CanAccessSubject(actor Actor, subject *models.Subject, op Operation) bool {
	if actor.isAdmin() {
		return true
	}
	if op == OpRead && actor.isStudent() {
		return subject != nil && subject.IsActive
	}
	return false
}

// CanAccessExam mirrors the subject rule: admin CRUD, student read of active
// rows only. The parent subject must also be active for a student read, so a
// deactivated subject hides its exams.
func CanAccessExam(actor Actor, exam *models.Exam, subjectActive bool, op Operation) bool {
	if actor.isAdmin() {
		return true
	}
	if op == OpRead && actor.isStudent() {
		return exam != nil && exam.IsActive && subjectActive
	}
	return false
}

// CanAccessQuestion: admins have full CRUD. Students never read question rows
// directly; they receive sanitized questions through an attempt on an active
// exam, which is what the examActive read rule expresses.
func CanAccessQuestion(actor Actor, examActive bool, op Operation) bool {
	if actor.isAdmin() {
		return true
	}
	if op == OpRead && actor.isStudent() {
		return examActive
	}
	return false
}

// CanAccessAttempt: admins may read any attempt but never write one; an
// attempt belongs to the student taking it, and only that student may create,
// read and update it. Nobody deletes attempts.
func CanAccessAttempt(actor Actor, attempt *models.ExamAttempt, op Operation) bool {
	if actor.isAdmin() {
		return op == OpRead
	}
	if !actor.isStudent() || attempt == nil {
		return false
	}
	switch op {
	case OpCreate, OpRead, OpUpdate:
		return actor.ID != "" && attempt.StudentID == actor.ID
	}
	return false
}

// CanAccessAnswer: admins may read all answers (grading/audit) but never
// write them; a student may create, read and update only answers whose parent
// attempt belongs to them.
func CanAccessAnswer(actor Actor, attemptOwnerID string, op Operation) bool {
	if actor.isAdmin() {
		return op == OpRead
	}
	if !actor.isStudent() {
		return false
	}
	switch op {
	case OpCreate, OpRead, OpUpdate:
		return actor.ID != "" && attemptOwnerID == actor.ID
	}
	return false
}
