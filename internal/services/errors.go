package services

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by services. Handlers map these onto HTTP statuses.
var (
	// Profile
	ErrProfileNotFound      = errors.New("profile not found")
	ErrProfileAlreadyExists = errors.New("profile already exists")
	ErrEmailTaken           = errors.New("email already in use")

	// Subject
	ErrSubjectNotFound = errors.New("subject not found")
	ErrSubjectInactive = errors.New("subject is not active")

	// Exam
	ErrExamNotFound     = errors.New("exam not found")
	ErrExamNotAvailable = errors.New("exam is not available")
	ErrExamHasNoQuestions = errors.New("exam has no questions")

	// Question
	ErrQuestionNotFound   = errors.New("question not found")
	ErrQuestionNotInExam  = errors.New("question does not belong to this exam")

	// Attempt
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptNotActive        = errors.New("attempt is not active")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
	ErrAttemptNotCompleted     = errors.New("attempt not completed yet")
	ErrAttemptTimeExpired      = errors.New("attempt time has expired")

	// Authorization
	ErrRoleUnknown = errors.New("no role could be resolved for this identity")
)

// PermissionError carries the context of a denied operation.
type PermissionError struct {
	ActorID    string
	ResourceID interface{}
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s cannot %s %s %v: %s",
		e.ActorID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(actorID string, resourceID interface{}, resource, action, reason string) *PermissionError {
	return &PermissionError{
		ActorID:    actorID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsPermissionError reports whether err is a permission denial.
func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}
