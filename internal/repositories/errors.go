package repositories

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// IsNotFoundError reports whether err is a missing-row error from the storage
// layer, regardless of the wrapping applied along the way.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotFound)
}

// IsDuplicateError reports whether err is a unique-constraint violation. The
// attempt state machine relies on this to detect a lost race on the
// one-in-progress-attempt index and resume the winning row instead.
func IsDuplicateError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicate)
}
