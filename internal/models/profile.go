package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleAdmin   UserRole = "admin"

	// RoleUnknown is resolved when no profile row exists for an identity.
	// Every policy check treats it as deny.
	RoleUnknown UserRole = ""
)

// Profile is the single source of truth for an identity's role. The ID is the
// external identity provider's subject id; authorization never trusts role
// information carried in the token itself.
type Profile struct {
	ID       string   `json:"id" gorm:"primaryKey;size:255"`
	FullName string   `json:"full_name" gorm:"not null;size:100"`
	Email    string   `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Role     UserRole `json:"role" gorm:"not null;default:student;size:20;index"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Profile) TableName() string {
	return "profiles"
}

func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}
