package models

import (
	"time"
)

// User account status values. An account is created pending verification and
// becomes active exactly once, when the email channel is verified.
const (
	StatusPendingVerification = "pending_verification"
	StatusActive              = "active"
)

type User struct {
	ID              string
	Name            string
	Email           string
	PasswordHash    string
	Cpf             string // 11 digits, normalized
	Phone           string // digits only
	Birthdate       *time.Time
	Gender          string
	AcceptTerms     bool
	Street          string
	Number          string
	Complement      string
	Neighborhood    string
	City            string
	State           string
	ZipCode         string
	Status          string // "pending_verification", "active"
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsActive reports whether the account finished verification.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}
