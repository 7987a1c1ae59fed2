// Package user provides the user domain model.
package user

import (
	"strings"
	"time"

	"github.com/webscanio/api/pkg/domain/shared"
)

// Status represents the user account status.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusSuspended:
		return true
	}
	return false
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// User represents a registered account. Fields are unexported so state
// changes go through the methods that keep the audit timestamps honest.
type User struct {
	id                  shared.ID
	email               string
	name                string
	status              Status
	passwordHash        string
	failedLoginAttempts int
	lockedUntil         *time.Time
	lastLoginAt         *time.Time
	createdAt           time.Time
	updatedAt           time.Time
}

// New creates a new active user with a bcrypt password hash.
func New(email, name, passwordHash string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, shared.InvalidInput("Email is required")
	}
	if passwordHash == "" {
		return nil, shared.InvalidInput("Password hash is required")
	}

	now := time.Now().UTC()
	return &User{
		id:           shared.NewID(),
		email:        email,
		name:         strings.TrimSpace(name),
		status:       StatusActive,
		passwordHash: passwordHash,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// Reconstitute recreates a User from persistence.
func Reconstitute(
	id shared.ID,
	email, name string,
	status Status,
	passwordHash string,
	failedLoginAttempts int,
	lockedUntil, lastLoginAt *time.Time,
	createdAt, updatedAt time.Time,
) *User {
	return &User{
		id:                  id,
		email:               email,
		name:                name,
		status:              status,
		passwordHash:        passwordHash,
		failedLoginAttempts: failedLoginAttempts,
		lockedUntil:         lockedUntil,
		lastLoginAt:         lastLoginAt,
		createdAt:           createdAt,
		updatedAt:           updatedAt,
	}
}

// ID returns the user ID.
func (u *User) ID() shared.ID { return u.id }

// Email returns the user email.
func (u *User) Email() string { return u.email }

// Name returns the user name.
func (u *User) Name() string { return u.name }

// Status returns the user status.
func (u *User) Status() Status { return u.status }

// PasswordHash returns the bcrypt password hash.
func (u *User) PasswordHash() string { return u.passwordHash }

// FailedLoginAttempts returns the number of failed login attempts.
func (u *User) FailedLoginAttempts() int { return u.failedLoginAttempts }

// LockedUntil returns when the account lockout expires.
func (u *User) LockedUntil() *time.Time { return u.lockedUntil }

// LastLoginAt returns the last login timestamp.
func (u *User) LastLoginAt() *time.Time { return u.lastLoginAt }

// CreatedAt returns the creation timestamp.
func (u *User) CreatedAt() time.Time { return u.createdAt }

// UpdatedAt returns the last update timestamp.
func (u *User) UpdatedAt() time.Time { return u.updatedAt }

// UpdateProfile updates the user display name.
func (u *User) UpdateProfile(name string) {
	u.name = strings.TrimSpace(name)
	u.updatedAt = time.Now().UTC()
}

// SetPasswordHash replaces the password hash.
func (u *User) SetPasswordHash(hash string) error {
	if hash == "" {
		return shared.InvalidInput("Password hash is required")
	}
	u.passwordHash = hash
	u.updatedAt = time.Now().UTC()
	return nil
}

// Suspend suspends the user account.
func (u *User) Suspend() error {
	if u.status == StatusSuspended {
		return shared.InvalidInput("User is already suspended")
	}
	u.status = StatusSuspended
	u.updatedAt = time.Now().UTC()
	return nil
}

// Activate activates the user account.
func (u *User) Activate() error {
	if u.status == StatusActive {
		return shared.InvalidInput("User is already active")
	}
	u.status = StatusActive
	u.updatedAt = time.Now().UTC()
	return nil
}

// IsActive returns true if the user is active.
func (u *User) IsActive() bool {
	return u.status == StatusActive
}

// IsLocked returns true if the account is currently locked.
func (u *User) IsLocked() bool {
	if u.lockedUntil == nil {
		return false
	}
	return time.Now().Before(*u.lockedUntil)
}

// CanLogin returns true if the user can attempt to login.
func (u *User) CanLogin() bool {
	return u.IsActive() && !u.IsLocked()
}

// RecordFailedLogin increments the failed login counter and locks the
// account once maxAttempts is reached.
func (u *User) RecordFailedLogin(maxAttempts int, lockoutDuration time.Duration) {
	u.failedLoginAttempts++
	if u.failedLoginAttempts >= maxAttempts {
		lockUntil := time.Now().Add(lockoutDuration)
		u.lockedUntil = &lockUntil
	}
	u.updatedAt = time.Now().UTC()
}

// RecordSuccessfulLogin clears failed login attempts and updates last login.
func (u *User) RecordSuccessfulLogin() {
	now := time.Now().UTC()
	u.failedLoginAttempts = 0
	u.lockedUntil = nil
	u.lastLoginAt = &now
	u.updatedAt = now
}

// Unlock unlocks the user account.
func (u *User) Unlock() {
	u.lockedUntil = nil
	u.failedLoginAttempts = 0
	u.updatedAt = time.Now().UTC()
}
