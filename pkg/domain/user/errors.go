package user

import "github.com/webscanio/api/pkg/domain/shared"

// Authentication errors shared by the login flow. Both map to the same
// credential failure so responses do not reveal which field was wrong.
var (
	ErrInvalidCredentials = shared.Unauthenticated("Invalid email or password")
	ErrAccountLocked      = shared.Unauthenticated("Account is locked due to too many failed attempts")
)

// NotFoundError returns the standard error for a missing user.
func NotFoundError() *shared.DomainError {
	return shared.NotFound("User not found")
}

// AlreadyExistsError returns the standard error for a duplicate email.
func AlreadyExistsError() *shared.DomainError {
	return shared.InvalidInput("Email is already registered")
}
