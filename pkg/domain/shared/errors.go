// Package shared provides domain types used by every entity package:
// the entity ID and the tagged error that the HTTP error translator
// consumes. Every component in the request path fails with a DomainError
// so that status-code selection happens in exactly one place.
package shared

import (
	"errors"
	"fmt"
)

// Kind classifies a DomainError. The HTTP translator switches on Kind and
// nothing else; components never pick status codes themselves.
type Kind string

const (
	// KindUnauthenticated covers every credential failure: absent,
	// malformed, invalid, or resolving to an unknown subject.
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	// KindForbidden means the resource exists but belongs to someone else.
	KindForbidden Kind = "FORBIDDEN"
	// KindNotFound covers missing records and malformed resource ids.
	KindNotFound Kind = "NOT_FOUND"
	// KindInvalidInput covers request validation failures and duplicate-key
	// conflicts from the store.
	KindInvalidInput Kind = "INVALID_INPUT"
	// KindRateLimited means the admission quota for the window is spent.
	KindRateLimited Kind = "RATE_LIMITED"
	// KindRateLimiterUnavailable means the counter store itself failed.
	// Deliberately distinct from KindRateLimited: admission never fails open.
	KindRateLimiterUnavailable Kind = "RATE_LIMITER_UNAVAILABLE"
	// KindInternal is the fallback for unanticipated failures.
	KindInternal Kind = "INTERNAL"
)

// DomainError is the single tagged error type produced by services,
// repositories, middleware, and collaborators.
type DomainError struct {
	Kind    Kind
	Message string
	Details any
	Err     error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetails attaches structured details (field errors, offending ids)
// that the translator includes in the response envelope.
func (e *DomainError) WithDetails(details any) *DomainError {
	e.Details = details
	return e
}

// NewDomainError creates a DomainError with an explicit kind.
func NewDomainError(kind Kind, message string, err error) *DomainError {
	return &DomainError{Kind: kind, Message: message, Err: err}
}

// Unauthenticated creates a credential-failure error.
func Unauthenticated(message string) *DomainError {
	return &DomainError{Kind: KindUnauthenticated, Message: message}
}

// Forbidden creates an ownership-violation error.
func Forbidden(message string) *DomainError {
	return &DomainError{Kind: KindForbidden, Message: message}
}

// NotFound creates a missing-resource error.
func NotFound(message string) *DomainError {
	return &DomainError{Kind: KindNotFound, Message: message}
}

// InvalidInput creates a validation error.
func InvalidInput(message string) *DomainError {
	return &DomainError{Kind: KindInvalidInput, Message: message}
}

// RateLimited creates a quota-exhausted error.
func RateLimited(message string) *DomainError {
	return &DomainError{Kind: KindRateLimited, Message: message}
}

// RateLimiterUnavailable creates a counter-store-failure error.
func RateLimiterUnavailable(message string, err error) *DomainError {
	return &DomainError{Kind: KindRateLimiterUnavailable, Message: message, Err: err}
}

// Internal wraps an unanticipated failure.
func Internal(message string, err error) *DomainError {
	return &DomainError{Kind: KindInternal, Message: message, Err: err}
}

// KindOf extracts the Kind from an error chain. Unrecognized errors are
// classified KindInternal.
func KindOf(err error) Kind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether the error chain carries a DomainError of the
// given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsNotFound reports whether the error is a missing-resource error.
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

// IsForbidden reports whether the error is an ownership violation.
func IsForbidden(err error) bool {
	return IsKind(err, KindForbidden)
}

// IsInvalidInput reports whether the error is a validation failure.
func IsInvalidInput(err error) bool {
	return IsKind(err, KindInvalidInput)
}
