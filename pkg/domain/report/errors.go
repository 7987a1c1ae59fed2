package report

import "github.com/webscanio/api/pkg/domain/shared"

// NotFoundError returns the standard error for a missing report.
func NotFoundError() *shared.DomainError {
	return shared.NotFound("Report not found")
}

// DuplicateTitleError returns the standard error for the unique
// (owner, scan, title) constraint.
func DuplicateTitleError() *shared.DomainError {
	return shared.InvalidInput("A report with this title already exists for this scan")
}
