package scan

import "github.com/webscanio/api/pkg/domain/shared"

// NotFoundError returns the standard error for a missing scan.
func NotFoundError() *shared.DomainError {
	return shared.NotFound("Scan not found")
}
