package scan

import (
	"context"
	"time"

	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/pagination"
)

// Filter represents filter options for listing scans.
type Filter struct {
	OwnerID *shared.ID
	Status  *Status
	Domain  string
	Search  string
}

// Stats represents aggregated statistics for an owner's scans.
type Stats struct {
	Total    int64            `json:"total"`
	ByStatus map[Status]int64 `json:"byStatus"`
}

// DomainCount pairs a registrable domain with the number of scans
// targeting it.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int64  `json:"count"`
}

// Repository defines the interface for scan persistence.
type Repository interface {
	// Create creates a new scan.
	Create(ctx context.Context, scan *Scan) error

	// GetByID retrieves a scan by ID.
	GetByID(ctx context.Context, id shared.ID) (*Scan, error)

	// List lists scans with filters and pagination.
	List(ctx context.Context, filter Filter, page pagination.Pagination) (pagination.Result[*Scan], error)

	// UpdateIfStatus writes the scan only while its stored status is one
	// of expected, so concurrent transitions cannot clobber a terminal
	// state. It reports whether a row was written.
	UpdateIfStatus(ctx context.Context, scan *Scan, expected ...Status) (bool, error)

	// Delete deletes a scan. Reports attached to the scan are removed
	// with it.
	Delete(ctx context.Context, id shared.ID) error

	// Statistics

	// GetStats returns aggregated statistics for an owner's scans.
	GetStats(ctx context.Context, ownerID shared.ID) (*Stats, error)

	// TopDomains returns the owner's most scanned registrable domains.
	TopDomains(ctx context.Context, ownerID shared.ID, limit int) ([]DomainCount, error)

	// CountCreatedSince counts the owner's scans created at or after the
	// given time.
	CountCreatedSince(ctx context.Context, ownerID shared.ID, since time.Time) (int64, error)

	// Maintenance

	// ListStaleInProgress lists in_progress scans whose execution started
	// before the given time, oldest first.
	ListStaleInProgress(ctx context.Context, startedBefore time.Time, limit int) ([]*Scan, error)
}
