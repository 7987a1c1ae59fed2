package report

import (
	"context"
	"time"

	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/pagination"
)

// Filter represents filter options for listing reports.
type Filter struct {
	OwnerID  *shared.ID
	ScanID   *shared.ID
	Severity *Severity
	Search   string
}

// ScanCount pairs a scan with the number of reports written about it.
type ScanCount struct {
	ScanID shared.ID `json:"scanId"`
	Count  int64     `json:"count"`
}

// Repository defines the interface for report persistence.
type Repository interface {
	// Create creates a new report.
	Create(ctx context.Context, report *Report) error

	// GetByID retrieves a report by ID.
	GetByID(ctx context.Context, id shared.ID) (*Report, error)

	// List lists reports with filters and pagination.
	List(ctx context.Context, filter Filter, page pagination.Pagination) (pagination.Result[*Report], error)

	// ListAll lists every report matching the filter without pagination,
	// newest first. Used by exports.
	ListAll(ctx context.Context, filter Filter) ([]*Report, error)

	// ListByIDs retrieves the reports that exist among the given IDs,
	// regardless of owner.
	ListByIDs(ctx context.Context, ids []shared.ID) ([]*Report, error)

	// Update updates a report.
	Update(ctx context.Context, report *Report) error

	// Delete deletes a report.
	Delete(ctx context.Context, id shared.ID) error

	// DeleteManyOwned deletes the given reports in a single transaction
	// only if every id belongs to ownerID; otherwise it deletes nothing.
	// It returns the number of rows deleted.
	DeleteManyOwned(ctx context.Context, ownerID shared.ID, ids []shared.ID) (int64, error)

	// Statistics

	// CountBySeverity counts the owner's reports grouped by severity.
	CountBySeverity(ctx context.Context, ownerID shared.ID) (map[Severity]int64, error)

	// TopScans returns the owner's most reported-on scans.
	TopScans(ctx context.Context, ownerID shared.ID, limit int) ([]ScanCount, error)

	// CountCreatedSince counts the owner's reports created at or after
	// the given time.
	CountCreatedSince(ctx context.Context, ownerID shared.ID, since time.Time) (int64, error)
}
