package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/webscanio/api/pkg/domain/scan"
	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/pagination"
)

// scanColumns is the list of columns to select for a scan.
const scanColumns = `id, owner_id, url, domain, types, status, progress,
	vulnerabilities, error, started_at, completed_at, created_at, updated_at`

// ScanRepository implements scan.Repository using PostgreSQL.
type ScanRepository struct {
	db *DB
}

// NewScanRepository creates a new ScanRepository.
func NewScanRepository(db *DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Create persists a new scan.
func (r *ScanRepository) Create(ctx context.Context, s *scan.Scan) error {
	types, err := toJSONB(s.Types)
	if err != nil {
		return fmt.Errorf("failed to marshal types: %w", err)
	}
	vulns, err := toJSONB(s.Vulnerabilities)
	if err != nil {
		return fmt.Errorf("failed to marshal vulnerabilities: %w", err)
	}

	query := `
		INSERT INTO scans (
			id, owner_id, url, domain, types, status, progress,
			vulnerabilities, error, started_at, completed_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		s.ID,
		s.OwnerID,
		s.URL,
		s.Domain,
		types,
		string(s.Status),
		s.Progress,
		vulns,
		nullString(s.Error),
		s.StartedAt,
		s.CompletedAt,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scan: %w", err)
	}

	return nil
}

// GetByID retrieves a scan by ID.
func (r *ScanRepository) GetByID(ctx context.Context, id shared.ID) (*scan.Scan, error) {
	query := fmt.Sprintf(`SELECT %s FROM scans WHERE id = $1`, scanColumns)

	s, err := r.scanFromRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, scan.NotFoundError()
		}
		return nil, err
	}

	return s, nil
}

// List lists scans with filtering and pagination.
func (r *ScanRepository) List(ctx context.Context, filter scan.Filter, page pagination.Pagination) (pagination.Result[*scan.Scan], error) {
	var result pagination.Result[*scan.Scan]

	whereClause, args := r.buildWhereClause(filter)

	countQuery := "SELECT COUNT(*) FROM scans" + whereClause
	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return result, fmt.Errorf("failed to count scans: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM scans%s%s LIMIT %d OFFSET %d`,
		scanColumns, whereClause, orderByCreatedAtDesc, page.Limit, page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return result, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var scans []*scan.Scan
	for rows.Next() {
		s, err := r.scanFromRows(rows)
		if err != nil {
			return result, err
		}
		scans = append(scans, s)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("rows error: %w", err)
	}

	return pagination.NewResult(scans, total, page), nil
}

// UpdateIfStatus writes the scan only while its stored status is one of
// expected. The guard and the write happen in a single statement, so two
// racing transitions cannot both succeed and a terminal status can never
// be overwritten once set.
func (r *ScanRepository) UpdateIfStatus(ctx context.Context, s *scan.Scan, expected ...scan.Status) (bool, error) {
	if len(expected) == 0 {
		return false, fmt.Errorf("update scan: no expected statuses given")
	}

	vulns, err := toJSONB(s.Vulnerabilities)
	if err != nil {
		return false, fmt.Errorf("failed to marshal vulnerabilities: %w", err)
	}

	expectedStrs := make([]string, len(expected))
	for i, st := range expected {
		expectedStrs[i] = string(st)
	}

	query := `
		UPDATE scans SET
			status = $2,
			progress = $3,
			vulnerabilities = $4,
			error = $5,
			started_at = $6,
			completed_at = $7,
			updated_at = $8
		WHERE id = $1 AND status = ANY($9)
	`

	result, err := r.db.ExecContext(ctx, query,
		s.ID,
		string(s.Status),
		s.Progress,
		vulns,
		nullString(s.Error),
		s.StartedAt,
		s.CompletedAt,
		s.UpdatedAt,
		pq.Array(expectedStrs),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update scan: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// Delete deletes a scan. Reports reference scans with ON DELETE CASCADE,
// so the scan's reports are removed in the same statement.
func (r *ScanRepository) Delete(ctx context.Context, id shared.ID) error {
	query := `DELETE FROM scans WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return scan.NotFoundError()
	}

	return nil
}

// GetStats returns aggregated statistics for an owner's scans.
func (r *ScanRepository) GetStats(ctx context.Context, ownerID shared.ID) (*scan.Stats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'in_progress') AS in_progress,
			COUNT(*) FILTER (WHERE status = 'completed') AS completed,
			COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled
		FROM scans
		WHERE owner_id = $1
	`

	stats := &scan.Stats{ByStatus: make(map[scan.Status]int64)}
	var pending, inProgress, completed, failed, cancelled int64

	err := r.db.QueryRowContext(ctx, query, ownerID).Scan(
		&stats.Total, &pending, &inProgress, &completed, &failed, &cancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan stats: %w", err)
	}

	stats.ByStatus[scan.StatusPending] = pending
	stats.ByStatus[scan.StatusInProgress] = inProgress
	stats.ByStatus[scan.StatusCompleted] = completed
	stats.ByStatus[scan.StatusFailed] = failed
	stats.ByStatus[scan.StatusCancelled] = cancelled

	return stats, nil
}

// TopDomains returns the owner's most scanned registrable domains.
func (r *ScanRepository) TopDomains(ctx context.Context, ownerID shared.ID, limit int) ([]scan.DomainCount, error) {
	query := `
		SELECT domain, COUNT(*) AS count
		FROM scans
		WHERE owner_id = $1
		GROUP BY domain
		ORDER BY count DESC, domain ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top domains: %w", err)
	}
	defer rows.Close()

	var counts []scan.DomainCount
	for rows.Next() {
		var dc scan.DomainCount
		if err := rows.Scan(&dc.Domain, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan domain count: %w", err)
		}
		counts = append(counts, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return counts, nil
}

// CountCreatedSince counts the owner's scans created at or after the given time.
func (r *ScanRepository) CountCreatedSince(ctx context.Context, ownerID shared.ID, since time.Time) (int64, error) {
	var count int64
	query := "SELECT COUNT(*) FROM scans WHERE owner_id = $1 AND created_at >= $2"
	if err := r.db.QueryRowContext(ctx, query, ownerID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count scans: %w", err)
	}
	return count, nil
}

// ListStaleInProgress lists in_progress scans whose execution started before
// the given time, oldest first. Used by the watchdog to fail scans orphaned
// by a worker crash.
func (r *ScanRepository) ListStaleInProgress(ctx context.Context, startedBefore time.Time, limit int) ([]*scan.Scan, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM scans
		WHERE status = 'in_progress' AND started_at IS NOT NULL AND started_at < $1
		ORDER BY started_at ASC
		LIMIT $2
	`, scanColumns)

	rows, err := r.db.QueryContext(ctx, query, startedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale scans: %w", err)
	}
	defer rows.Close()

	var scans []*scan.Scan
	for rows.Next() {
		s, err := r.scanFromRows(rows)
		if err != nil {
			return nil, err
		}
		scans = append(scans, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return scans, nil
}

// Helper methods

func (r *ScanRepository) buildWhereClause(filter scan.Filter) (string, []any) {
	var conditions []string
	var args []any
	argIndex := 1

	if filter.OwnerID != nil {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argIndex))
		args = append(args, *filter.OwnerID)
		argIndex++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, string(*filter.Status))
		argIndex++
	}
	if filter.Domain != "" {
		conditions = append(conditions, fmt.Sprintf("domain = $%d", argIndex))
		args = append(args, filter.Domain)
		argIndex++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("url ILIKE $%d", argIndex))
		args = append(args, wrapLikePattern(filter.Search))
		argIndex++
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// scanScanFields collects raw column values before reconstruction.
type scanScanFields struct {
	id          shared.ID
	ownerID     shared.ID
	url         string
	domain      string
	types       []byte
	status      string
	progress    int
	vulns       []byte
	errMsg      sql.NullString
	startedAt   sql.NullTime
	completedAt sql.NullTime
	createdAt   time.Time
	updatedAt   time.Time
}

func (r *ScanRepository) scanFromRow(row *sql.Row) (*scan.Scan, error) {
	var f scanScanFields
	err := row.Scan(
		&f.id, &f.ownerID, &f.url, &f.domain, &f.types, &f.status, &f.progress,
		&f.vulns, &f.errMsg, &f.startedAt, &f.completedAt, &f.createdAt, &f.updatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r.reconstructScan(f)
}

func (r *ScanRepository) scanFromRows(rows *sql.Rows) (*scan.Scan, error) {
	var f scanScanFields
	err := rows.Scan(
		&f.id, &f.ownerID, &f.url, &f.domain, &f.types, &f.status, &f.progress,
		&f.vulns, &f.errMsg, &f.startedAt, &f.completedAt, &f.createdAt, &f.updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan scan row: %w", err)
	}
	return r.reconstructScan(f)
}

func (r *ScanRepository) reconstructScan(f scanScanFields) (*scan.Scan, error) {
	s := &scan.Scan{
		ID:              f.id,
		OwnerID:         f.ownerID,
		URL:             f.url,
		Domain:          f.domain,
		Status:          scan.Status(f.status),
		Progress:        f.progress,
		Vulnerabilities: []scan.Vulnerability{},
		Error:           nullStringValue(f.errMsg),
		StartedAt:       nullTimeValue(f.startedAt),
		CompletedAt:     nullTimeValue(f.completedAt),
		CreatedAt:       f.createdAt,
		UpdatedAt:       f.updatedAt,
	}

	if err := fromJSONB(f.types, &s.Types); err != nil {
		return nil, fmt.Errorf("failed to unmarshal types: %w", err)
	}
	if err := fromJSONB(f.vulns, &s.Vulnerabilities); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vulnerabilities: %w", err)
	}

	return s, nil
}

// Ensure implementation
var _ scan.Repository = (*ScanRepository)(nil)
