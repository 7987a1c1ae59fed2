package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/webscanio/api/pkg/domain/report"
	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/pagination"
)

// reportColumns is the list of columns to select for a report.
const reportColumns = `id, owner_id, scan_id, title, summary, severity,
	findings, created_at, updated_at`

// ReportRepository implements report.Repository using PostgreSQL.
type ReportRepository struct {
	db *DB
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create persists a new report.
func (r *ReportRepository) Create(ctx context.Context, rep *report.Report) error {
	findings, err := toJSONB(rep.Findings)
	if err != nil {
		return fmt.Errorf("failed to marshal findings: %w", err)
	}

	query := `
		INSERT INTO reports (
			id, owner_id, scan_id, title, summary, severity,
			findings, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		rep.ID,
		rep.OwnerID,
		rep.ScanID,
		rep.Title,
		nullString(rep.Summary),
		string(rep.Severity),
		findings,
		rep.CreatedAt,
		rep.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return report.DuplicateTitleError()
		}
		return fmt.Errorf("failed to create report: %w", err)
	}

	return nil
}

// GetByID retrieves a report by ID.
func (r *ReportRepository) GetByID(ctx context.Context, id shared.ID) (*report.Report, error) {
	query := fmt.Sprintf(`SELECT %s FROM reports WHERE id = $1`, reportColumns)

	rep, err := r.scanFromRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, report.NotFoundError()
		}
		return nil, err
	}

	return rep, nil
}

// List lists reports with filtering and pagination.
func (r *ReportRepository) List(ctx context.Context, filter report.Filter, page pagination.Pagination) (pagination.Result[*report.Report], error) {
	var result pagination.Result[*report.Report]

	whereClause, args := r.buildWhereClause(filter)

	countQuery := "SELECT COUNT(*) FROM reports" + whereClause
	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return result, fmt.Errorf("failed to count reports: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM reports%s%s LIMIT %d OFFSET %d`,
		reportColumns, whereClause, orderByCreatedAtDesc, page.Limit, page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return result, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports, err := r.collectReports(rows)
	if err != nil {
		return result, err
	}

	return pagination.NewResult(reports, total, page), nil
}

// ListAll lists every report matching the filter without pagination,
// newest first. Used by exports.
func (r *ReportRepository) ListAll(ctx context.Context, filter report.Filter) ([]*report.Report, error) {
	whereClause, args := r.buildWhereClause(filter)

	query := fmt.Sprintf(`SELECT %s FROM reports%s%s`, reportColumns, whereClause, orderByCreatedAtDesc)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	return r.collectReports(rows)
}

// ListByIDs retrieves the reports that exist among the given IDs,
// regardless of owner. Callers use the result to distinguish missing
// reports from reports owned by someone else.
func (r *ReportRepository) ListByIDs(ctx context.Context, ids []shared.ID) ([]*report.Report, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM reports WHERE id = ANY($1)`, reportColumns)

	rows, err := r.db.QueryContext(ctx, query, pq.Array(idStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("failed to list reports by ids: %w", err)
	}
	defer rows.Close()

	return r.collectReports(rows)
}

// Update updates a report.
func (r *ReportRepository) Update(ctx context.Context, rep *report.Report) error {
	findings, err := toJSONB(rep.Findings)
	if err != nil {
		return fmt.Errorf("failed to marshal findings: %w", err)
	}

	query := `
		UPDATE reports SET
			title = $2,
			summary = $3,
			severity = $4,
			findings = $5,
			updated_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		rep.ID,
		rep.Title,
		nullString(rep.Summary),
		string(rep.Severity),
		findings,
		rep.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return report.DuplicateTitleError()
		}
		return fmt.Errorf("failed to update report: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return report.NotFoundError()
	}

	return nil
}

// Delete deletes a report by ID.
func (r *ReportRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM reports WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return report.NotFoundError()
	}

	return nil
}

// DeleteManyOwned deletes the given reports in a single transaction only if
// every id still exists and belongs to ownerID at delete time; otherwise it
// deletes nothing. The recheck inside the transaction closes the race with a
// concurrent delete between the caller's ownership check and this call.
func (r *ReportRepository) DeleteManyOwned(ctx context.Context, ownerID shared.ID, ids []shared.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	idArray := pq.Array(idStrings(ids))

	var deleted int64
	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		var owned int64
		countQuery := "SELECT COUNT(*) FROM reports WHERE owner_id = $1 AND id = ANY($2)"
		if err := tx.QueryRowContext(ctx, countQuery, ownerID, idArray).Scan(&owned); err != nil {
			return fmt.Errorf("failed to count owned reports: %w", err)
		}
		if owned != int64(len(ids)) {
			return shared.Forbidden("Access denied")
		}

		result, err := tx.ExecContext(ctx,
			"DELETE FROM reports WHERE owner_id = $1 AND id = ANY($2)", ownerID, idArray)
		if err != nil {
			return fmt.Errorf("failed to delete reports: %w", err)
		}

		deleted, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return deleted, nil
}

// CountBySeverity counts the owner's reports grouped by severity.
func (r *ReportRepository) CountBySeverity(ctx context.Context, ownerID shared.ID) (map[report.Severity]int64, error) {
	query := `
		SELECT severity, COUNT(*)
		FROM reports
		WHERE owner_id = $1
		GROUP BY severity
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count reports by severity: %w", err)
	}
	defer rows.Close()

	counts := make(map[report.Severity]int64)
	for rows.Next() {
		var severity string
		var count int64
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan severity count: %w", err)
		}
		counts[report.Severity(severity)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return counts, nil
}

// TopScans returns the owner's most reported-on scans.
func (r *ReportRepository) TopScans(ctx context.Context, ownerID shared.ID, limit int) ([]report.ScanCount, error) {
	query := `
		SELECT scan_id, COUNT(*) AS count
		FROM reports
		WHERE owner_id = $1
		GROUP BY scan_id
		ORDER BY count DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top scans: %w", err)
	}
	defer rows.Close()

	var counts []report.ScanCount
	for rows.Next() {
		var sc report.ScanCount
		if err := rows.Scan(&sc.ScanID, &sc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan report count: %w", err)
		}
		counts = append(counts, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return counts, nil
}

// CountCreatedSince counts the owner's reports created at or after the given time.
func (r *ReportRepository) CountCreatedSince(ctx context.Context, ownerID shared.ID, since time.Time) (int64, error) {
	var count int64
	query := "SELECT COUNT(*) FROM reports WHERE owner_id = $1 AND created_at >= $2"
	if err := r.db.QueryRowContext(ctx, query, ownerID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}

// Helper methods

func (r *ReportRepository) buildWhereClause(filter report.Filter) (string, []any) {
	var conditions []string
	var args []any
	argIndex := 1

	if filter.OwnerID != nil {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argIndex))
		args = append(args, *filter.OwnerID)
		argIndex++
	}
	if filter.ScanID != nil {
		conditions = append(conditions, fmt.Sprintf("scan_id = $%d", argIndex))
		args = append(args, *filter.ScanID)
		argIndex++
	}
	if filter.Severity != nil {
		conditions = append(conditions, fmt.Sprintf("severity = $%d", argIndex))
		args = append(args, string(*filter.Severity))
		argIndex++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR summary ILIKE $%d)", argIndex, argIndex))
		args = append(args, wrapLikePattern(filter.Search))
		argIndex++
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *ReportRepository) collectReports(rows *sql.Rows) ([]*report.Report, error) {
	var reports []*report.Report
	for rows.Next() {
		rep, err := r.scanFromRows(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return reports, nil
}

// reportScanFields collects raw column values before reconstruction.
type reportScanFields struct {
	id        shared.ID
	ownerID   shared.ID
	scanID    shared.ID
	title     string
	summary   sql.NullString
	severity  string
	findings  []byte
	createdAt time.Time
	updatedAt time.Time
}

func (r *ReportRepository) scanFromRow(row *sql.Row) (*report.Report, error) {
	var f reportScanFields
	err := row.Scan(
		&f.id, &f.ownerID, &f.scanID, &f.title, &f.summary, &f.severity,
		&f.findings, &f.createdAt, &f.updatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r.reconstructReport(f)
}

func (r *ReportRepository) scanFromRows(rows *sql.Rows) (*report.Report, error) {
	var f reportScanFields
	err := rows.Scan(
		&f.id, &f.ownerID, &f.scanID, &f.title, &f.summary, &f.severity,
		&f.findings, &f.createdAt, &f.updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan report row: %w", err)
	}
	return r.reconstructReport(f)
}

func (r *ReportRepository) reconstructReport(f reportScanFields) (*report.Report, error) {
	rep := &report.Report{
		ID:        f.id,
		OwnerID:   f.ownerID,
		ScanID:    f.scanID,
		Title:     f.title,
		Summary:   nullStringValue(f.summary),
		Severity:  report.Severity(f.severity),
		Findings:  []report.Finding{},
		CreatedAt: f.createdAt,
		UpdatedAt: f.updatedAt,
	}

	if err := fromJSONB(f.findings, &rep.Findings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal findings: %w", err)
	}

	return rep, nil
}

// idStrings converts IDs to their string form for array binding.
func idStrings(ids []shared.ID) []string {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	return strs
}

// Ensure implementation
var _ report.Repository = (*ReportRepository)(nil)
