// Package report defines the Report domain entity. A Report is a
// user-authored summary of a scan's results and is always owned by the
// user who wrote it.
package report

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/webscanio/api/pkg/domain/shared"
)

// MaxTitleLength bounds report titles after normalization.
const MaxTitleLength = 200

// Finding is a single observation recorded in a report.
type Finding struct {
	Type        string `json:"type"`
	Severity    string `json:"severity,omitempty"`
	Description string `json:"description,omitempty"`
	Remediation string `json:"remediation,omitempty"`
}

// Report summarizes the results of one scan for its owner.
type Report struct {
	ID        shared.ID
	OwnerID   shared.ID
	ScanID    shared.ID
	Title     string
	Summary   string
	Severity  Severity
	Findings  []Finding
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewReport validates the title and findings and returns a report with
// severity defaulting to low and findings to an empty list.
func NewReport(ownerID, scanID shared.ID, title, summary string, severity Severity, findings []Finding) (*Report, error) {
	if ownerID.IsZero() {
		return nil, shared.InvalidInput("Report owner is required")
	}
	if scanID.IsZero() {
		return nil, shared.InvalidInput("Scan ID is required")
	}
	normalized, err := normalizeTitle(title)
	if err != nil {
		return nil, err
	}
	if severity == "" {
		severity = SeverityLow
	}
	if !severity.IsValid() {
		return nil, shared.InvalidInput("Invalid severity: " + string(severity))
	}
	if findings == nil {
		findings = []Finding{}
	}
	if err := validateFindings(findings); err != nil {
		return nil, err
	}

	now := time.Now()
	return &Report{
		ID:        shared.NewID(),
		OwnerID:   ownerID,
		ScanID:    scanID,
		Title:     normalized,
		Summary:   strings.TrimSpace(summary),
		Severity:  severity,
		Findings:  findings,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// normalizeTitle trims and NFKC-normalizes a title so visually identical
// titles compare equal for the per-scan uniqueness constraint.
func normalizeTitle(title string) (string, error) {
	normalized := norm.NFKC.String(strings.TrimSpace(title))
	if normalized == "" {
		return "", shared.InvalidInput("Title is required")
	}
	if len(normalized) > MaxTitleLength {
		return "", shared.InvalidInput("Title must be at most 200 characters")
	}
	return normalized, nil
}

func validateFindings(findings []Finding) error {
	for _, f := range findings {
		if strings.TrimSpace(f.Type) == "" {
			return shared.InvalidInput("Finding type is required")
		}
	}
	return nil
}

// SetTitle replaces the title after normalization.
func (r *Report) SetTitle(title string) error {
	normalized, err := normalizeTitle(title)
	if err != nil {
		return err
	}
	r.Title = normalized
	r.UpdatedAt = time.Now()
	return nil
}

// SetSummary replaces the summary.
func (r *Report) SetSummary(summary string) {
	r.Summary = strings.TrimSpace(summary)
	r.UpdatedAt = time.Now()
}

// SetSeverity replaces the severity grade.
func (r *Report) SetSeverity(severity Severity) error {
	if !severity.IsValid() {
		return shared.InvalidInput("Invalid severity: " + string(severity))
	}
	r.Severity = severity
	r.UpdatedAt = time.Now()
	return nil
}

// SetFindings replaces the findings list.
func (r *Report) SetFindings(findings []Finding) error {
	if findings == nil {
		findings = []Finding{}
	}
	if err := validateFindings(findings); err != nil {
		return err
	}
	r.Findings = findings
	r.UpdatedAt = time.Now()
	return nil
}

// OwnedBy reports whether the given subject owns the report.
func (r *Report) OwnedBy(ownerID shared.ID) bool {
	return r.OwnerID.Equals(ownerID)
}
