// Package scan defines the Scan domain entity and its lifecycle.
// A Scan runs a set of security checks against a single target URL
// and is always owned by the user who requested it.
package scan

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/webscanio/api/pkg/domain/shared"
)

// CheckType identifies one category of security check a scan performs.
type CheckType string

const (
	CheckHeaders          CheckType = "headers"
	CheckSSL              CheckType = "ssl"
	CheckPortScan         CheckType = "portScan"
	CheckVulnDetection    CheckType = "vulnDetection"
	CheckContentAnalysis  CheckType = "contentAnalysis"
	CheckPerformanceCheck CheckType = "performanceCheck"
)

// AllCheckTypes returns the supported check types in canonical order.
func AllCheckTypes() []CheckType {
	return []CheckType{
		CheckHeaders,
		CheckSSL,
		CheckPortScan,
		CheckVulnDetection,
		CheckContentAnalysis,
		CheckPerformanceCheck,
	}
}

// IsValid reports whether the check type is supported.
func (c CheckType) IsValid() bool {
	switch c {
	case CheckHeaders, CheckSSL, CheckPortScan, CheckVulnDetection,
		CheckContentAnalysis, CheckPerformanceCheck:
		return true
	}
	return false
}

// ParseCheckTypes validates raw check type names and returns them
// deduplicated in input order.
func ParseCheckTypes(raw []string) ([]CheckType, error) {
	if len(raw) == 0 {
		return nil, shared.InvalidInput("At least one scan type is required")
	}
	seen := make(map[CheckType]struct{}, len(raw))
	types := make([]CheckType, 0, len(raw))
	for _, r := range raw {
		ct := CheckType(r)
		if !ct.IsValid() {
			return nil, shared.InvalidInput(fmt.Sprintf("Invalid scan type: %s", r))
		}
		if _, ok := seen[ct]; ok {
			continue
		}
		seen[ct] = struct{}{}
		types = append(types, ct)
	}
	return types, nil
}

// Vulnerability is a single issue the execution engine found.
type Vulnerability struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// Scan is a security scan of a single target URL, owned by the user who
// requested it. The execution engine is the only writer of completed and
// failed; the gateway is the only writer of cancelled.
type Scan struct {
	ID              shared.ID
	OwnerID         shared.ID
	URL             string
	Domain          string
	Types           []CheckType
	Status          Status
	Progress        int
	Vulnerabilities []Vulnerability
	Error           string
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewScan validates the target URL and check types and returns a pending
// scan with the registrable domain derived from the URL host.
func NewScan(ownerID shared.ID, rawURL string, types []CheckType) (*Scan, error) {
	if ownerID.IsZero() {
		return nil, shared.InvalidInput("Scan owner is required")
	}
	target, err := validateTargetURL(rawURL)
	if err != nil {
		return nil, err
	}
	if len(types) == 0 {
		return nil, shared.InvalidInput("At least one scan type is required")
	}
	for _, ct := range types {
		if !ct.IsValid() {
			return nil, shared.InvalidInput(fmt.Sprintf("Invalid scan type: %s", ct))
		}
	}

	now := time.Now()
	return &Scan{
		ID:              shared.NewID(),
		OwnerID:         ownerID,
		URL:             target.String(),
		Domain:          deriveDomain(target),
		Types:           types,
		Status:          StatusPending,
		Progress:        0,
		Vulnerabilities: []Vulnerability{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// validateTargetURL accepts only absolute http or https URLs with a host.
func validateTargetURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, shared.InvalidInput("URL is required")
	}
	u, err := url.Parse(trimmed)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, shared.InvalidInput("Invalid URL format")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, shared.InvalidInput("Invalid URL format")
	}
	return u, nil
}

// deriveDomain reduces the URL host to its registrable domain. Hosts the
// public suffix list cannot reduce, such as IP literals or bare names,
// keep the full hostname.
func deriveDomain(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	if domain, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return domain
	}
	return host
}

// Start moves a pending scan to in_progress and stamps the start time.
func (s *Scan) Start() error {
	if !s.Status.CanTransitionTo(StatusInProgress) {
		return shared.InvalidInput(fmt.Sprintf("Cannot start scan in status %s", s.Status))
	}
	now := time.Now()
	s.Status = StatusInProgress
	s.StartedAt = &now
	s.UpdatedAt = now
	return nil
}

// SetProgress records engine progress as a percentage between 0 and 100.
func (s *Scan) SetProgress(progress int) error {
	if s.Status != StatusInProgress {
		return shared.InvalidInput(fmt.Sprintf("Cannot report progress for scan in status %s", s.Status))
	}
	if progress < 0 || progress > 100 {
		return shared.InvalidInput("Progress must be between 0 and 100")
	}
	s.Progress = progress
	s.UpdatedAt = time.Now()
	return nil
}

// Complete records the engine results and moves the scan to completed.
func (s *Scan) Complete(vulns []Vulnerability) error {
	if !s.Status.CanTransitionTo(StatusCompleted) {
		return shared.InvalidInput(fmt.Sprintf("Cannot complete scan in status %s", s.Status))
	}
	if vulns == nil {
		vulns = []Vulnerability{}
	}
	now := time.Now()
	s.Status = StatusCompleted
	s.Progress = 100
	s.Vulnerabilities = vulns
	s.Error = ""
	s.CompletedAt = &now
	s.UpdatedAt = now
	return nil
}

// Fail moves the scan to failed and keeps the failure reason.
func (s *Scan) Fail(reason string) error {
	if !s.Status.CanTransitionTo(StatusFailed) {
		return shared.InvalidInput(fmt.Sprintf("Cannot fail scan in status %s", s.Status))
	}
	now := time.Now()
	s.Status = StatusFailed
	s.Error = reason
	s.CompletedAt = &now
	s.UpdatedAt = now
	return nil
}

// Cancel withdraws a scan that has not finished. Cancelling an already
// cancelled scan is a no-op; other terminal states reject the request.
func (s *Scan) Cancel() error {
	if s.Status == StatusCancelled {
		return nil
	}
	if !s.Status.CanTransitionTo(StatusCancelled) {
		return shared.InvalidInput(fmt.Sprintf("Cannot cancel scan in status %s", s.Status))
	}
	now := time.Now()
	s.Status = StatusCancelled
	s.CompletedAt = &now
	s.UpdatedAt = now
	return nil
}

// IsTerminal reports whether the scan reached a final state.
func (s *Scan) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// OwnedBy reports whether the given subject owns the scan.
func (s *Scan) OwnedBy(ownerID shared.ID) bool {
	return s.OwnerID.Equals(ownerID)
}
