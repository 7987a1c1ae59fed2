package report

import (
	"fmt"

	"github.com/webscanio/api/pkg/domain/shared"
)

// Severity grades the overall risk a report describes.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AllSeverities returns the severities from least to most severe.
func AllSeverities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// IsValid reports whether the severity is one of the known grades.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ParseSeverity returns the severity for a raw string, or an invalid
// input error naming the rejected value.
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(raw)
	if !s.IsValid() {
		return "", shared.InvalidInput(fmt.Sprintf("Invalid severity: %s", raw))
	}
	return s, nil
}
