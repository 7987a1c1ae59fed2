package scan

import (
	"fmt"

	"github.com/webscanio/api/pkg/domain/shared"
)

// Status represents the lifecycle state of a scan job.
type Status string

const (
	// StatusPending means the scan is persisted and queued but not started.
	StatusPending Status = "pending"
	// StatusInProgress means the execution engine picked the scan up.
	StatusInProgress Status = "in_progress"
	// StatusCompleted means the engine finished all checks.
	StatusCompleted Status = "completed"
	// StatusFailed means the engine gave up on the scan.
	StatusFailed Status = "failed"
	// StatusCancelled means the owner withdrew the scan before it finished.
	StatusCancelled Status = "cancelled"
)

// AllStatuses returns every valid status, for filter validation.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled}
}

// IsValid reports whether the status is one of the known states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus validates a raw status string, for query filters.
func ParseStatus(raw string) (Status, error) {
	st := Status(raw)
	if !st.IsValid() {
		return "", shared.InvalidInput(fmt.Sprintf("Invalid scan status: %s", raw))
	}
	return st, nil
}

// IsTerminal reports whether no further transition is permitted.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine permits moving from s
// to target. Terminal states permit nothing; pending may start or be
// cancelled; in_progress may finish either way or be cancelled.
func (s Status) CanTransitionTo(target Status) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case StatusPending:
		return target == StatusInProgress || target == StatusCancelled
	case StatusInProgress:
		return target == StatusCompleted || target == StatusFailed ||
			target == StatusCancelled
	}
	return false
}
