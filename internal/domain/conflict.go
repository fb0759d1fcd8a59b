package domain

import "time"

// Severity grades a detected conflict. Only blocking conflicts halt a
// mutation; info and warning are recorded and the mutation proceeds.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityBlocking Severity = "blocking"
)

// ValidSeverity reports whether s is a known severity.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityBlocking:
		return true
	}
	return false
}

// Resolution is the lifecycle state of a recorded conflict. Conflicts
// are never deleted, only transitioned.
type Resolution string

const (
	ResolutionOpen      Resolution = "open"
	ResolutionResolved  Resolution = "resolved"
	ResolutionDismissed Resolution = "dismissed"
)

// ConflictInfo records a contradiction between a proposed change and
// the current ProjectContext. Created exclusively by conflict checkers;
// resolved or dismissed only by explicit caller action.
type ConflictInfo struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	Category   string     `json:"category"`
	Field      string     `json:"field"`
	Previous   string     `json:"previous"`
	Proposed   string     `json:"proposed"`
	Severity   Severity   `json:"severity"`
	DetectedAt time.Time  `json:"detected_at"`
	Resolution Resolution `json:"resolution"`
}

// HasBlocking reports whether any conflict in the list is blocking.
func HasBlocking(conflicts []ConflictInfo) bool {
	for _, c := range conflicts {
		if c.Severity == SeverityBlocking {
			return true
		}
	}
	return false
}
