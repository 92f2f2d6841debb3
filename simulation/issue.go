package simulation

import (
	"github.com/google/uuid"
)

// IssueStatus tracks whether a simulated business problem is still ongoing.
type IssueStatus int

const (
	IssueActive IssueStatus = iota
	IssueResolved
)

// String returns the lowercase name used in logs and JSON snapshots.
func (s IssueStatus) String() string {
	if s == IssueResolved {
		return "resolved"
	}

	return "active"
}

// IssueSeverity grades how strongly an issue distorts the generated traffic.
type IssueSeverity int

const (
	SeverityMinor IssueSeverity = iota
	SeverityMajor
	SeverityCriticalIncident
)

// Issue is a simulated ongoing business problem. While active it raises the
// priority distribution of subsequently generated events according to its
// PriorityBoost. Issues persist until explicitly resolved or until the
// orchestrator resets the cycle.
type Issue struct {
	ID               uuid.UUID
	Category         string
	Severity         IssueSeverity
	CreatedAtSimDay  SimDayInt
	CreatedAtSimHour SimHourInt
	Status           IssueStatus

	// PriorityBoost is the number of tiers events of the issue's category
	// are raised by while the issue is active (capped at critical).
	PriorityBoost int
}

// NewIssue creates an active Issue with a fresh ID.
func NewIssue(category string, severity IssueSeverity, simDay SimDayInt, simHour SimHourInt) Issue {
	boost := 1
	if severity >= SeverityMajor {
		boost = 2
	}

	return Issue{
		ID:               uuid.New(),
		Category:         category,
		Severity:         severity,
		CreatedAtSimDay:  simDay,
		CreatedAtSimHour: simHour,
		Status:           IssueActive,
		PriorityBoost:    boost,
	}
}
