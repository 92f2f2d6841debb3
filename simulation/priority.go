package simulation

// Priority classifies how urgently an event must be dispatched.
// The dispatcher drains higher priorities first, FIFO within a tier.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// Priorities lists all tiers from most to least urgent,
// matching the dispatcher's drain order.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow}

// String returns the lowercase name used in logs and JSON snapshots.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// IsValid reports whether p is one of the four defined tiers.
func (p Priority) IsValid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}
