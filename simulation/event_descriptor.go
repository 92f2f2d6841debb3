package simulation

import (
	"errors"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var ErrInvalidPriority = errors.New("priority is not one of the defined tiers")
var ErrEmptyCategory = errors.New("category must not be empty")
var ErrNonPositiveTargetCount = errors.New("target count must be positive")
var ErrSimDayOutOfRange = errors.New("sim day must be within 1..7")
var ErrSimHourOutOfRange = errors.New("sim hour must be within 0..23")

// EventDescriptors is an alias type for a slice of EventDescriptor.
type EventDescriptors = []EventDescriptor

// EventDescriptor is a DTO (data transfer object) describing one generated
// business event: its priority, category, target volume, and the simulated
// calendar position it was generated at.
//
// It is immutable once created and consumed exactly once by the dispatcher.
// While its properties are exported, it should only be constructed with the
// supplied factory method BuildEventDescriptor.
type EventDescriptor struct {
	ID          uuid.UUID
	Priority    Priority
	Category    string
	TargetCount int
	SimDay      SimDayInt
	SimHour     SimHourInt
	OccurredAt  time.Time
}

// BuildEventDescriptor is a factory method for EventDescriptor.
//
// It populates the EventDescriptor with the given scalar input and assigns
// a fresh ID. Returns an error if any field is outside its documented range.
func BuildEventDescriptor(
	priority Priority,
	category string,
	targetCount int,
	simDay SimDayInt,
	simHour SimHourInt,
	occurredAt time.Time,
) (EventDescriptor, error) {
	if !priority.IsValid() {
		return EventDescriptor{}, ErrInvalidPriority
	}

	if category == "" {
		return EventDescriptor{}, ErrEmptyCategory
	}

	if targetCount <= 0 {
		return EventDescriptor{}, ErrNonPositiveTargetCount
	}

	if simDay < 1 || simDay > 7 {
		return EventDescriptor{}, ErrSimDayOutOfRange
	}

	if simHour < 0 || simHour > 23 {
		return EventDescriptor{}, ErrSimHourOutOfRange
	}

	return EventDescriptor{
		ID:          uuid.New(),
		Priority:    priority,
		Category:    category,
		TargetCount: targetCount,
		SimDay:      simDay,
		SimHour:     simHour,
		OccurredAt:  occurredAt,
	}, nil
}

type eventDescriptorJSON struct {
	ID          string    `json:"id"`
	Priority    string    `json:"priority"`
	Category    string    `json:"category"`
	TargetCount int       `json:"target_count"`
	SimDay      int       `json:"sim_day"`
	SimHour     int       `json:"sim_hour"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// PayloadJSON returns the wire form of the descriptor for senders that
// persist or transmit it as a structured record.
func (d EventDescriptor) PayloadJSON() ([]byte, error) {
	return jsoniter.ConfigFastest.Marshal(eventDescriptorJSON{
		ID:          d.ID.String(),
		Priority:    d.Priority.String(),
		Category:    d.Category,
		TargetCount: d.TargetCount,
		SimDay:      d.SimDay,
		SimHour:     d.SimHour,
		OccurredAt:  d.OccurredAt,
	})
}
