package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Hburdack/happy-button-sub001/simulation"
)

// ConsoleSender is a Sender that acknowledges every descriptor and
// optionally logs it, for demo runs without a Postgres journal.
type ConsoleSender struct {
	logger  simulation.Logger
	verbose bool
}

// NewConsoleSender creates a ConsoleSender.
func NewConsoleSender(logger simulation.Logger, verbose bool) *ConsoleSender {
	return &ConsoleSender{logger: logger, verbose: verbose}
}

// Deliver implements the Sender interface.
func (s *ConsoleSender) Deliver(_ context.Context, descriptor simulation.EventDescriptor) (simulation.DeliveryReceipt, error) {
	if s.verbose && s.logger != nil {
		s.logger.Info("delivered",
			"event_id", descriptor.ID.String(),
			"priority", descriptor.Priority.String(),
			"category", descriptor.Category,
			"target_count", descriptor.TargetCount,
			"sim_day", descriptor.SimDay,
			"sim_hour", descriptor.SimHour)
	}

	return simulation.DeliveryReceipt{
		ID:          uuid.New(),
		DeliveredAt: time.Now(),
	}, nil
}

var _ simulation.Sender = (*ConsoleSender)(nil)
