package testdoubles

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Hburdack/happy-button-sub001/simulation"
)

// RecordingSender is a Sender implementation that records every delivered
// descriptor and can be scripted to fail specific calls, making retry and
// error-classification behavior testable.
type RecordingSender struct {
	mu         sync.Mutex
	deliveries []simulation.EventDescriptor
	failures   map[int]error
	calls      int
}

// NewRecordingSender creates a RecordingSender that succeeds on every call.
func NewRecordingSender() *RecordingSender {
	return &RecordingSender{
		failures: make(map[int]error),
	}
}

// FailOnCall scripts the n-th Deliver call (1-based, counted across all
// attempts) to return the given error instead of succeeding.
func (s *RecordingSender) FailOnCall(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[n] = err
}

// Deliver implements the Sender interface.
func (s *RecordingSender) Deliver(_ context.Context, descriptor simulation.EventDescriptor) (simulation.DeliveryReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++

	if err, ok := s.failures[s.calls]; ok {
		return simulation.DeliveryReceipt{}, err
	}

	s.deliveries = append(s.deliveries, descriptor)

	return simulation.DeliveryReceipt{
		ID:          uuid.New(),
		DeliveredAt: time.Now(),
	}, nil
}

// Deliveries returns a copy of all successfully delivered descriptors in
// delivery order.
func (s *RecordingSender) Deliveries() []simulation.EventDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]simulation.EventDescriptor(nil), s.deliveries...)
}

// DeliveryCount returns the number of successful deliveries.
func (s *RecordingSender) DeliveryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.deliveries)
}

// Calls returns the total number of Deliver invocations including failures.
func (s *RecordingSender) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

// Compile-time check to ensure RecordingSender implements the Sender interface.
var _ simulation.Sender = (*RecordingSender)(nil)
