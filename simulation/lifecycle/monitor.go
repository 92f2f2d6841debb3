// Package lifecycle tracks start/active/error state for the simulator's
// fixed set of named workers and exposes an aggregate health score.
//
// Every lifecycle-managed component must pass through the starting state
// before it can be reported active; the monitor silently ignores (and
// logs) transitions that skip it, so a worker that was created but never
// started is visible as stopped rather than silently inactive.
package lifecycle

import (
	"errors"
	"sync"
	"time"

	"github.com/Hburdack/happy-button-sub001/simulation"
)

var ErrNoWorkers = errors.New("at least one worker name must be supplied")

const (
	logMsgInvalidTransition = "ignoring invalid worker state transition"
	logAttrWorker           = "worker"
	logAttrFromState        = "from_state"
	logAttrToState          = "to_state"

	errorPenalty = 5.0
)

// WorkerState is the lifecycle position of one named worker.
type WorkerState int

const (
	StateStopped WorkerState = iota
	StateStarting
	StateActive
	StateErrored
)

// String returns the lowercase name used in logs and JSON snapshots.
func (s WorkerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// WorkerStatus is a value snapshot of one worker's lifecycle position.
type WorkerStatus struct {
	Name         string
	State        WorkerState
	LastActivity time.Time
	ErrorCount   int
	LastError    string
}

// Monitor tracks WorkerStatus for a fixed, known set of named workers.
// ReportStarting, ReportActive, and ReportError are the only mutators.
// All methods are safe for concurrent use and never block on anything but
// their own short-lived mutex.
type Monitor struct {
	mu      sync.RWMutex
	workers map[string]*WorkerStatus
	order   []string
	nowFn   func() time.Time
	logger  simulation.Logger
}

// Option defines a functional option for configuring a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger for the Monitor.
func WithLogger(logger simulation.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithNowFunc replaces the real-time source for LastActivity stamps.
func WithNowFunc(nowFn func() time.Time) Option {
	return func(m *Monitor) {
		m.nowFn = nowFn
	}
}

// NewMonitor creates a Monitor for the given fixed worker set, all stopped.
func NewMonitor(workerNames []string, options ...Option) (*Monitor, error) {
	if len(workerNames) == 0 {
		return nil, ErrNoWorkers
	}

	m := &Monitor{
		workers: make(map[string]*WorkerStatus, len(workerNames)),
		order:   append([]string(nil), workerNames...),
		nowFn:   time.Now,
	}

	for _, option := range options {
		option(m)
	}

	for _, name := range workerNames {
		m.workers[name] = &WorkerStatus{Name: name, State: StateStopped}
	}

	return m, nil
}

// ReportStarting transitions a worker to starting. Valid from stopped and
// from errored (a retry); other transitions are ignored.
func (m *Monitor) ReportStarting(name string) {
	m.transition(name, StateStarting, func(state WorkerState) bool {
		return state == StateStopped || state == StateErrored
	})
}

// ReportActive transitions a worker to active. Only valid from starting:
// the explicit, auditable activation step.
func (m *Monitor) ReportActive(name string) {
	m.transition(name, StateActive, func(state WorkerState) bool {
		return state == StateStarting
	})
}

// ReportStopped transitions a worker back to stopped after a clean shutdown.
func (m *Monitor) ReportStopped(name string) {
	m.transition(name, StateStopped, func(state WorkerState) bool {
		return state != StateStopped
	})
}

// ReportError records a failure against the worker and transitions it to
// errored. The errored state is retryable via ReportStarting.
func (m *Monitor) ReportError(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	worker, ok := m.workers[name]
	if !ok {
		return
	}

	worker.State = StateErrored
	worker.ErrorCount++
	worker.LastActivity = m.nowFn()

	if err != nil {
		worker.LastError = err.Error()
	}
}

// ReportDegraded records a failure against the worker without changing its
// state, used for recoverable faults in the worker's collaborators, for
// example a dropped delivery. The worker keeps running; only the error count
// and health score reflect the fault.
func (m *Monitor) ReportDegraded(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	worker, ok := m.workers[name]
	if !ok {
		return
	}

	worker.ErrorCount++
	worker.LastActivity = m.nowFn()

	if err != nil {
		worker.LastError = err.Error()
	}
}

// ReportActivity refreshes a worker's LastActivity stamp without changing
// state, used by long-running loops to signal liveness.
func (m *Monitor) ReportActivity(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if worker, ok := m.workers[name]; ok {
		worker.LastActivity = m.nowFn()
	}
}

// HealthScore returns 100 × (active workers / total workers) minus five
// points per recorded error, floored at 0 and capped at 100.
func (m *Monitor) HealthScore() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := 0
	totalErrors := 0

	for _, worker := range m.workers {
		if worker.State == StateActive {
			active++
		}

		totalErrors += worker.ErrorCount
	}

	score := 100.0*float64(active)/float64(len(m.workers)) - errorPenalty*float64(totalErrors)

	if score < 0 {
		return 0
	}

	if score > 100 {
		return 100
	}

	return score
}

// Snapshot returns value copies of all worker statuses in registration
// order. It never blocks callers beyond the read lock.
func (m *Monitor) Snapshot() []WorkerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make([]WorkerStatus, 0, len(m.order))
	for _, name := range m.order {
		snapshot = append(snapshot, *m.workers[name])
	}

	return snapshot
}

// Worker returns the status of one named worker.
func (m *Monitor) Worker(name string) (WorkerStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	worker, ok := m.workers[name]
	if !ok {
		return WorkerStatus{}, false
	}

	return *worker, true
}

func (m *Monitor) transition(name string, to WorkerState, validFrom func(WorkerState) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	worker, ok := m.workers[name]
	if !ok {
		return
	}

	if !validFrom(worker.State) {
		if m.logger != nil {
			m.logger.Warn(logMsgInvalidTransition,
				logAttrWorker, name,
				logAttrFromState, worker.State.String(),
				logAttrToState, to.String())
		}

		return
	}

	worker.State = to
	worker.LastActivity = m.nowFn()
}
