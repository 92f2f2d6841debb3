// Package engine composes the virtual clock, scenario generator, dispatch
// queue, and lifecycle monitor into the continuous simulation engine and
// exposes the control surface for dashboards and tests.
package engine

import (
	"context"
	"time"

	"github.com/Hburdack/happy-button-sub001/simulation"
	"github.com/Hburdack/happy-button-sub001/simulation/dispatch"
	"github.com/Hburdack/happy-button-sub001/simulation/lifecycle"
	"github.com/Hburdack/happy-button-sub001/simulation/scenario"
	"github.com/Hburdack/happy-button-sub001/simulation/virtualclock"
)

// Worker names registered with the lifecycle monitor.
const (
	WorkerClock        = "clock"
	WorkerOrchestrator = "orchestrator"
	WorkerDispatcher   = "dispatcher"
)

const (
	// DefaultSpeedLevel is the acceleration applied when a continuous run
	// starts without an explicit level.
	DefaultSpeedLevel = 2

	// DefaultTickInterval is the real-time poll granularity of the drive
	// loop; simulated-hour boundaries are detected at this resolution.
	DefaultTickInterval = 250 * time.Millisecond

	// DefaultCycleBudget bounds the wall-clock duration of one cycle; the
	// cycle also ends early once the simulated week is over.
	DefaultCycleBudget = 24 * time.Hour

	// DefaultInterCyclePause separates two cycles.
	DefaultInterCyclePause = 5 * time.Second

	// DefaultStartHour is the simulated hour each cycle begins at.
	DefaultStartHour = 8
)

type config struct {
	defaultLevel    int
	tickInterval    time.Duration
	cycleBudget     time.Duration
	interCyclePause time.Duration
	startHour       int
	seed            int64
	seedSet         bool
	speedTable      []int
	perMinute       int
	perHour         int
	nowFn           func() time.Time
	sleepFn         func(ctx context.Context, d time.Duration) bool
}

// Option defines a functional option for configuring an Engine.
type Option func(*Engine) error

// WithLogger sets the logger for the Engine and its dispatcher.
func WithLogger(logger simulation.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets the context-aware logger used inside ticks.
func WithContextualLogger(logger simulation.ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine and its dispatcher.
func WithMetrics(collector simulation.MetricsCollector) Option {
	return func(e *Engine) error {
		e.metrics = collector
		return nil
	}
}

// WithTracing sets the tracing collector; each tick runs inside a span.
func WithTracing(collector simulation.TracingCollector) Option {
	return func(e *Engine) error {
		e.tracing = collector
		return nil
	}
}

// WithRateLimits sets the dispatcher's per-minute and per-hour ceilings.
func WithRateLimits(perMinute int, perHour int) Option {
	return func(e *Engine) error {
		if perMinute <= 0 || perHour <= 0 {
			return simulation.ErrInvalidRateLimit
		}

		e.cfg.perMinute = perMinute
		e.cfg.perHour = perHour

		return nil
	}
}

// WithSpeedTable replaces the virtual clock's default speed table.
func WithSpeedTable(table []int) Option {
	return func(e *Engine) error {
		e.cfg.speedTable = append([]int(nil), table...)
		return nil
	}
}

// WithDefaultSpeedLevel sets the level applied when a continuous run starts.
func WithDefaultSpeedLevel(level int) Option {
	return func(e *Engine) error {
		if level < 1 {
			return simulation.ErrInvalidSpeedLevel
		}

		e.cfg.defaultLevel = level

		return nil
	}
}

// WithTickInterval sets the drive loop's real-time poll granularity.
func WithTickInterval(interval time.Duration) Option {
	return func(e *Engine) error {
		e.cfg.tickInterval = interval
		return nil
	}
}

// WithCycleBudget bounds the wall-clock duration of one cycle.
func WithCycleBudget(budget time.Duration) Option {
	return func(e *Engine) error {
		e.cfg.cycleBudget = budget
		return nil
	}
}

// WithInterCyclePause sets the pause between two cycles.
func WithInterCyclePause(pause time.Duration) Option {
	return func(e *Engine) error {
		e.cfg.interCyclePause = pause
		return nil
	}
}

// WithStartHour sets the simulated hour each cycle begins at.
func WithStartHour(hour int) Option {
	return func(e *Engine) error {
		if hour < 0 || hour > 23 {
			return simulation.ErrSimHourOutOfRange
		}

		e.cfg.startHour = hour

		return nil
	}
}

// WithSeed fixes the scenario generator's random seed for reproducible runs.
func WithSeed(seed int64) Option {
	return func(e *Engine) error {
		e.cfg.seed = seed
		e.cfg.seedSet = true

		return nil
	}
}

// WithNowFunc replaces the real-time source of the clock, the dispatcher,
// and the lifecycle monitor, used by tests to drive the engine
// deterministically.
func WithNowFunc(nowFn func() time.Time) Option {
	return func(e *Engine) error {
		e.cfg.nowFn = nowFn
		return nil
	}
}

// WithSleepFunc replaces the cancellable sleep of the drive loop and the
// dispatcher, used together with WithNowFunc in tests.
func WithSleepFunc(sleepFn func(ctx context.Context, d time.Duration) bool) Option {
	return func(e *Engine) error {
		e.cfg.sleepFn = sleepFn
		return nil
	}
}

// Engine is the continuous simulation engine. All control methods are safe
// for concurrent use; the background loops communicate exclusively through
// the dispatcher's queue and atomically guarded state snapshots.
type Engine struct {
	clock      *virtualclock.Clock
	generator  *scenario.Generator
	dispatcher *dispatch.Dispatcher
	monitor    *lifecycle.Monitor

	logger           simulation.Logger
	contextualLogger simulation.ContextualLogger
	metrics          simulation.MetricsCollector
	tracing          simulation.TracingCollector

	cfg config

	runState runState
}

// NewEngine creates an Engine delivering to the given sender with optional
// configuration. Invalid configuration is rejected here, before any state
// changes.
func NewEngine(sender simulation.Sender, options ...Option) (*Engine, error) {
	if sender == nil {
		return nil, simulation.ErrNilSender
	}

	e := &Engine{
		cfg: config{
			defaultLevel:    DefaultSpeedLevel,
			tickInterval:    DefaultTickInterval,
			cycleBudget:     DefaultCycleBudget,
			interCyclePause: DefaultInterCyclePause,
			startHour:       DefaultStartHour,
			perMinute:       dispatch.DefaultPerMinuteCeiling,
			perHour:         dispatch.DefaultPerHourCeiling,
			nowFn:           time.Now,
		},
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	clockOptions := []virtualclock.Option{virtualclock.WithNowFunc(e.cfg.nowFn)}
	if e.cfg.speedTable != nil {
		clockOptions = append(clockOptions, virtualclock.WithSpeedTable(e.cfg.speedTable))
	}

	clock, err := virtualclock.NewClock(clockOptions...)
	if err != nil {
		return nil, err
	}

	if e.cfg.defaultLevel > clock.Levels() {
		return nil, simulation.ErrInvalidSpeedLevel
	}

	monitor, err := lifecycle.NewMonitor(
		[]string{WorkerClock, WorkerOrchestrator, WorkerDispatcher},
		lifecycle.WithLogger(e.logger),
		lifecycle.WithNowFunc(e.cfg.nowFn),
	)
	if err != nil {
		return nil, err
	}

	dispatcherOptions := []dispatch.Option{
		dispatch.WithRateLimits(e.cfg.perMinute, e.cfg.perHour),
		dispatch.WithLogger(e.logger),
		dispatch.WithMetrics(e.metrics),
		dispatch.WithNowFunc(e.cfg.nowFn),
		dispatch.WithDeliveryErrorHandler(func(_ simulation.EventDescriptor, deliveryErr error) {
			monitor.ReportDegraded(WorkerDispatcher, deliveryErr)
		}),
	}
	if e.cfg.sleepFn != nil {
		dispatcherOptions = append(dispatcherOptions, dispatch.WithSleepFunc(e.cfg.sleepFn))
	}

	dispatcher, err := dispatch.NewDispatcher(sender, dispatcherOptions...)
	if err != nil {
		return nil, err
	}

	seed := e.cfg.seed
	if !e.cfg.seedSet {
		seed = e.cfg.nowFn().UnixNano()
	}

	e.clock = clock
	e.monitor = monitor
	e.dispatcher = dispatcher
	e.generator = scenario.NewGenerator(seed)
	e.runState.init(e.cfg.startHour)

	if e.cfg.sleepFn == nil {
		e.cfg.sleepFn = timerSleep
	}

	return e, nil
}

// SetSpeedLevel changes the clock's acceleration with no discontinuity in
// simulated time. Returns ErrInvalidSpeedLevel synchronously if the level
// is not defined; no state changes in that case.
func (e *Engine) SetSpeedLevel(level int) error {
	return e.clock.SetLevel(level)
}

// PauseClock freezes simulated time; the drive loop keeps polling but no
// hour boundary passes until the clock is resumed via SetSpeedLevel/Start.
func (e *Engine) PauseClock() {
	e.clock.Pause()
}

// ResumeClock restarts a paused clock within a running simulation.
func (e *Engine) ResumeClock() {
	e.clock.Start()
}

// Status returns the machine-readable state of the simulator at this
// instant. It never blocks on the background loops.
func (e *Engine) Status() simulation.StatusSnapshot {
	cycleNumber, simDay, simHour, running := e.runState.position()

	return simulation.StatusSnapshot{
		CycleNumber:      cycleNumber,
		SimDay:           simDay,
		SimHour:          simHour,
		SpeedLevel:       e.clock.Level(),
		Running:          running,
		ActiveIssueCount: e.generator.ActiveIssueCount(),
		QueueDepth:       e.dispatcher.QueueDepth(),
		RecentRateMinute: e.dispatcher.RecentRateMinute(),
		RecentRateHour:   e.dispatcher.RecentRateHour(),
		HealthScore:      e.monitor.HealthScore(),
	}
}

// Monitor exposes the lifecycle monitor for health polling.
func (e *Engine) Monitor() *lifecycle.Monitor {
	return e.monitor
}

// Dispatcher exposes the dispatcher for delivery statistics.
func (e *Engine) Dispatcher() *dispatch.Dispatcher {
	return e.dispatcher
}

// Generator exposes the scenario generator for issue management.
func (e *Engine) Generator() *scenario.Generator {
	return e.generator
}

// Clock exposes the virtual clock.
func (e *Engine) Clock() *virtualclock.Clock {
	return e.clock
}

// timerSleep is the default cancellable sleep of the drive loop.
func timerSleep(ctx context.Context, duration time.Duration) bool {
	if duration <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
