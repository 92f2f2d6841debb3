package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Hburdack/happy-button-sub001/simulation"
)

const (
	logMsgContinuousStarted = "continuous simulation started"
	logMsgContinuousStopped = "continuous simulation stopped"
	logMsgCycleCompleted    = "cycle completed, resetting for next cycle"
	logMsgTickFailed        = "tick failed, continuing with next tick"
	logMsgTickCompleted     = "tick completed"
	logAttrCycle            = "cycle"
	logAttrSimDay           = "sim_day"
	logAttrSimHour          = "sim_hour"
	logAttrSpeedLevel       = "speed_level"
	logAttrEventCount       = "event_count"
	logAttrError            = "error"
	metricTicks             = "orchestrator_ticks"
	metricTickErrors        = "orchestrator_tick_errors"
	metricTickDuration      = "orchestrator_tick_duration"
	metricCycleResets       = "orchestrator_cycle_resets"
	spanNameTick            = "simulation.tick"
)

// runState holds the cycle position owned by the drive loop, guarded for
// concurrent Status readers.
type runState struct {
	mu          sync.Mutex
	running     bool
	cycleNumber int
	simDay      simulation.SimDayInt
	simHour     simulation.SimHourInt
	startHour   simulation.SimHourInt
	cancel      context.CancelFunc
	stopChan    chan struct{}
	doneChan    chan struct{}
}

func (s *runState) init(startHour simulation.SimHourInt) {
	s.startHour = startHour
	s.cycleNumber = 1
	s.simDay = 1
	s.simHour = startHour
}

func (s *runState) position() (cycleNumber int, simDay simulation.SimDayInt, simHour simulation.SimHourInt, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cycleNumber, s.simDay, s.simHour, s.running
}

func (s *runState) setPosition(simDay simulation.SimDayInt, simHour simulation.SimHourInt) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.simDay = simDay
	s.simHour = simHour
}

func (s *runState) nextCycle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cycleNumber++
	s.simDay = 1
	s.simHour = s.startHour
}

func (s *runState) resetCycleState() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cycleNumber = 1
	s.simDay = 1
	s.simHour = s.startHour
}

// StartContinuous transitions the engine from idle to running: all workers
// pass through the starting state, the clock starts at the configured
// default level, and the drive loop begins ticking. It is a no-op if the
// simulation is already running.
func (e *Engine) StartContinuous() {
	s := &e.runState

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.running = true
	stopChan, doneChan := s.stopChan, s.doneChan
	s.mu.Unlock()

	e.monitor.ReportStarting(WorkerClock)
	e.monitor.ReportStarting(WorkerDispatcher)
	e.monitor.ReportStarting(WorkerOrchestrator)

	// The default level was validated at construction.
	_ = e.clock.SetLevel(e.cfg.defaultLevel)
	e.clock.Start()
	e.monitor.ReportActive(WorkerClock)

	e.dispatcher.Start()
	e.monitor.ReportActive(WorkerDispatcher)

	e.logInfo(logMsgContinuousStarted, logAttrSpeedLevel, e.cfg.defaultLevel)

	go e.drive(ctx, stopChan, doneChan)
}

// StopContinuous cooperatively stops the simulation: the tick in flight
// completes, then the drive loop exits without starting a new cycle.
// It blocks until all background goroutines have finished and is a no-op
// if the simulation is not running.
func (e *Engine) StopContinuous() {
	s := &e.runState

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}

	s.running = false
	close(s.stopChan)
	s.cancel()
	done := s.doneChan
	s.mu.Unlock()

	<-done

	e.dispatcher.Stop()
	e.clock.Pause()

	e.monitor.ReportStopped(WorkerOrchestrator)
	e.monitor.ReportStopped(WorkerDispatcher)
	e.monitor.ReportStopped(WorkerClock)

	e.logInfo(logMsgContinuousStopped)
}

// ResetSimulation stops a running simulation and returns everything to its
// initial configuration: clock stopped at level 1, no active issues, cycle
// one at the start hour.
func (e *Engine) ResetSimulation() {
	e.StopContinuous()

	e.clock.Reset()
	e.generator.Reset()
	e.runState.resetCycleState()
}

// drive runs cycles back to back until stopped.
func (e *Engine) drive(ctx context.Context, stopChan <-chan struct{}, doneChan chan<- struct{}) {
	defer close(doneChan)

	e.monitor.ReportActive(WorkerOrchestrator)

	for {
		if !e.runCycle(ctx, stopChan) {
			return
		}

		cycleNumber, _, _, _ := e.runState.position()
		e.logInfo(logMsgCycleCompleted, logAttrCycle, cycleNumber)
		e.incrementCounter(ctx, metricCycleResets, nil)

		// The clock rests during the inter-cycle pause.
		e.clock.Pause()

		if !e.cfg.sleepFn(ctx, e.cfg.interCyclePause) {
			return
		}

		e.runState.nextCycle()
		e.generator.Reset()
		e.clock.Start()
	}
}

// runCycle drives one cycle from day 1 at the start hour until the
// simulated week is over or the wall-clock budget elapses. Returns false
// when interrupted by a stop signal.
func (e *Engine) runCycle(ctx context.Context, stopChan <-chan struct{}) bool {
	realStart := e.cfg.nowFn()
	simStart := e.clock.Now()
	lastTicked := -1

	for {
		select {
		case <-stopChan:
			return false
		default:
		}

		if e.cfg.nowFn().Sub(realStart) >= e.cfg.cycleBudget {
			return true
		}

		hourIndex := int(e.clock.Now().Sub(simStart) / time.Hour)

		for h := lastTicked + 1; h <= hourIndex; h++ {
			totalHours := e.cfg.startHour + h
			simDay := 1 + totalHours/24
			simHour := totalHours % 24

			if simDay > 7 {
				return true
			}

			e.runState.setPosition(simDay, simHour)
			e.safeTick(ctx, simDay, simHour)
			lastTicked = h
		}

		if !e.cfg.sleepFn(ctx, e.cfg.tickInterval) {
			return false
		}
	}
}

// safeTick invokes the generator for one simulated hour and forwards the
// produced descriptors to the dispatcher. A failure inside one tick is
// recorded against the orchestrator worker and never aborts the run.
func (e *Engine) safeTick(ctx context.Context, simDay simulation.SimDayInt, simHour simulation.SimHourInt) {
	defer func() {
		if r := recover(); r != nil {
			tickErr := fmt.Errorf("tick panicked: %v", r)
			e.monitor.ReportDegraded(WorkerOrchestrator, tickErr)
			e.incrementCounter(ctx, metricTickErrors, nil)
			e.logError(logMsgTickFailed, logAttrSimDay, simDay, logAttrSimHour, simHour, logAttrError, tickErr.Error())
		}
	}()

	var span simulation.SpanContext
	if e.tracing != nil {
		ctx, span = e.tracing.StartSpan(ctx, spanNameTick, map[string]string{
			logAttrSimDay:  fmt.Sprintf("%d", simDay),
			logAttrSimHour: fmt.Sprintf("%d", simHour),
		})
	}

	start := e.cfg.nowFn()

	descriptors, err := e.generator.Tick(simDay, simHour, e.clock.Now())
	if err != nil {
		e.monitor.ReportDegraded(WorkerOrchestrator, err)
		e.incrementCounter(ctx, metricTickErrors, nil)
		e.logError(logMsgTickFailed, logAttrSimDay, simDay, logAttrSimHour, simHour, logAttrError, err.Error())

		if span != nil {
			e.tracing.FinishSpan(span, "error", map[string]string{logAttrError: err.Error()})
		}

		return
	}

	for _, descriptor := range descriptors {
		e.dispatcher.Enqueue(descriptor)
	}

	e.monitor.ReportActivity(WorkerOrchestrator)
	e.incrementCounter(ctx, metricTicks, nil)
	e.recordDuration(ctx, metricTickDuration, e.cfg.nowFn().Sub(start), nil)

	if e.contextualLogger != nil {
		e.contextualLogger.DebugContext(ctx, logMsgTickCompleted,
			logAttrSimDay, simDay,
			logAttrSimHour, simHour,
			logAttrEventCount, len(descriptors))
	}

	if span != nil {
		e.tracing.FinishSpan(span, "ok", map[string]string{
			logAttrEventCount: fmt.Sprintf("%d", len(descriptors)),
		})
	}
}

func (e *Engine) logInfo(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e *Engine) logError(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Error(msg, args...)
	}
}

func (e *Engine) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if e.metrics == nil {
		return
	}

	// Use context-aware method if available
	if contextualCollector, ok := e.metrics.(simulation.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	e.metrics.IncrementCounter(metric, labels)
}

func (e *Engine) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if e.metrics == nil {
		return
	}

	// Use context-aware method if available
	if contextualCollector, ok := e.metrics.(simulation.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	e.metrics.RecordDuration(metric, duration, labels)
}
