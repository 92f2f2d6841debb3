// Package dispatch delivers generated event descriptors to an external
// Sender one at a time, in priority order, under dual sliding-window rate
// limits with bounded retry.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Hburdack/happy-button-sub001/simulation"
)

const (
	// DefaultPerMinuteCeiling and DefaultPerHourCeiling are the dual rate
	// limits applied when no explicit configuration is supplied.
	DefaultPerMinuteCeiling = 5
	DefaultPerHourCeiling   = 30

	// DeliveryAttempts bounds how often one descriptor is handed to the
	// sender before it is dropped and counted as a delivery error.
	DeliveryAttempts = 3

	// DefaultBackoffBase is the first retry delay; it doubles per attempt.
	DefaultBackoffBase = 100 * time.Millisecond

	minuteWindowLength = time.Minute
	hourWindowLength   = time.Hour

	logMsgDelivered        = "event delivered"
	logMsgDeliveryRetry    = "transient delivery failure, retrying"
	logMsgDeliveryDropped  = "delivery failed permanently, event dropped"
	logMsgRateLimited      = "rate limited, consumer sleeping"
	logMsgConsumerStarted  = "dispatch consumer started"
	logMsgConsumerStopped  = "dispatch consumer stopped"
	logAttrEventID         = "event_id"
	logAttrPriority        = "priority"
	logAttrCategory        = "category"
	logAttrAttempt         = "attempt"
	logAttrError           = "error"
	logAttrSleepMS         = "sleep_ms"
	metricDelivered        = "dispatch_delivered"
	metricDeliveryError    = "dispatch_delivery_errors"
	metricRateLimitedWaits = "dispatch_rate_limited_waits"
	metricDeliveryDuration = "dispatch_delivery_duration"
)

// DeliveryErrorHandler is notified whenever a descriptor is dropped, either
// after a terminal rejection or after the retry bound is exhausted.
type DeliveryErrorHandler func(descriptor simulation.EventDescriptor, err error)

// Dispatcher consumes event descriptors from its priority queue and hands
// them to the Sender. A single consumer goroutine performs all admission
// checks and is the sole writer of the rate-window state; producers only
// read window snapshots.
type Dispatcher struct {
	sender  simulation.Sender
	queue   *priorityQueue
	logger  simulation.Logger
	metrics simulation.MetricsCollector
	onError DeliveryErrorHandler

	windowMu     sync.Mutex
	minuteWindow *RateWindow
	hourWindow   *RateWindow

	perMinuteCeiling int
	perHourCeiling   int
	backoffBase      time.Duration
	nowFn            func() time.Time
	sleepFn          func(ctx context.Context, d time.Duration) bool

	runMu     sync.Mutex
	running   bool
	cancel    context.CancelFunc
	stopChan  chan struct{}
	doneChan  chan struct{}
	delivered atomic.Int64
	dropped   atomic.Int64
}

// Option defines a functional option for configuring a Dispatcher.
type Option func(*Dispatcher) error

// WithRateLimits sets the per-minute and per-hour dispatch ceilings.
func WithRateLimits(perMinute int, perHour int) Option {
	return func(d *Dispatcher) error {
		if perMinute <= 0 || perHour <= 0 {
			return simulation.ErrInvalidRateLimit
		}

		d.perMinuteCeiling = perMinute
		d.perHourCeiling = perHour

		return nil
	}
}

// WithLogger sets the logger for the Dispatcher.
func WithLogger(logger simulation.Logger) Option {
	return func(d *Dispatcher) error {
		d.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Dispatcher.
func WithMetrics(collector simulation.MetricsCollector) Option {
	return func(d *Dispatcher) error {
		d.metrics = collector
		return nil
	}
}

// WithDeliveryErrorHandler sets the callback invoked when a descriptor is
// dropped. The engine uses it to feed the lifecycle monitor.
func WithDeliveryErrorHandler(handler DeliveryErrorHandler) Option {
	return func(d *Dispatcher) error {
		d.onError = handler
		return nil
	}
}

// WithBackoffBase overrides the first retry delay, mainly for tests.
func WithBackoffBase(base time.Duration) Option {
	return func(d *Dispatcher) error {
		d.backoffBase = base
		return nil
	}
}

// WithNowFunc replaces the real-time source, used by tests to drive the
// rate windows deterministically.
func WithNowFunc(nowFn func() time.Time) Option {
	return func(d *Dispatcher) error {
		d.nowFn = nowFn
		return nil
	}
}

// WithSleepFunc replaces the cancellable sleep, used together with
// WithNowFunc in tests. The function must return false when the sleep was
// interrupted by context cancellation.
func WithSleepFunc(sleepFn func(ctx context.Context, d time.Duration) bool) Option {
	return func(d *Dispatcher) error {
		d.sleepFn = sleepFn
		return nil
	}
}

// NewDispatcher creates a Dispatcher delivering to the given sender with
// optional configuration.
func NewDispatcher(sender simulation.Sender, options ...Option) (*Dispatcher, error) {
	if sender == nil {
		return nil, simulation.ErrNilSender
	}

	d := &Dispatcher{
		sender:           sender,
		queue:            newPriorityQueue(),
		perMinuteCeiling: DefaultPerMinuteCeiling,
		perHourCeiling:   DefaultPerHourCeiling,
		backoffBase:      DefaultBackoffBase,
		nowFn:            time.Now,
	}

	for _, option := range options {
		if err := option(d); err != nil {
			return nil, err
		}
	}

	if d.sleepFn == nil {
		d.sleepFn = timerSleep
	}

	var err error
	if d.minuteWindow, err = NewRateWindow(minuteWindowLength, d.perMinuteCeiling); err != nil {
		return nil, err
	}

	if d.hourWindow, err = NewRateWindow(hourWindowLength, d.perHourCeiling); err != nil {
		return nil, err
	}

	return d, nil
}

// Enqueue adds a descriptor for delivery. It never blocks the caller.
func (d *Dispatcher) Enqueue(descriptor simulation.EventDescriptor) {
	d.queue.Enqueue(descriptor)
}

// Start launches the single consumer goroutine. It is a no-op if the
// consumer is already running.
func (d *Dispatcher) Start() {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if d.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.stopChan = make(chan struct{})
	d.doneChan = make(chan struct{})
	d.running = true

	go d.consume(ctx, d.stopChan, d.doneChan)
}

// Stop cooperatively shuts the consumer down: the delivery in flight
// completes (or its sleep is interrupted), then the loop exits. Stop blocks
// until the consumer goroutine has finished.
func (d *Dispatcher) Stop() {
	d.runMu.Lock()

	if !d.running {
		d.runMu.Unlock()
		return
	}

	close(d.stopChan)
	d.cancel()
	done := d.doneChan
	d.running = false
	d.runMu.Unlock()

	<-done
}

// QueueDepth returns the number of descriptors waiting for delivery.
func (d *Dispatcher) QueueDepth() int {
	return d.queue.Depth()
}

// Delivered returns the number of successful deliveries.
func (d *Dispatcher) Delivered() int64 {
	return d.delivered.Load()
}

// DeliveryErrors returns the number of dropped descriptors.
func (d *Dispatcher) DeliveryErrors() int64 {
	return d.dropped.Load()
}

// RecentRateMinute returns the number of dispatches within the sliding
// 60-second window. Safe to call from any goroutine.
func (d *Dispatcher) RecentRateMinute() int {
	d.windowMu.Lock()
	defer d.windowMu.Unlock()

	return d.minuteWindow.Count(d.nowFn())
}

// RecentRateHour returns the number of dispatches within the sliding
// 3600-second window. Safe to call from any goroutine.
func (d *Dispatcher) RecentRateHour() int {
	d.windowMu.Lock()
	defer d.windowMu.Unlock()

	return d.hourWindow.Count(d.nowFn())
}

// consume is the single consumer loop.
func (d *Dispatcher) consume(ctx context.Context, stopChan <-chan struct{}, doneChan chan<- struct{}) {
	defer close(doneChan)

	d.logDebug(logMsgConsumerStarted)
	defer d.logDebug(logMsgConsumerStopped)

	for {
		select {
		case <-stopChan:
			return
		default:
		}

		descriptor, ok := d.queue.Dequeue()
		if !ok {
			select {
			case <-stopChan:
				return
			case <-d.queue.Signal():
				continue
			}
		}

		admitted, wait := d.admit()
		if !admitted {
			d.queue.RequeueFront(descriptor)
			d.incrementCounter(ctx, metricRateLimitedWaits, nil)
			d.logDebug(logMsgRateLimited, logAttrSleepMS, wait.Milliseconds())

			if !d.sleepFn(ctx, wait) {
				return
			}

			continue
		}

		d.deliverWithRetry(ctx, descriptor)
	}
}

// admit checks both windows and, on success, records the dispatch timestamp
// in both atomically with the decision. On denial it returns the sleep
// duration until the nearer window frees a slot.
func (d *Dispatcher) admit() (bool, time.Duration) {
	d.windowMu.Lock()
	defer d.windowMu.Unlock()

	now := d.nowFn()

	if d.minuteWindow.HasCapacity(now) && d.hourWindow.HasCapacity(now) {
		d.minuteWindow.Record(now)
		d.hourWindow.Record(now)

		return true, 0
	}

	wait := time.Duration(0)
	if minuteWait := d.minuteWindow.NextFree(now); minuteWait > 0 {
		wait = minuteWait
	}

	if hourWait := d.hourWindow.NextFree(now); hourWait > 0 && (wait == 0 || hourWait < wait) {
		wait = hourWait
	}

	return false, wait
}

// deliverWithRetry hands the descriptor to the sender, retrying transient
// failures with exponential backoff up to DeliveryAttempts total attempts.
func (d *Dispatcher) deliverWithRetry(ctx context.Context, descriptor simulation.EventDescriptor) {
	var lastErr error

	for attempt := 1; attempt <= DeliveryAttempts; attempt++ {
		start := d.nowFn()
		_, err := d.sender.Deliver(ctx, descriptor)

		if err == nil {
			d.delivered.Add(1)
			d.recordDuration(ctx, metricDeliveryDuration, d.nowFn().Sub(start), map[string]string{logAttrPriority: descriptor.Priority.String()})
			d.incrementCounter(ctx, metricDelivered, map[string]string{logAttrPriority: descriptor.Priority.String()})
			d.logDebug(logMsgDelivered,
				logAttrEventID, descriptor.ID.String(),
				logAttrPriority, descriptor.Priority.String(),
				logAttrCategory, descriptor.Category)

			return
		}

		lastErr = err

		if simulation.IsTerminalDelivery(err) {
			break
		}

		if attempt < DeliveryAttempts {
			d.logWarn(logMsgDeliveryRetry,
				logAttrEventID, descriptor.ID.String(),
				logAttrAttempt, attempt,
				logAttrError, err.Error())

			backoff := d.backoffBase << (attempt - 1)
			if !d.sleepFn(ctx, backoff) {
				// Stop interrupted the backoff: the descriptor goes back
				// to the queue instead of counting as a drop.
				d.queue.RequeueFront(descriptor)
				return
			}
		}
	}

	d.dropped.Add(1)
	d.incrementCounter(ctx, metricDeliveryError, map[string]string{logAttrPriority: descriptor.Priority.String()})
	d.logError(logMsgDeliveryDropped,
		logAttrEventID, descriptor.ID.String(),
		logAttrPriority, descriptor.Priority.String(),
		logAttrError, lastErr.Error())

	if d.onError != nil {
		d.onError(descriptor, lastErr)
	}
}

// timerSleep is the default cancellable sleep.
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

func (d *Dispatcher) logDebug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

func (d *Dispatcher) logWarn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}

func (d *Dispatcher) logError(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Error(msg, args...)
	}
}

func (d *Dispatcher) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if d.metrics == nil {
		return
	}

	// Use context-aware method if available
	if contextualCollector, ok := d.metrics.(simulation.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, metric, labels)
		return
	}

	d.metrics.IncrementCounter(metric, labels)
}

func (d *Dispatcher) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if d.metrics == nil {
		return
	}

	// Use context-aware method if available
	if contextualCollector, ok := d.metrics.(simulation.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	d.metrics.RecordDuration(metric, duration, labels)
}
