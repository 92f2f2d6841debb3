package dispatch_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hburdack/happy-button-sub001/simulation"
	"github.com/Hburdack/happy-button-sub001/simulation/dispatch"
	"github.com/Hburdack/happy-button-sub001/testutil/testdoubles"
)

var descriptorTime = time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)

func buildDescriptor(t *testing.T, priority simulation.Priority, targetCount int) simulation.EventDescriptor {
	t.Helper()

	descriptor, err := simulation.BuildEventDescriptor(priority, "customer-order", targetCount, 2, 9, descriptorTime)
	require.NoError(t, err)

	return descriptor
}

// timelineSender records the manual-clock instant of every delivery so rate
// invariants can be asserted against the simulated timeline.
type timelineSender struct {
	clock  *testdoubles.ManualClock
	mu     sync.Mutex
	stamps []time.Time
}

func (s *timelineSender) Deliver(_ context.Context, _ simulation.EventDescriptor) (simulation.DeliveryReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stamps = append(s.stamps, s.clock.Now())

	return simulation.DeliveryReceipt{DeliveredAt: s.clock.Now()}, nil
}

func (s *timelineSender) timeline() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]time.Time(nil), s.stamps...)
}

func Test_NewDispatcher_Validation(t *testing.T) {
	_, err := dispatch.NewDispatcher(nil)
	assert.ErrorIs(t, err, simulation.ErrNilSender)

	_, err = dispatch.NewDispatcher(testdoubles.NewRecordingSender(), dispatch.WithRateLimits(0, 30))
	assert.ErrorIs(t, err, simulation.ErrInvalidRateLimit)

	_, err = dispatch.NewDispatcher(testdoubles.NewRecordingSender(), dispatch.WithRateLimits(5, -1))
	assert.ErrorIs(t, err, simulation.ErrInvalidRateLimit)
}

func Test_Dispatcher_EnqueueNeverBlocks(t *testing.T) {
	dispatcher, err := dispatch.NewDispatcher(testdoubles.NewRecordingSender())
	require.NoError(t, err)

	// The queue is unbounded: with no consumer running, a large burst must
	// be absorbed without blocking the producer.
	for i := 0; i < 10_000; i++ {
		dispatcher.Enqueue(buildDescriptor(t, simulation.PriorityNormal, i+1))
	}

	assert.Equal(t, 10_000, dispatcher.QueueDepth())
}

func Test_Dispatcher_PriorityOrdering(t *testing.T) {
	sender := testdoubles.NewRecordingSender()
	dispatcher, err := dispatch.NewDispatcher(sender, dispatch.WithRateLimits(100, 1000))
	require.NoError(t, err)

	// Target counts identify the items; the two high-priority items must
	// keep their enqueue order.
	dispatcher.Enqueue(buildDescriptor(t, simulation.PriorityLow, 1))
	dispatcher.Enqueue(buildDescriptor(t, simulation.PriorityHigh, 2))
	dispatcher.Enqueue(buildDescriptor(t, simulation.PriorityCritical, 3))
	dispatcher.Enqueue(buildDescriptor(t, simulation.PriorityHigh, 4))

	dispatcher.Start()
	defer dispatcher.Stop()

	require.Eventually(t, func() bool { return sender.DeliveryCount() == 4 }, 5*time.Second, 5*time.Millisecond)

	deliveries := sender.Deliveries()
	assert.Equal(t, simulation.PriorityCritical, deliveries[0].Priority)
	assert.Equal(t, simulation.PriorityHigh, deliveries[1].Priority)
	assert.Equal(t, 2, deliveries[1].TargetCount)
	assert.Equal(t, simulation.PriorityHigh, deliveries[2].Priority)
	assert.Equal(t, 4, deliveries[2].TargetCount)
	assert.Equal(t, simulation.PriorityLow, deliveries[3].Priority)
}

//nolint:funlen
func Test_Dispatcher_DualSlidingWindowInvariant(t *testing.T) {
	clock := testdoubles.NewManualClock(descriptorTime)
	sender := &timelineSender{clock: clock}

	// Sleeps advance the simulated timeline instead of blocking, so the
	// full per-hour window is exercised in milliseconds of real time.
	sleepFn := func(ctx context.Context, d time.Duration) bool {
		clock.Advance(d)
		return ctx.Err() == nil
	}

	dispatcher, err := dispatch.NewDispatcher(sender,
		dispatch.WithRateLimits(5, 30),
		dispatch.WithNowFunc(clock.Now),
		dispatch.WithSleepFunc(sleepFn),
	)
	require.NoError(t, err)

	for i := 0; i < 40; i++ {
		dispatcher.Enqueue(buildDescriptor(t, simulation.PriorityNormal, i+1))
	}

	dispatcher.Start()
	defer dispatcher.Stop()

	require.Eventually(t, func() bool { return dispatcher.Delivered() == 40 }, 10*time.Second, time.Millisecond)

	timeline := sender.timeline()
	require.Len(t, timeline, 40)

	for i := range timeline {
		perMinute := 0
		perHour := 0

		for j := i; j < len(timeline); j++ {
			elapsed := timeline[j].Sub(timeline[i])
			if elapsed < time.Minute {
				perMinute++
			}
			if elapsed < time.Hour {
				perHour++
			}
		}

		assert.LessOrEqual(t, perMinute, 5, "60s sub-window starting at dispatch %d", i)
		assert.LessOrEqual(t, perHour, 30, "3600s sub-window starting at dispatch %d", i)
	}

	// 40 deliveries against a per-hour ceiling of 30 must span more than
	// one sliding hour of simulated time.
	assert.Greater(t, timeline[39].Sub(timeline[0]), time.Hour)
}

//nolint:funlen
func Test_Dispatcher_DualSlidingWindowInvariant_ConcurrentProducers(t *testing.T) {
	clock := testdoubles.NewManualClock(descriptorTime)
	sender := &timelineSender{clock: clock}

	sleepFn := func(ctx context.Context, d time.Duration) bool {
		clock.Advance(d)
		return ctx.Err() == nil
	}

	dispatcher, err := dispatch.NewDispatcher(sender,
		dispatch.WithRateLimits(5, 30),
		dispatch.WithNowFunc(clock.Now),
		dispatch.WithSleepFunc(sleepFn),
	)
	require.NoError(t, err)

	const producers = 4
	const perProducer = 10

	rng := rand.New(rand.NewSource(7)) //nolint:gosec // randomized test input, not cryptography
	descriptors := make([]simulation.EventDescriptor, producers*perProducer)
	for i := range descriptors {
		descriptors[i] = buildDescriptor(t, simulation.Priority(rng.Intn(4)), i+1)
	}

	dispatcher.Start()
	defer dispatcher.Stop()

	// Producers race each other and the running consumer.
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(chunk []simulation.EventDescriptor) {
			defer wg.Done()
			for _, descriptor := range chunk {
				dispatcher.Enqueue(descriptor)
			}
		}(descriptors[p*perProducer : (p+1)*perProducer])
	}
	wg.Wait()

	require.Eventually(t, func() bool { return dispatcher.Delivered() == producers*perProducer }, 10*time.Second, time.Millisecond)

	timeline := sender.timeline()
	require.Len(t, timeline, producers*perProducer)

	for i := range timeline {
		perMinute := 0
		perHour := 0

		for j := i; j < len(timeline); j++ {
			elapsed := timeline[j].Sub(timeline[i])
			if elapsed < time.Minute {
				perMinute++
			}
			if elapsed < time.Hour {
				perHour++
			}
		}

		assert.LessOrEqual(t, perMinute, 5, "60s sub-window starting at dispatch %d", i)
		assert.LessOrEqual(t, perHour, 30, "3600s sub-window starting at dispatch %d", i)
	}
}

func Test_Dispatcher_TransientFailureIsRetried(t *testing.T) {
	sender := testdoubles.NewRecordingSender()
	sender.FailOnCall(1, fmt.Errorf("connection refused: %w", simulation.ErrTransientDelivery))

	dispatcher, err := dispatch.NewDispatcher(sender,
		dispatch.WithRateLimits(100, 1000),
		dispatch.WithBackoffBase(time.Millisecond),
	)
	require.NoError(t, err)

	dispatcher.Enqueue(buildDescriptor(t, simulation.PriorityNormal, 1))
	dispatcher.Start()
	defer dispatcher.Stop()

	require.Eventually(t, func() bool { return sender.DeliveryCount() == 1 }, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, sender.Calls(), "one failed attempt plus one successful retry")
	assert.Equal(t, int64(0), dispatcher.DeliveryErrors())
}

func Test_Dispatcher_RetriesExhaustedCountsOneError(t *testing.T) {
	sender := testdoubles.NewRecordingSender()
	transientErr := fmt.Errorf("connection refused: %w", simulation.ErrTransientDelivery)
	sender.FailOnCall(1, transientErr)
	sender.FailOnCall(2, transientErr)
	sender.FailOnCall(3, transientErr)

	var droppedMu sync.Mutex
	var dropped []simulation.EventDescriptor

	dispatcher, err := dispatch.NewDispatcher(sender,
		dispatch.WithRateLimits(100, 1000),
		dispatch.WithBackoffBase(time.Millisecond),
		dispatch.WithDeliveryErrorHandler(func(descriptor simulation.EventDescriptor, _ error) {
			droppedMu.Lock()
			dropped = append(dropped, descriptor)
			droppedMu.Unlock()
		}),
	)
	require.NoError(t, err)

	dispatcher.Enqueue(buildDescriptor(t, simulation.PriorityNormal, 1))
	dispatcher.Enqueue(buildDescriptor(t, simulation.PriorityNormal, 2))
	dispatcher.Start()
	defer dispatcher.Stop()

	require.Eventually(t, func() bool { return sender.DeliveryCount() == 1 }, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, 4, sender.Calls(), "three exhausted attempts plus the next item")
	assert.Equal(t, int64(1), dispatcher.DeliveryErrors())

	droppedMu.Lock()
	defer droppedMu.Unlock()
	require.Len(t, dropped, 1)
	assert.Equal(t, 1, dropped[0].TargetCount)
}

func Test_Dispatcher_TerminalFailureIsNotRetried(t *testing.T) {
	sender := testdoubles.NewRecordingSender()
	sender.FailOnCall(1, fmt.Errorf("recipient rejected: %w", simulation.ErrTerminalDelivery))

	dispatcher, err := dispatch.NewDispatcher(sender,
		dispatch.WithRateLimits(100, 1000),
		dispatch.WithBackoffBase(time.Millisecond),
	)
	require.NoError(t, err)

	dispatcher.Enqueue(buildDescriptor(t, simulation.PriorityNormal, 1))
	dispatcher.Enqueue(buildDescriptor(t, simulation.PriorityNormal, 2))
	dispatcher.Start()
	defer dispatcher.Stop()

	// The queue keeps draining after the terminal drop.
	require.Eventually(t, func() bool { return sender.DeliveryCount() == 1 }, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, sender.Calls(), "terminal failure must not be retried")
	assert.Equal(t, int64(1), dispatcher.DeliveryErrors())
}

func Test_Dispatcher_StopInterruptsRateLimitedSleep(t *testing.T) {
	sender := testdoubles.NewRecordingSender()

	dispatcher, err := dispatch.NewDispatcher(sender, dispatch.WithRateLimits(1, 100))
	require.NoError(t, err)

	dispatcher.Enqueue(buildDescriptor(t, simulation.PriorityNormal, 1))
	dispatcher.Enqueue(buildDescriptor(t, simulation.PriorityNormal, 2))
	dispatcher.Start()

	// The second item hits the per-minute ceiling and the consumer goes
	// into a ~60s sleep. Stop must wake it immediately.
	require.Eventually(t, func() bool { return sender.DeliveryCount() == 1 }, 5*time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		dispatcher.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt the rate-limited sleep")
	}

	assert.Equal(t, 1, dispatcher.QueueDepth(), "the denied item stays queued")
}

func Test_Dispatcher_StopDuringBackoffRequeuesInsteadOfDropping(t *testing.T) {
	sender := testdoubles.NewRecordingSender()
	sender.FailOnCall(1, fmt.Errorf("connection refused: %w", simulation.ErrTransientDelivery))

	dispatcher, err := dispatch.NewDispatcher(sender,
		dispatch.WithRateLimits(100, 1000),
		dispatch.WithBackoffBase(time.Minute),
	)
	require.NoError(t, err)

	dispatcher.Enqueue(buildDescriptor(t, simulation.PriorityNormal, 1))
	dispatcher.Start()

	// The first attempt fails and the consumer goes into a one-minute
	// backoff. Stop must wake it and put the item back instead of
	// counting a drop.
	require.Eventually(t, func() bool { return sender.Calls() == 1 }, 5*time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		dispatcher.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not interrupt the backoff sleep")
	}

	assert.Equal(t, int64(0), dispatcher.DeliveryErrors(), "an interrupted backoff is not a delivery error")
	assert.Equal(t, int64(0), dispatcher.Delivered())
	assert.Equal(t, 1, dispatcher.QueueDepth(), "the retrying item stays queued")
}

func Test_Dispatcher_PrefersContextualMetricsWhenAvailable(t *testing.T) {
	metrics := testdoubles.NewContextualMetricsCollectorSpy()

	dispatcher, err := dispatch.NewDispatcher(testdoubles.NewRecordingSender(),
		dispatch.WithRateLimits(100, 1000),
		dispatch.WithMetrics(metrics),
	)
	require.NoError(t, err)

	dispatcher.Enqueue(buildDescriptor(t, simulation.PriorityNormal, 1))
	dispatcher.Start()
	defer dispatcher.Stop()

	require.Eventually(t, func() bool { return len(metrics.CallsFor("dispatch_delivered")) == 1 }, 5*time.Second, time.Millisecond)

	for _, call := range metrics.Calls() {
		assert.True(t, call.WithContext, "metric %s must arrive through the context-aware %s", call.Metric, call.Method)
	}
}

func Test_Dispatcher_FallsBackToBaseMetrics(t *testing.T) {
	metrics := testdoubles.NewMetricsCollectorSpy()

	dispatcher, err := dispatch.NewDispatcher(testdoubles.NewRecordingSender(),
		dispatch.WithRateLimits(100, 1000),
		dispatch.WithMetrics(metrics),
	)
	require.NoError(t, err)

	dispatcher.Enqueue(buildDescriptor(t, simulation.PriorityNormal, 1))
	dispatcher.Start()
	defer dispatcher.Stop()

	require.Eventually(t, func() bool { return len(metrics.CallsFor("dispatch_delivered")) == 1 }, 5*time.Second, time.Millisecond)

	for _, call := range metrics.Calls() {
		assert.False(t, call.WithContext)
	}
}

func Test_Dispatcher_StartWhileRunningIsNoOp(t *testing.T) {
	sender := testdoubles.NewRecordingSender()

	dispatcher, err := dispatch.NewDispatcher(sender, dispatch.WithRateLimits(100, 1000))
	require.NoError(t, err)

	dispatcher.Start()
	dispatcher.Start()
	defer dispatcher.Stop()

	dispatcher.Enqueue(buildDescriptor(t, simulation.PriorityNormal, 1))

	require.Eventually(t, func() bool { return sender.DeliveryCount() == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, sender.Calls(), "a second Start must not spawn a second consumer")
}
