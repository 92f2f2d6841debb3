package testdoubles

import (
	"context"
	"sync"
	"time"

	"github.com/Hburdack/happy-button-sub001/simulation"
)

// SpyMetricCall represents a recorded metrics call. WithContext reports
// whether the call arrived through a context-aware method.
type SpyMetricCall struct {
	Method      string
	Metric      string
	Labels      map[string]string
	WithContext bool
}

// MetricsCollectorSpy is a MetricsCollector implementation that captures
// metric calls for testing the simulator's instrumentation.
type MetricsCollectorSpy struct {
	mu    sync.Mutex
	calls []SpyMetricCall
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy instance.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{}
}

// RecordDuration implements the MetricsCollector interface for testing.
func (s *MetricsCollectorSpy) RecordDuration(metric string, _ time.Duration, labels map[string]string) {
	s.record("RecordDuration", metric, labels, false)
}

// IncrementCounter implements the MetricsCollector interface for testing.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.record("IncrementCounter", metric, labels, false)
}

// RecordValue implements the MetricsCollector interface for testing.
func (s *MetricsCollectorSpy) RecordValue(metric string, _ float64, labels map[string]string) {
	s.record("RecordValue", metric, labels, false)
}

// Calls returns a copy of all recorded metric calls.
func (s *MetricsCollectorSpy) Calls() []SpyMetricCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyMetricCall(nil), s.calls...)
}

// CallsFor returns all recorded calls for the given metric name.
func (s *MetricsCollectorSpy) CallsFor(metric string) []SpyMetricCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matching []SpyMetricCall
	for _, call := range s.calls {
		if call.Metric == metric {
			matching = append(matching, call)
		}
	}

	return matching
}

func (s *MetricsCollectorSpy) record(method string, metric string, labels map[string]string, withContext bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, SpyMetricCall{
		Method:      method,
		Metric:      metric,
		Labels:      labels,
		WithContext: withContext,
	})
}

// ContextualMetricsCollectorSpy additionally captures the context-aware
// methods, so tests can assert which variant the instrumented code chose.
type ContextualMetricsCollectorSpy struct {
	MetricsCollectorSpy
}

// NewContextualMetricsCollectorSpy creates a new ContextualMetricsCollectorSpy instance.
func NewContextualMetricsCollectorSpy() *ContextualMetricsCollectorSpy {
	return &ContextualMetricsCollectorSpy{}
}

// RecordDurationContext implements the ContextualMetricsCollector interface for testing.
func (s *ContextualMetricsCollectorSpy) RecordDurationContext(_ context.Context, metric string, _ time.Duration, labels map[string]string) {
	s.record("RecordDuration", metric, labels, true)
}

// IncrementCounterContext implements the ContextualMetricsCollector interface for testing.
func (s *ContextualMetricsCollectorSpy) IncrementCounterContext(_ context.Context, metric string, labels map[string]string) {
	s.record("IncrementCounter", metric, labels, true)
}

// RecordValueContext implements the ContextualMetricsCollector interface for testing.
func (s *ContextualMetricsCollectorSpy) RecordValueContext(_ context.Context, metric string, _ float64, labels map[string]string) {
	s.record("RecordValue", metric, labels, true)
}

// Compile-time checks to ensure the spies implement the metrics interfaces.
var (
	_ simulation.MetricsCollector           = (*MetricsCollectorSpy)(nil)
	_ simulation.ContextualMetricsCollector = (*ContextualMetricsCollectorSpy)(nil)
)
