package oteladapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Hburdack/happy-button-sub001/simulation/oteladapters"
)

func newTestMeter() (*sdkmetric.ManualReader, *oteladapters.MetricsCollector) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return reader, oteladapters.NewMetricsCollector(provider.Meter("test"))
}

func Test_MetricsCollector_RecordDuration(t *testing.T) {
	reader, collector := newTestMeter()

	collector.RecordDuration("dispatcher_delivery_duration", 150*time.Millisecond, map[string]string{
		"priority": "high",
	})

	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "Failed to collect metrics")

	histogram := findHistogramMetric(t, resourceMetrics, "dispatcher_delivery_duration")
	require.Len(t, histogram.DataPoints, 1, "Expected exactly one data point")

	dataPoint := histogram.DataPoints[0]
	assert.Equal(t, uint64(1), dataPoint.Count, "Histogram count should be 1")
	assert.InDelta(t, 0.15, dataPoint.Sum, 0.001, "Histogram sum should be 0.15 seconds")
	assertDataPointHasAttribute(t, dataPoint.Attributes, "priority", "high")
}

func Test_MetricsCollector_IncrementCounter(t *testing.T) {
	reader, collector := newTestMeter()

	collector.IncrementCounter("dispatcher_delivered", map[string]string{"priority": "critical"})
	collector.IncrementCounter("dispatcher_delivered", map[string]string{"priority": "critical"})

	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "Failed to collect metrics")

	counter := findCounterMetric(t, resourceMetrics, "dispatcher_delivered")
	require.Len(t, counter.DataPoints, 1, "Expected exactly one data point")

	assert.Equal(t, int64(2), counter.DataPoints[0].Value, "Counter should be 2 after two increments")
}

func Test_MetricsCollector_RecordValue(t *testing.T) {
	reader, collector := newTestMeter()

	collector.RecordValue("dispatcher_queue_depth", 7, nil)
	collector.RecordValue("dispatcher_queue_depth", 3, nil)

	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "Failed to collect metrics")

	gauge := findGaugeMetric(t, resourceMetrics, "dispatcher_queue_depth")
	require.Len(t, gauge.DataPoints, 1, "Expected exactly one data point")

	assert.InDelta(t, 3.0, gauge.DataPoints[0].Value, 0.001, "Gauge should hold the latest value")
}

func Test_MetricsCollector_ContextVariants(t *testing.T) {
	reader, collector := newTestMeter()
	ctx := context.Background()

	collector.RecordDurationContext(ctx, "orchestrator_tick_duration", 20*time.Millisecond, nil)
	collector.IncrementCounterContext(ctx, "orchestrator_ticks", nil)
	collector.RecordValueContext(ctx, "lifecycle_health_score", 95, nil)

	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "Failed to collect metrics")

	findHistogramMetric(t, resourceMetrics, "orchestrator_tick_duration")
	findCounterMetric(t, resourceMetrics, "orchestrator_ticks")
	findGaugeMetric(t, resourceMetrics, "lifecycle_health_score")
}

func Test_MetricsCollector_ReusesInstruments(t *testing.T) {
	reader, collector := newTestMeter()

	for i := 0; i < 5; i++ {
		collector.IncrementCounter("orchestrator_ticks", nil)
	}

	var resourceMetrics metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &resourceMetrics)
	require.NoError(t, err, "Failed to collect metrics")

	counter := findCounterMetric(t, resourceMetrics, "orchestrator_ticks")
	require.Len(t, counter.DataPoints, 1, "Repeated increments should share one instrument")
	assert.Equal(t, int64(5), counter.DataPoints[0].Value)
}

func findHistogramMetric(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Histogram[float64] {
	t.Helper()

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				histogram, ok := m.Data.(metricdata.Histogram[float64])
				require.True(t, ok, "Metric %q should be a float64 histogram", name)
				return histogram
			}
		}
	}

	t.Fatalf("Histogram %q not found", name)
	return metricdata.Histogram[float64]{}
}

func findCounterMetric(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok, "Metric %q should be an int64 sum", name)
				return sum
			}
		}
	}

	t.Fatalf("Counter %q not found", name)
	return metricdata.Sum[int64]{}
}

func findGaugeMetric(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Gauge[float64] {
	t.Helper()

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				gauge, ok := m.Data.(metricdata.Gauge[float64])
				require.True(t, ok, "Metric %q should be a float64 gauge", name)
				return gauge
			}
		}
	}

	t.Fatalf("Gauge %q not found", name)
	return metricdata.Gauge[float64]{}
}

func assertDataPointHasAttribute(t *testing.T, set attribute.Set, key, value string) {
	t.Helper()

	got, ok := set.Value(attribute.Key(key))
	require.True(t, ok, "Data point is missing attribute %q", key)
	assert.Equal(t, value, got.AsString(), "Attribute %q should match", key)
}
