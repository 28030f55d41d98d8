package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// counterValue returns the int64 sum data point of name whose attributes
// include attrKey=attrVal, or fails the test. Empty attrKey matches the
// first data point.
func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name, attrKey, attrVal string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		if attrKey == "" {
			return dp.Value
		}
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == attrKey && kv.Value.AsString() == attrVal {
				return dp.Value
			}
		}
	}
	t.Fatalf("metric %q has no data point with %s=%s", name, attrKey, attrVal)
	return 0
}

// histogramCount returns the sample count of the histogram's first data point.
func histogramCount(t *testing.T, rm metricdata.ResourceMetrics, name string) uint64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric %q is not a histogram", name)
	}
	if len(hist.DataPoints) == 0 {
		t.Fatalf("metric %q has no data points", name)
	}
	return hist.DataPoints[0].Count
}

func TestNewMetricsCreatesAllInstruments(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestPipelineStageHistograms(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	// One histogram per pipeline stage, plus the end-to-end turn.
	stages := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"ringline.vad.duration", m.VADDuration},
		{"ringline.stt.duration", m.STTDuration},
		{"ringline.dialogue.duration", m.DialogueDuration},
		{"ringline.tts.duration", m.TTSDuration},
		{"ringline.turn.duration", m.TurnDuration},
	}
	for _, tc := range stages {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)
	for _, tc := range stages {
		t.Run(tc.name, func(t *testing.T) {
			if got := histogramCount(t, rm, tc.name); got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestProviderRequestsByStatus(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "openai", "dialogue", "ok")
	m.RecordProviderRequest(ctx, "openai", "dialogue", "ok")
	m.RecordProviderRequest(ctx, "openai", "dialogue", "error")

	rm := collect(t, reader)
	if got := counterValue(t, rm, "ringline.provider.requests", "status", "ok"); got != 2 {
		t.Errorf("ok requests = %d, want 2", got)
	}
	if got := counterValue(t, rm, "ringline.provider.requests", "status", "error"); got != 1 {
		t.Errorf("error requests = %d, want 1", got)
	}
}

func TestSegmentFlushTriggers(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	// Silence-triggered and cap-triggered flushes are counted apart.
	m.RecordSegmentFlush(ctx, "silence")
	m.RecordSegmentFlush(ctx, "cap")
	m.RecordSegmentFlush(ctx, "cap")

	rm := collect(t, reader)
	if got := counterValue(t, rm, "ringline.segments.flushed", "trigger", "silence"); got != 1 {
		t.Errorf("silence flushes = %d, want 1", got)
	}
	if got := counterValue(t, rm, "ringline.segments.flushed", "trigger", "cap"); got != 2 {
		t.Errorf("cap flushes = %d, want 2", got)
	}
}

func TestUtteranceSources(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	// Streaming finals versus batch segment transcripts.
	m.RecordUtterance(ctx, "stream")
	m.RecordUtterance(ctx, "stream")
	m.RecordUtterance(ctx, "segment")

	rm := collect(t, reader)
	if got := counterValue(t, rm, "ringline.utterances", "source", "stream"); got != 2 {
		t.Errorf("stream utterances = %d, want 2", got)
	}
	if got := counterValue(t, rm, "ringline.utterances", "source", "segment"); got != 1 {
		t.Errorf("segment utterances = %d, want 1", got)
	}
}

func TestProviderErrors(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordProviderError(context.Background(), "elevenlabs", "tts")

	rm := collect(t, reader)
	if got := counterValue(t, rm, "ringline.provider.errors", "provider", "elevenlabs"); got != 1 {
		t.Errorf("provider errors = %d, want 1", got)
	}
}

func TestActiveCallsGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	// Add(1) per call start, Add(-1) per hangup: three starts, one hangup.
	m.ActiveCalls.Add(ctx, 1)
	m.ActiveCalls.Add(ctx, 1)
	m.ActiveCalls.Add(ctx, 1)
	m.ActiveCalls.Add(ctx, -1)

	rm := collect(t, reader)
	if got := counterValue(t, rm, "ringline.active_calls", "", ""); got != 2 {
		t.Errorf("active calls = %d, want 2", got)
	}
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.HTTPRequestDuration.Record(context.Background(), 0.05,
		metric.WithAttributes(
			attribute.String("method", "GET"),
			attribute.String("path", "/call"),
		),
	)

	rm := collect(t, reader)
	if got := histogramCount(t, rm, "ringline.http.request.duration"); got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetricsReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
