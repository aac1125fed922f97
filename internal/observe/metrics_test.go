package observe_test

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/routevox/routevox/internal/observe"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestMetricsRecording(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m.Commits.Add(ctx, 1)
	m.Commits.Add(ctx, 1)
	m.RecordPrediction(ctx, "fuzzy")
	m.RecordSpeechError(ctx, "network")
	m.ActiveSessions.Add(ctx, 1)
	m.PredictDuration.Record(ctx, 0.002)

	metrics := collect(t, reader)

	commits, ok := metrics["routevox.commits"].Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("routevox.commits not collected as an int64 sum")
	}
	var total int64
	for _, dp := range commits.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Errorf("commits=%d, want 2", total)
	}

	if _, ok := metrics["routevox.predictions"]; !ok {
		t.Error("routevox.predictions not collected")
	}
	if _, ok := metrics["routevox.speech_errors"]; !ok {
		t.Error("routevox.speech_errors not collected")
	}
	if _, ok := metrics["routevox.active_sessions"]; !ok {
		t.Error("routevox.active_sessions not collected")
	}

	hist, ok := metrics["routevox.predict.duration"].Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("routevox.predict.duration not collected as a float64 histogram")
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 1 {
		t.Errorf("predict duration samples=%d, want 1", count)
	}
}

func TestDefaultMetricsIsStable(t *testing.T) {
	t.Parallel()

	if observe.DefaultMetrics() != observe.DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
