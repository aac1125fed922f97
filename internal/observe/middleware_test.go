package observe_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/routevox/routevox/internal/observe"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions/{id}/summary", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := observe.Middleware(m)(mux)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/abc123/summary", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status=%d, want %d", rec.Code, http.StatusNoContent)
	}

	metrics := collect(t, reader)
	hist, ok := metrics["routevox.http.request.duration"].Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("routevox.http.request.duration not collected as a float64 histogram")
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("datapoints=%d, want 1", len(hist.DataPoints))
	}

	dp := hist.DataPoints[0]
	route, ok := dp.Attributes.Value(attribute.Key("route"))
	if !ok {
		t.Fatal("duration datapoint missing route attribute")
	}
	// The label must be the matched pattern, not the raw per-session URL.
	if got, want := route.AsString(), "GET /sessions/{id}/summary"; got != want {
		t.Errorf("route=%q, want %q", got, want)
	}
	method, ok := dp.Attributes.Value(attribute.Key("method"))
	if !ok || method.AsString() != http.MethodGet {
		t.Errorf("method=%q, want %q", method.AsString(), http.MethodGet)
	}
}

func TestMiddlewareUnmatchedRouteFallsBackToPath(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	handler := observe.Middleware(m)(http.NewServeMux())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/no/such/route", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want %d", rec.Code, http.StatusNotFound)
	}

	metrics := collect(t, reader)
	hist, ok := metrics["routevox.http.request.duration"].Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("routevox.http.request.duration not collected as a float64 histogram")
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("datapoints=%d, want 1", len(hist.DataPoints))
	}
	route, ok := hist.DataPoints[0].Attributes.Value(attribute.Key("route"))
	if !ok || route.AsString() != "/no/such/route" {
		t.Errorf("route=%q, want %q", route.AsString(), "/no/such/route")
	}
}
