package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/routevox/routevox/internal/health"
)

func TestHealthz(t *testing.T) {
	t.Parallel()

	h := health.New("1.2.3")
	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" || body.Version != "1.2.3" {
		t.Errorf("body=%+v, want ok/1.2.3", body)
	}
}

func TestReadyz_AllChecksPass(t *testing.T) {
	t.Parallel()

	h := health.New("dev",
		health.Checker{Name: "alias_db", Check: func(context.Context) error { return nil }},
		health.Checker{Name: "analytics_db", Check: func(context.Context) error { return nil }},
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Checks["alias_db"] != "ok" || body.Checks["analytics_db"] != "ok" {
		t.Errorf("checks=%v, want all ok", body.Checks)
	}
}

func TestReadyz_FailingCheck(t *testing.T) {
	t.Parallel()

	h := health.New("dev",
		health.Checker{Name: "good", Check: func(context.Context) error { return nil }},
		health.Checker{Name: "bad", Check: func(context.Context) error { return errors.New("connection refused") }},
	)
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status=%q, want fail", body.Status)
	}
	if body.Checks["good"] != "ok" {
		t.Errorf("good check=%q, want ok", body.Checks["good"])
	}
	if body.Checks["bad"] != "fail: connection refused" {
		t.Errorf("bad check=%q", body.Checks["bad"])
	}
}

func TestRegister(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	health.New("dev").Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status=%d, want 200", path, resp.StatusCode)
		}
	}
}
