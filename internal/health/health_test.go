package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func get(t *testing.T, fn http.HandlerFunc, path string) (*httptest.ResponseRecorder, report) {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	fn(rec, req)

	var body report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec, body
}

func up(context.Context) error { return nil }

func TestHealthzAlwaysUp(t *testing.T) {
	h := New(Probe{Name: "database", Check: func(context.Context) error {
		return errors.New("connection refused")
	}})

	rec, body := get(t, h.Healthz, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body.Status != "up" {
		t.Errorf("status = %q, want up", body.Status)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestReadyzAllProbesPass(t *testing.T) {
	h := New(Database(up), Speech(func() []string { return nil }))

	rec, body := get(t, h.Readyz, "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body.Status != "up" {
		t.Errorf("status = %q, want up", body.Status)
	}
	for _, name := range []string{"database", "speech"} {
		if got := body.Checks[name]; got.Status != "up" || got.Error != "" {
			t.Errorf("%s = %+v, want up", name, got)
		}
	}
}

func TestReadyzRequiredProbeFails(t *testing.T) {
	h := New(
		Database(func(context.Context) error { return errors.New("connection refused") }),
		Probe{Name: "audio-cache", Check: up},
	)

	rec, body := get(t, h.Readyz, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if body.Status != "down" {
		t.Errorf("status = %q, want down", body.Status)
	}
	if got := body.Checks["database"]; got.Status != "down" || got.Error != "connection refused" {
		t.Errorf("database = %+v", got)
	}
	if got := body.Checks["audio-cache"]; got.Status != "up" {
		t.Errorf("audio-cache = %+v, want up", got)
	}
}

func TestReadyzOpenBreakerOnlyDegrades(t *testing.T) {
	h := New(
		Database(up),
		Speech(func() []string { return []string{"tts/baidu"} }),
	)

	rec, body := get(t, h.Readyz, "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d: a dead speech provider must not take readiness down", rec.Code, http.StatusOK)
	}
	if body.Status != "degraded" {
		t.Errorf("status = %q, want degraded", body.Status)
	}
	got := body.Checks["speech"]
	if got.Status != "down" || !strings.Contains(got.Error, "tts/baidu") {
		t.Errorf("speech = %+v, want down naming tts/baidu", got)
	}
}

func TestReadyzRequiredFailureOutranksDegraded(t *testing.T) {
	h := New(
		Speech(func() []string { return []string{"asr/baidu"} }),
		Database(func(context.Context) error { return errors.New("timeout") }),
	)

	rec, body := get(t, h.Readyz, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if body.Status != "down" {
		t.Errorf("status = %q, want down", body.Status)
	}
}

func TestReadyzNoProbes(t *testing.T) {
	rec, body := get(t, New().Readyz, "/readyz")
	if rec.Code != http.StatusOK || body.Status != "up" {
		t.Errorf("empty handler = %d %q, want 200 up", rec.Code, body.Status)
	}
}

func TestRegisterRoutes(t *testing.T) {
	mux := http.NewServeMux()
	New(Database(up)).Register(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest("GET", path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
			}
		})
	}
}

func TestReadyzRespectsContextCancellation(t *testing.T) {
	h := New(Probe{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
