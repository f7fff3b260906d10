package opshttp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/keithlinneman/quarry/internal/log"
	"github.com/keithlinneman/quarry/internal/probe"
)

func TestHealthzHandler(t *testing.T) {
	cases := []struct {
		name     string
		p        probe.Probe
		wantCode int
		wantBody string
	}{
		{"nil probe passes", nil, http.StatusOK, "ok\n"},
		{"passing probe", probe.Static(true, ""), http.StatusOK, "ok\n"},
		{"failing probe", probe.Static(false, "disk on fire"), http.StatusServiceUnavailable, "disk on fire\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HealthzHandler(tc.p)(rec, httptest.NewRequest(http.MethodGet, "/-/healthy", nil))
			if rec.Code != tc.wantCode {
				t.Fatalf("code: want %d, got %d", tc.wantCode, rec.Code)
			}
			if rec.Body.String() != tc.wantBody {
				t.Fatalf("body: want %q, got %q", tc.wantBody, rec.Body.String())
			}
		})
	}
}

func TestReadyzWithShutdownGate(t *testing.T) {
	var gate probe.ShutdownGate
	h := ReadyzHandler(gate.Probe())

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/-/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("before drain: want 200, got %d", rec.Code)
	}

	gate.Set("shutting down")
	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/-/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("during drain: want 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "shutting down") {
		t.Fatalf("drain reason missing from body %q", rec.Body.String())
	}
}

func TestStartAndStop(t *testing.T) {
	ctx := t.Context()

	stop, err := Start(ctx, log.Nop(), Options{
		Port:      19371,
		Health:    probe.Static(true, ""),
		Readiness: probe.Static(true, ""),
	})
	if err != nil {
		t.Skipf("listen: %v", err)
	}
	defer stop(context.Background())

	resp, err := http.Get("http://127.0.0.1:19371/-/healthy")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "ok\n" {
		t.Fatalf("want 200 ok, got %d %q", resp.StatusCode, body)
	}

	if err := stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestPprofDisabledReturns404(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/heap", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
}
