package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/keithlinneman/quarry/internal/httpmw"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(t.Context(), WithRate(1, 3))
	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d denied within burst", i)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("request allowed past burst")
	}
}

func TestPerIPIsolation(t *testing.T) {
	l := New(t.Context(), WithRate(1, 1))
	if !l.Allow("10.0.0.1") {
		t.Fatal("first ip denied")
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("first ip allowed past burst")
	}
	if !l.Allow("10.0.0.2") {
		t.Fatal("second ip affected by first ip's limit")
	}
}

func TestDenialCallbacks(t *testing.T) {
	var mu sync.Mutex
	firstCount, totalCount := 0, 0
	l := New(t.Context(),
		WithRate(1, 1),
		WithOnFirstDenied(func(ip string) {
			mu.Lock()
			firstCount++
			mu.Unlock()
		}),
		WithOnDenied(func(ip string) {
			mu.Lock()
			totalCount++
			mu.Unlock()
		}),
	)

	l.Allow("10.0.0.1")
	l.Allow("10.0.0.1")
	l.Allow("10.0.0.1")

	mu.Lock()
	defer mu.Unlock()
	if firstCount != 1 {
		t.Fatalf("first denied callbacks = %d, want 1", firstCount)
	}
	if totalCount != 2 {
		t.Fatalf("denied callbacks = %d, want 2", totalCount)
	}
}

func TestMiddlewareReturns429(t *testing.T) {
	l := New(t.Context(), WithRate(1, 1), WithTTL(time.Minute))
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req = req.WithContext(httpmw.WithClientIP(req.Context(), "10.0.0.9"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After header missing")
	}
}
