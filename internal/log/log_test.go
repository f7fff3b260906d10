package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/keithlinneman/quarry/internal/xerrors"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err=%v, wantErr=%v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseLevel(%q)=%v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJSONOutputIncludesAppAndFields(t *testing.T) {
	var buf bytes.Buffer
	lg, err := New(Options{App: "quarry", JsonFormat: true, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	lg.Info(context.Background(), "content loaded", "pages", 12)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if rec["app"] != "quarry" {
		t.Errorf("missing app attr: %v", rec)
	}
	if rec["msg"] != "content loaded" {
		t.Errorf("missing msg: %v", rec)
	}
	if rec["pages"] != float64(12) {
		t.Errorf("missing kv pair: %v", rec)
	}
}

func TestErrorChainAttached(t *testing.T) {
	var buf bytes.Buffer
	lg, err := New(Options{App: "quarry", JsonFormat: true, IncludeErrorLinks: true, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	inner := xerrors.New("content file missing")
	outer := xerrors.Wrap(inner, "load page photography")
	lg.Error(context.Background(), outer, "reload failed")

	out := buf.String()
	if !strings.Contains(out, "error_chain") {
		t.Errorf("expected error_chain in output: %s", out)
	}
	if !strings.Contains(out, "content file missing") {
		t.Errorf("expected root cause in output: %s", out)
	}
	if !strings.Contains(out, "stack") {
		t.Errorf("expected stack for error-level record: %s", out)
	}
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	lg, _ := New(Options{App: "quarry", JsonFormat: true, Writer: &buf})
	child := lg.With("component", "watcher")
	_ = child

	buf.Reset()
	lg.Info(context.Background(), "parent message")
	if strings.Contains(buf.String(), "watcher") {
		t.Error("parent logger inherited child attrs")
	}
}

func TestFromContextFallsBackToNop(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil {
		t.Fatal("FromContext returned nil")
	}
	// must not panic
	l.Info(context.Background(), "ignored")

	lg, _ := New(Options{App: "quarry", JsonFormat: true, Writer: &bytes.Buffer{}})
	ctx := WithContext(context.Background(), lg)
	if FromContext(ctx) != lg {
		t.Error("FromContext did not return the stored logger")
	}
}
