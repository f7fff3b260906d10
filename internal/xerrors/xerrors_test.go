package xerrors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewCapturesStack(t *testing.T) {
	err := New("boom")
	hs, ok := err.(interface{ StackPCs() []uintptr })
	if !ok {
		t.Fatalf("New did not return a stacked error")
	}
	if len(hs.StackPCs()) == 0 {
		t.Error("expected non-empty stack")
	}
	if err.Error() != "boom" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should be nil")
	}
	if WithStack(nil) != nil {
		t.Error("WithStack(nil) should be nil")
	}
	if EnsureTrace(nil) != nil {
		t.Error("EnsureTrace(nil) should be nil")
	}
}

func TestWrapMessageAndUnwrap(t *testing.T) {
	base := errors.New("open content file")
	err := Wrap(base, "load page")
	if got := err.Error(); got != "load page: open content file" {
		t.Errorf("unexpected message %q", got)
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error should unwrap to base")
	}
}

func TestWrapfFormats(t *testing.T) {
	err := Wrapf(errors.New("x"), "page %s", "photography/sunset")
	if !strings.Contains(err.Error(), "photography/sunset") {
		t.Errorf("missing formatted arg in %q", err.Error())
	}
}

func TestEnsureTraceIdempotent(t *testing.T) {
	inner := New("already stacked")
	wrapped := fmt.Errorf("outer: %w", inner)
	if got := EnsureTrace(wrapped); got != wrapped {
		t.Error("EnsureTrace should not re-stack an error whose chain has a stack")
	}

	plain := errors.New("plain")
	got := EnsureTrace(plain)
	if got == plain {
		t.Error("EnsureTrace should stack a plain error")
	}
	if !errors.Is(got, plain) {
		t.Error("stacked error should unwrap to original")
	}
}
