package opshttp

import (
	"net/http"

	"github.com/keithlinneman/quarry/internal/probe"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      probe.Probe
	Readiness   probe.Probe
	OnPanic     func() // Optional callback for when panics are recovered, e.g. to increment prometheus counters.
}
