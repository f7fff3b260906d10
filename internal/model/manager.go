package model

import (
	"sync/atomic"

	"github.com/keithlinneman/quarry/internal/xerrors"
)

// Manager holds the currently-active snapshot behind an atomic pointer.
// Readers get a consistent view for the lifetime of a request; reloads
// swap the pointer only after the new snapshot validates.
type Manager struct {
	current atomic.Pointer[Snapshot]
}

func NewManager() *Manager { return &Manager{} }

// Current returns the active snapshot, or nil before the first load.
func (m *Manager) Current() *Snapshot { return m.current.Load() }

// Swap installs a new snapshot and returns the one it replaced.
func (m *Manager) Swap(snap *Snapshot) *Snapshot { return m.current.Swap(snap) }

// Ready reports whether a snapshot is installed.
func (m *Manager) Ready() bool { return m.current.Load() != nil }

// ReadyErr is Ready as an error, for readiness probes.
func (m *Manager) ReadyErr() error {
	if m.current.Load() == nil {
		return xerrors.New("no content snapshot loaded")
	}
	return nil
}

// ContentHash returns the active snapshot's hash, or "" when none is
// loaded. Implements the response-header content info used by the HTTP
// middleware.
func (m *Manager) ContentHash() string {
	if snap := m.current.Load(); snap != nil {
		return snap.Meta.Hash
	}
	return ""
}

// ContentVersion returns the active snapshot's version string, or "".
func (m *Manager) ContentVersion() string {
	if snap := m.current.Load(); snap != nil {
		return snap.Meta.Version
	}
	return ""
}
