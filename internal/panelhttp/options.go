package panelhttp

import (
	"context"
	"time"

	"github.com/keithlinneman/quarry/internal/auth"
	"github.com/keithlinneman/quarry/internal/log"
	"github.com/keithlinneman/quarry/internal/model"
	"github.com/keithlinneman/quarry/internal/ratelimit"
	"github.com/keithlinneman/quarry/internal/store"
	"github.com/keithlinneman/quarry/internal/xerrors"
)

// AuthMetrics receives authentication outcomes. Satisfied by
// metrics.ServerMetrics.
type AuthMetrics interface {
	IncAuthDenied(reason string)
}

type nopAuthMetrics struct{}

func (nopAuthMetrics) IncAuthDenied(string) {}

type Options struct {
	Logger log.Logger

	// Manager provides the active snapshot.
	Manager *model.Manager

	// Store applies mutations to the project on disk.
	Store *store.Store

	// Sessions tracks panel login sessions.
	Sessions *auth.Sessions

	// Reload rebuilds the snapshot after a mutation so the response
	// reflects the new state. Usually Watcher.Reload.
	Reload func(ctx context.Context) error

	// LoginLimiter throttles login attempts per client IP. Optional;
	// nil disables throttling (tests).
	LoginLimiter *ratelimit.IPLimiter

	Metrics AuthMetrics

	CookieName   string        // default "quarry_session"
	CookieSecure bool          // set Secure on the session cookie
	SessionTTL   time.Duration // default auth.DefaultSessionTTL

	// MaxUploadBytes caps a single file upload. Default 100 MiB.
	MaxUploadBytes int64
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.Metrics == nil {
		o.Metrics = nopAuthMetrics{}
	}
	if o.CookieName == "" {
		o.CookieName = "quarry_session"
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = auth.DefaultSessionTTL
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 100 << 20
	}
}

func (o *Options) validate() error {
	if o.Manager == nil {
		return xerrors.New("panelhttp: Manager is nil")
	}
	if o.Store == nil {
		return xerrors.New("panelhttp: Store is nil")
	}
	if o.Sessions == nil {
		return xerrors.New("panelhttp: Sessions is nil")
	}
	if o.Reload == nil {
		return xerrors.New("panelhttp: Reload is nil")
	}
	return nil
}
