package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/quarry/internal/httpmw"
	"github.com/keithlinneman/quarry/internal/log"
)

type Options struct {
	Logger log.Logger
	Port   int

	// PanelRoutes mounts the management API under /api.
	PanelRoutes func(chi.Router)

	// SiteRoutes mounts the public site surface. Registered last so it
	// is the fallback behind /api.
	SiteRoutes func(chi.Router)

	UseRecoverMW bool
	OnPanic      func()

	MetricsMW   func(http.Handler) http.Handler
	RateLimitMW func(http.Handler) http.Handler

	ClientIPOpts httpmw.ClientIPOptions

	// ContentInfo feeds the X-Content-Version and X-Content-Hash
	// headers. The snapshot manager implements it.
	ContentInfo httpmw.ContentInfo

	// MaxBodyBytes caps every request body. Must be at least the panel
	// upload limit, which is enforced separately per upload. Default
	// 1 MiB.
	MaxBodyBytes int64
}
