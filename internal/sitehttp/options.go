package sitehttp

import (
	"io/fs"

	"github.com/keithlinneman/quarry/internal/log"
	"github.com/keithlinneman/quarry/internal/model"
	"github.com/keithlinneman/quarry/internal/xerrors"
)

type Options struct {
	Logger log.Logger

	// Manager provides the active snapshot.
	Manager *model.Manager

	// ProjectFS serves media bytes. It is the project root, so asset
	// paths from the snapshot resolve directly.
	ProjectFS fs.FS

	// FallbackFS holds the maintenance and 404 pages.
	FallbackFS fs.FS

	MaintenanceFile string // default "maintenance.html"
	NotFoundFile    string // default "404.html"

	// Cache policies.
	PageCacheControl  string // default "no-cache"
	MediaCacheControl string // default "public, max-age=31536000, immutable"
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.MaintenanceFile == "" {
		o.MaintenanceFile = "maintenance.html"
	}
	if o.NotFoundFile == "" {
		o.NotFoundFile = "404.html"
	}
	if o.PageCacheControl == "" {
		o.PageCacheControl = "no-cache"
	}
	if o.MediaCacheControl == "" {
		o.MediaCacheControl = "public, max-age=31536000, immutable"
	}
}

func (o *Options) validate() error {
	if o.Manager == nil {
		return xerrors.New("sitehttp: Manager is nil")
	}
	if o.ProjectFS == nil {
		return xerrors.New("sitehttp: ProjectFS is nil")
	}
	if o.FallbackFS == nil {
		return xerrors.New("sitehttp: FallbackFS is nil")
	}
	// fail fast on boot if the maintenance page got mispackaged
	if _, err := fs.Stat(o.FallbackFS, o.MaintenanceFile); err != nil {
		return xerrors.Wrapf(err, "sitehttp: missing %q in fallback FS", o.MaintenanceFile)
	}
	return nil
}
