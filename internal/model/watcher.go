package model

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/keithlinneman/quarry/internal/log"
	"github.com/keithlinneman/quarry/internal/xerrors"
)

const defaultDebounce = 300 * time.Millisecond

// WatcherMetrics receives reload outcomes. Implementations must be
// safe for concurrent use.
type WatcherMetrics interface {
	ReloadSucceeded(d time.Duration)
	ReloadFailed(reason string)
}

// WatcherOptions configure a project directory watcher.
type WatcherOptions struct {
	// ProjectRoot is the absolute path of the project directory.
	ProjectRoot string
	Loader      *Loader
	Manager     *Manager
	Validate    ValidateOptions
	Logger      log.Logger
	Metrics     WatcherMetrics
	// Debounce is how long to wait after the last filesystem event
	// before reloading. Editors and sync tools fire bursts.
	Debounce time.Duration
	// OnSwap runs after a new snapshot is installed.
	OnSwap func(snap *Snapshot)
}

// Watcher reloads the project whenever files under content/, users/ or
// blueprints/ change. A reload that fails to load or validate is
// logged and dropped; the active snapshot stays in place.
type Watcher struct {
	opts WatcherOptions
}

func NewWatcher(opts WatcherOptions) (*Watcher, error) {
	if opts.ProjectRoot == "" {
		return nil, xerrors.New("watcher: project root is required")
	}
	if opts.Loader == nil || opts.Manager == nil {
		return nil, xerrors.New("watcher: loader and manager are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	return &Watcher{opts: opts}, nil
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return xerrors.Wrap(err, "creating filesystem watcher")
	}
	defer fsw.Close()

	for _, sub := range []string{contentDirname, usersDirname, blueprintsDirname} {
		root := filepath.Join(w.opts.ProjectRoot, sub)
		if _, err := os.Stat(root); err != nil {
			continue
		}
		if err := addRecursive(fsw, root); err != nil {
			return xerrors.Wrapf(err, "watching %s", root)
		}
	}

	w.opts.Logger.Info(ctx, "watching project for changes",
		"root", w.opts.ProjectRoot, "debounce", w.opts.Debounce.String())

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return xerrors.New("filesystem watcher closed")
			}
			if ignoreEvent(event) {
				continue
			}
			// New directories need their own watch before the
			// debounce fires, or we miss writes inside them.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = addRecursive(fsw, event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.opts.Debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return xerrors.New("filesystem watcher closed")
			}
			w.opts.Logger.Warn(ctx, "filesystem watcher error", "error", err.Error())

		case <-timerC:
			timer, timerC = nil, nil
			w.reload(ctx)
		}
	}
}

// Reload loads, validates and swaps in a new snapshot immediately.
// Used for the initial load and exposed for manual reload triggers.
func (w *Watcher) Reload(ctx context.Context) error {
	return w.reload(ctx)
}

func (w *Watcher) reload(ctx context.Context) error {
	start := time.Now()

	snap, err := w.opts.Loader.Load(ctx)
	if err != nil {
		err = xerrors.EnsureTrace(err)
		w.opts.Logger.Error(ctx, err, "content reload failed, keeping active snapshot")
		if w.opts.Metrics != nil {
			w.opts.Metrics.ReloadFailed("load")
		}
		return err
	}
	if err := Validate(snap, w.opts.Validate); err != nil {
		w.opts.Logger.Error(ctx, err, "content reload rejected by validation, keeping active snapshot")
		if w.opts.Metrics != nil {
			w.opts.Metrics.ReloadFailed("validate")
		}
		return err
	}

	old := w.opts.Manager.Swap(snap)
	elapsed := time.Since(start)
	if w.opts.Metrics != nil {
		w.opts.Metrics.ReloadSucceeded(elapsed)
	}

	attrs := []any{
		"hash", snap.Meta.Hash,
		"pages", snap.PageCount(),
		"users", len(snap.Users),
		"elapsed", elapsed.String(),
	}
	if old != nil {
		attrs = append(attrs, "replaced_hash", old.Meta.Hash)
	}
	w.opts.Logger.Info(ctx, "content snapshot swapped", attrs...)

	if w.opts.OnSwap != nil {
		w.opts.OnSwap(snap)
	}
	return nil
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); strings.HasPrefix(name, ".") && path != root {
			return fs.SkipDir
		}
		return fsw.Add(path)
	})
}

// ignoreEvent drops editor temp and hidden files so saves via
// write-temp-then-rename do not double-fire.
func ignoreEvent(ev fsnotify.Event) bool {
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".tmp") {
		return true
	}
	return ev.Op == fsnotify.Chmod
}
