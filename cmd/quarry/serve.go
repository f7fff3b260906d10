package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/spf13/cobra"

	"github.com/keithlinneman/quarry/internal/auth"
	"github.com/keithlinneman/quarry/internal/bundle"
	"github.com/keithlinneman/quarry/internal/cfg"
	"github.com/keithlinneman/quarry/internal/cryptoutil"
	"github.com/keithlinneman/quarry/internal/httpmw"
	"github.com/keithlinneman/quarry/internal/httpserver"
	"github.com/keithlinneman/quarry/internal/log"
	"github.com/keithlinneman/quarry/internal/metrics"
	"github.com/keithlinneman/quarry/internal/model"
	"github.com/keithlinneman/quarry/internal/opshttp"
	"github.com/keithlinneman/quarry/internal/otelx"
	"github.com/keithlinneman/quarry/internal/panelhttp"
	"github.com/keithlinneman/quarry/internal/probe"
	"github.com/keithlinneman/quarry/internal/prof"
	"github.com/keithlinneman/quarry/internal/ratelimit"
	"github.com/keithlinneman/quarry/internal/sitehttp"
	"github.com/keithlinneman/quarry/internal/store"
	v "github.com/keithlinneman/quarry/internal/version"
	"github.com/keithlinneman/quarry/internal/webassets"
)

func newServeCmd(conf *cfg.App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the site and the panel API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, conf)
		},
	}
}

func runServe(cmd *cobra.Command, conf *cfg.App) error {
	ctx := cmd.Context()

	vi := v.Get()

	// Project-level config fills in anything not set on the CLI or env.
	proj, err := cfg.LoadProject(conf.ProjectDir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", cfg.ProjectFile, err)
	}
	flags := cmd.Root().PersistentFlags()
	proj.ApplyTo(conf, flags.Changed)

	if err := cfg.Validate(*conf); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	lg, err := newLogger(conf)
	if err != nil {
		return err
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing server",
		"version", vi.Version,
		"commit", vi.Commit,
		"go_version", vi.GoVersion,
		"project_dir", conf.ProjectDir,
		"base_url", conf.BaseURL,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"enable_watch", conf.EnableWatch,
		"enable_bundle_pull", conf.EnableBundlePull,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
	)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": "server",
			"version":   vi.Version,
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer stopProf()

	// Insecure is fine: the collector is expected on localhost.
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:  conf.EnableTracing,
		Endpoint: conf.OTLPEndpoint,
		Insecure: true,
		Sample:   conf.TraceSample,
		Service:  v.AppName,
		Version:  vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", &vi)
	m.SetProfilingActive(conf.EnablePyroscope)

	// Resolve what we serve: a local project directory, or a published
	// bundle pulled down and extracted. In bundle mode the extracted
	// tree is immutable, so the filesystem watcher stays off and a
	// poller swaps in new bundles as they are published.
	projectDir := conf.ProjectDir
	source := "disk"
	version := ""
	watchFiles := conf.EnableWatch

	var puller *bundle.Puller
	var bundleHash string
	if conf.EnableBundlePull {
		puller, err = newPuller(ctx, L, conf)
		if err != nil {
			return err
		}
		dir, manifest, hash, err := puller.Pull(ctx)
		if err != nil {
			L.Error(ctx, err, "bundle pull failed")
			return err
		}
		projectDir = dir
		source = "bundle"
		version = manifest.Version
		bundleHash = hash
		watchFiles = false
		L.Info(ctx, "serving pulled bundle",
			"bundle_hash", hash,
			"bundle_version", manifest.Version,
			"extract_dir", dir,
		)
	}

	absRoot, err := filepath.Abs(projectDir)
	if err != nil {
		return fmt.Errorf("resolving project dir: %w", err)
	}

	// projectFS indirects so a newly pulled bundle can swap the backing
	// directory without rebuilding the handler stack.
	projectFS := &swapFS{}
	projectFS.set(os.DirFS(absRoot))

	loader := model.NewLoader(projectFS, model.LoadOptions{
		BaseURL: conf.BaseURL,
		Source:  source,
		Version: version,
	})
	manager := model.NewManager()
	m.SetContentSource(source)

	watcher, err := model.NewWatcher(model.WatcherOptions{
		ProjectRoot: absRoot,
		Loader:      loader,
		Manager:     manager,
		Validate:    model.ValidateOptions{RequireUsers: true},
		Logger:      L,
		Metrics:     m,
		Debounce:    conf.WatchDebounce,
		OnSwap: func(snap *model.Snapshot) {
			m.SetSnapshot(snap.Meta.Hash, snap.LoadedAt, snap.PageCount())
		},
	})
	if err != nil {
		return err
	}

	// First load must succeed: serving with no snapshot means every
	// page is a maintenance page.
	if err := watcher.Reload(ctx); err != nil {
		L.Error(ctx, err, "initial content load failed", "project_dir", absRoot)
		return err
	}
	snap := manager.Current()
	L.Info(ctx, "content loaded",
		"content_hash", manager.ContentHash(),
		"pages", snap.PageCount(),
		"users", len(snap.Users),
	)

	st, err := store.New(absRoot, L)
	if err != nil {
		return err
	}

	sessions := auth.NewSessions(conf.SessionTTL)
	go sessions.Sweep(ctx)

	var loginLimiter *ratelimit.IPLimiter
	if conf.LoginRPS > 0 {
		loginLimiter = ratelimit.New(ctx,
			ratelimit.WithRate(conf.LoginRPS, conf.LoginBurst),
			ratelimit.WithOnFirstDenied(func(ip string) {
				L.Warn(ctx, "login rate limit triggered", "ip", ip)
			}),
		)
	}

	panelHandler, err := panelhttp.New(&panelhttp.Options{
		Logger:         L,
		Manager:        manager,
		Store:          st,
		Sessions:       sessions,
		Reload:         watcher.Reload,
		LoginLimiter:   loginLimiter,
		Metrics:        m,
		CookieSecure:   conf.CookieSecure,
		SessionTTL:     conf.SessionTTL,
		MaxUploadBytes: int64(conf.MaxUploadMB) << 20,
	})
	if err != nil {
		return err
	}

	siteHandler, err := sitehttp.New(&sitehttp.Options{
		Logger:     L,
		Manager:    manager,
		ProjectFS:  projectFS,
		FallbackFS: webassets.FallbackFS(),
	})
	if err != nil {
		return err
	}

	var gate probe.ShutdownGate
	readiness := probe.All(
		gate.Probe(),
		probe.Func(func(ctx context.Context) error {
			return manager.ReadyErr()
		}),
	)

	var siteLimiter *ratelimit.IPLimiter
	if conf.RateLimitRPS > 0 {
		siteLimiter = ratelimit.New(ctx,
			ratelimit.WithRate(conf.RateLimitRPS, conf.RateLimitBurst),
			ratelimit.WithOnDenied(func(ip string) {
				m.IncRateLimitDenied()
			}),
			ratelimit.WithOnFirstDenied(func(ip string) {
				L.Warn(ctx, "rate limit triggered", "ip", ip)
			}),
		)
	}

	httpOpts := &httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		PanelRoutes:  panelHandler.RegisterRoutes,
		SiteRoutes:   siteHandler.RegisterRoutes,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedHops},
		ContentInfo:  manager,
		// One MiB above the upload cap so multipart framing never
		// trips the global body limit before the upload check does.
		MaxBodyBytes: int64(conf.MaxUploadMB+1) << 20,
	}
	if siteLimiter != nil {
		httpOpts.RateLimitMW = siteLimiter.Middleware
	}

	siteStop, err := httpserver.Start(ctx, httpOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start http listener", "port", conf.HTTPPort)
		return err
	}
	defer func() { _ = siteStop(context.Background()) }()

	opsStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      probe.Static(true, ""),
		Readiness:   readiness,
		OnPanic:     m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start admin listener", "port", conf.AdminPort)
		return err
	}
	defer func() { _ = opsStop(context.Background()) }()

	if watchFiles {
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				L.Error(ctx, err, "filesystem watcher stopped")
			}
		}()
	}
	if puller != nil {
		go pollBundles(ctx, L, puller, projectFS, watcher, bundleHash)
	}

	L.Info(ctx, "server ready",
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
	)

	<-ctx.Done()
	L.Info(context.Background(), "shutdown signal received")

	// Fail readiness first so a load balancer stops sending traffic,
	// then give in-flight requests a moment. A second signal skips the
	// drain.
	gate.Set("draining")
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(10 * time.Second):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := siteStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "http server shutdown")
	}
	if err := opsStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "admin server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}
	stopProf()

	L.Info(context.Background(), "shutdown complete")
	return nil
}

func newPuller(ctx context.Context, L log.Logger, conf *cfg.App) (*bundle.Puller, error) {
	opts := bundle.PullOptions{
		Logger:   L,
		SSMParam: conf.BundleSSMParam,
		S3Bucket: conf.BundleS3Bucket,
		S3Prefix: conf.BundleS3Prefix,
	}
	if conf.BundleKeyARN != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		opts.Verifier = cryptoutil.NewKMSVerifier(kms.NewFromConfig(awsCfg), conf.BundleKeyARN)
	}
	return bundle.NewPuller(ctx, opts)
}

const bundlePollInterval = 30 * time.Second

// pollBundles watches the SSM parameter for a new published bundle.
// A new hash is pulled, extracted and swapped in; if the new tree
// fails to load or validate, the previous directory and snapshot stay
// active.
func pollBundles(ctx context.Context, L log.Logger, puller *bundle.Puller, pfs *swapFS, watcher *model.Watcher, current string) {
	ticker := time.NewTicker(bundlePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		hash, err := puller.CurrentHash(ctx)
		if err != nil {
			L.Warn(ctx, "bundle poll failed", "error", err)
			continue
		}
		if hash == current {
			continue
		}
		L.Info(ctx, "new bundle published", "bundle_hash", hash, "previous", current)

		dir, _, err := puller.PullHash(ctx, hash)
		if err != nil {
			L.Error(ctx, err, "bundle pull failed", "bundle_hash", hash)
			continue
		}

		prev := pfs.get()
		pfs.set(os.DirFS(dir))
		if err := watcher.Reload(ctx); err != nil {
			pfs.set(prev)
			L.Error(ctx, err, "pulled bundle failed validation, keeping previous", "bundle_hash", hash)
			continue
		}
		current = hash
		L.Info(ctx, "bundle swapped", "bundle_hash", hash, "extract_dir", dir)
	}
}

// swapFS is an fs.FS whose backing filesystem can be replaced at
// runtime. Reads during a swap see either the old or the new tree.
type swapFS struct {
	v atomic.Value // fs.FS
}

func (s *swapFS) set(fsys fs.FS) { s.v.Store(fsys) }
func (s *swapFS) get() fs.FS     { return s.v.Load().(fs.FS) }

func (s *swapFS) Open(name string) (fs.File, error) {
	return s.get().Open(name)
}
