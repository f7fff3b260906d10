package cfg

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/keithlinneman/quarry/internal/log"
)

type App struct {
	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	ProjectDir string
	BaseURL    string

	HTTPPort    int
	AdminPort   int
	TrustedHops int

	EnableWatch   bool
	WatchDebounce time.Duration

	SessionTTL   time.Duration
	CookieSecure bool
	MaxUploadMB  int

	RateLimitRPS   float64
	RateLimitBurst int
	LoginRPS       float64
	LoginBurst     int

	EnablePprof     bool
	EnablePyroscope bool
	EnableTracing   bool
	PyroServer      string
	PyroTenantID    string
	OTLPEndpoint    string
	TraceSample     float64

	EnableBundlePull bool
	BundleSSMParam   string
	BundleS3Bucket   string
	BundleS3Prefix   string
	BundleKeyARN     string
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *pflag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")

	fs.StringVar(&c.ProjectDir, "project", ".", "project directory (content/, users/, blueprints/)")
	fs.StringVar(&c.BaseURL, "base-url", "", "public base URL for page and media links")

	fs.IntVar(&c.HTTPPort, "http-port", 8080, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.IntVar(&c.TrustedHops, "trusted-hops", 0, "trusted reverse proxies in front of the server")

	fs.BoolVar(&c.EnableWatch, "enable-watch", true, "Reload content when project files change")
	fs.DurationVar(&c.WatchDebounce, "watch-debounce", 300*time.Millisecond, "quiet period before a change triggers a reload")

	fs.DurationVar(&c.SessionTTL, "session-ttl", 24*time.Hour, "panel session lifetime")
	fs.BoolVar(&c.CookieSecure, "cookie-secure", false, "set Secure on the panel session cookie")
	fs.IntVar(&c.MaxUploadMB, "max-upload-mb", 100, "max single upload size in MiB (1..4096)")

	fs.Float64Var(&c.RateLimitRPS, "rate-limit-rps", 20, "per-IP request rate (0 disables)")
	fs.IntVar(&c.RateLimitBurst, "rate-limit-burst", 40, "per-IP request burst")
	fs.Float64Var(&c.LoginRPS, "login-rps", 0.5, "per-IP login attempt rate (0 disables)")
	fs.IntVar(&c.LoginBurst, "login-burst", 5, "per-IP login attempt burst")

	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in --pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")

	fs.BoolVar(&c.EnableBundlePull, "enable-bundle-pull", false, "Serve a published content bundle instead of a local project")
	fs.StringVar(&c.BundleSSMParam, "bundle-ssm-param", "", "ssm parameter name holding the current bundle id")
	fs.StringVar(&c.BundleS3Bucket, "bundle-s3-bucket", "", "s3 bucket name to get content bundles from")
	fs.StringVar(&c.BundleS3Prefix, "bundle-s3-prefix", "", "s3 prefix (key) to get content bundles from")
	fs.StringVar(&c.BundleKeyARN, "bundle-signing-key-arn", "", "KMS key ARN for bundle signature verification")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *pflag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *pflag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *pflag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag --%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag --%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	// Ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	// Log levels
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}
	if c.IncludeErrorLinks {
		if c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64 {
			errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
		}
	}

	if c.ProjectDir == "" {
		errs = append(errs, fmt.Errorf("PROJECT is required"))
	}
	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("BASE_URL must be a URL (got %q)", c.BaseURL))
		}
	}

	if c.TrustedHops < 0 || c.TrustedHops > 16 {
		errs = append(errs, fmt.Errorf("TRUSTED_HOPS must be 0..16 (got %d)", c.TrustedHops))
	}
	if c.EnableWatch && c.WatchDebounce <= 0 {
		errs = append(errs, fmt.Errorf("WATCH_DEBOUNCE must be positive (got %s)", c.WatchDebounce))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be positive (got %s)", c.SessionTTL))
	}
	if c.MaxUploadMB < 1 || c.MaxUploadMB > 4096 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_MB must be 1..4096 (got %d)", c.MaxUploadMB))
	}

	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must not be negative (got %g)", c.RateLimitRPS))
	}
	if c.LoginRPS < 0 {
		errs = append(errs, fmt.Errorf("LOGIN_RPS must not be negative (got %g)", c.LoginRPS))
	}

	// Tracing sample
	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	// Pyroscope (URL and scheme)
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// OTLP tracing (grpc exporter wants host:port, no scheme)
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	if c.EnableBundlePull {
		if c.BundleSSMParam == "" {
			errs = append(errs, fmt.Errorf("BUNDLE_SSM_PARAM is required when ENABLE_BUNDLE_PULL=true"))
		}
		if c.BundleS3Bucket == "" {
			errs = append(errs, fmt.Errorf("BUNDLE_S3_BUCKET is required when ENABLE_BUNDLE_PULL=true"))
		}
		if c.BundleKeyARN == "" {
			errs = append(errs, fmt.Errorf("BUNDLE_SIGNING_KEY_ARN is required when ENABLE_BUNDLE_PULL=true"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
