package pkgmirror

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/pkgmirror/internal/poller"
)

// mirrorConfig holds mutable state during Mirror construction.
type mirrorConfig struct {
	title           string
	apiURL          string
	apiHeaders      map[string]string
	port            int
	refreshInterval time.Duration
	fetchTimeout    time.Duration
	logger          *slog.Logger

	metricsEnabled bool
	registry       *prometheus.Registry

	packagesCallbacks   []func([]PackageRecord)
	databaseCallbacks   []func(DatabaseInfo)
	upgradableCallbacks []func(UpgradableDetails)
}

// Option is a function that configures a [Mirror] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*mirrorConfig) error

// WithAPIURL sets the base URL of the MMPM API server.
//
// Defaults to http://localhost:7891. A path component is kept, so an API
// server behind a reverse proxy can be reached at e.g. https://host/mmpm.
//
// Returns an error if the URL is empty or not an absolute http(s) URL.
func WithAPIURL(rawURL string) Option {
	return func(cfg *mirrorConfig) error {
		if rawURL == "" {
			return errors.New("api url cannot be empty")
		}
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid api url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("api url scheme must be http or https, got %q", u.Scheme)
		}
		cfg.apiURL = rawURL
		return nil
	}
}

// WithAPIHeaders adds headers sent with every request to the API server.
//
// Can be called multiple times; later values replace earlier ones for the
// same key.
//
// Example:
//
//	m, err := pkgmirror.New(
//	    pkgmirror.WithAPIHeaders(map[string]string{"Authorization": "Bearer " + token}),
//	)
func WithAPIHeaders(headers map[string]string) Option {
	return func(cfg *mirrorConfig) error {
		if cfg.apiHeaders == nil {
			cfg.apiHeaders = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			if k == "" {
				return errors.New("api header name cannot be empty")
			}
			cfg.apiHeaders[k] = v
		}
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server.
//
// Defaults to 7890, the port the MMPM UI uses.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *mirrorConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithRefreshInterval sets how often the mirrored state is refreshed after
// the initial load. Zero disables periodic refresh, leaving only the load
// during bootstrap and explicit [Mirror.Load] calls.
//
// Defaults to 5 minutes.
//
// Returns an error if the interval is negative or shorter than one second.
func WithRefreshInterval(d time.Duration) Option {
	return func(cfg *mirrorConfig) error {
		if d < 0 {
			return errors.New("refresh interval cannot be negative")
		}
		if d > 0 && d < poller.MinInterval {
			return fmt.Errorf("refresh interval must be at least %s", poller.MinInterval)
		}
		cfg.refreshInterval = d
		return nil
	}
}

// WithFetchTimeout bounds each individual request to the API server. A
// request that exceeds it counts as a failed fetch. Zero removes the bound.
//
// Defaults to 10 seconds.
//
// Returns an error if the timeout is negative.
func WithFetchTimeout(d time.Duration) Option {
	return func(cfg *mirrorConfig) error {
		if d < 0 {
			return errors.New("fetch timeout cannot be negative")
		}
		cfg.fetchTimeout = d
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Mirror instance.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *mirrorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, defaults to "MagicMirror Package Manager".
func WithTitle(title string) Option {
	return func(cfg *mirrorConfig) error {
		cfg.title = title
		return nil
	}
}

// WithMetrics enables Prometheus metrics, registered on reg and served at
// /metrics. A nil reg uses a fresh registry.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(cfg *mirrorConfig) error {
		cfg.metricsEnabled = true
		cfg.registry = reg
		return nil
	}
}

// WithPackagesCallback registers a function called with the package catalog
// once bootstrap has completed and again on every later publish.
//
// Callbacks run on a dedicated goroutine per channel and must not block for
// long: a slow callback skips intermediate values and only sees the latest.
// Panics within callbacks are recovered and logged.
//
// Nil callbacks are silently ignored.
func WithPackagesCallback(cb func([]PackageRecord)) Option {
	return func(cfg *mirrorConfig) error {
		if cb != nil {
			cfg.packagesCallbacks = append(cfg.packagesCallbacks, cb)
		}
		return nil
	}
}

// WithDatabaseInfoCallback registers a function called with the database
// status. See [WithPackagesCallback] for delivery semantics.
func WithDatabaseInfoCallback(cb func(DatabaseInfo)) Option {
	return func(cfg *mirrorConfig) error {
		if cb != nil {
			cfg.databaseCallbacks = append(cfg.databaseCallbacks, cb)
		}
		return nil
	}
}

// WithUpgradableCallback registers a function called with the upgrade
// availability record. See [WithPackagesCallback] for delivery semantics.
func WithUpgradableCallback(cb func(UpgradableDetails)) Option {
	return func(cfg *mirrorConfig) error {
		if cb != nil {
			cfg.upgradableCallbacks = append(cfg.upgradableCallbacks, cb)
		}
		return nil
	}
}

func copyHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	return maps.Clone(h)
}
