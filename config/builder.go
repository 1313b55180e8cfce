package config

import (
	"github.com/jpalmerr/pkgmirror"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The logger is not part of the file configuration; callers add
// [pkgmirror.WithLogger] themselves.
func BuildOptions(cfg *Config) []pkgmirror.Option {
	opts := []pkgmirror.Option{
		pkgmirror.WithAPIURL(cfg.APIURL),
		pkgmirror.WithPort(cfg.Port),
		pkgmirror.WithFetchTimeout(cfg.FetchTimeoutDuration()),
		pkgmirror.WithRefreshInterval(cfg.RefreshIntervalDuration()),
	}

	if cfg.Title != "" {
		opts = append(opts, pkgmirror.WithTitle(cfg.Title))
	}

	if len(cfg.APIHeaders) > 0 {
		opts = append(opts, pkgmirror.WithAPIHeaders(cfg.APIHeaders))
	}

	if cfg.Metrics {
		opts = append(opts, pkgmirror.WithMetrics(nil))
	}

	return opts
}
