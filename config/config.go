// Package config provides YAML configuration parsing for pkgmirror.
//
// This package enables running pkgmirror as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Living Room Mirror
//	port: 7890
//	api_url: http://raspberrypi.local:7891
//	api_headers:
//	  Authorization: "Bearer ${MMPM_TOKEN:-}"
//	fetch_timeout: 10s
//	refresh_interval: 5m
//	log_level: info
//	metrics: true
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort            = 7890
	defaultAPIURL          = "http://localhost:7891"
	defaultFetchTimeout    = 10 * time.Second
	defaultRefreshInterval = 5 * time.Minute
	defaultLogLevel        = "info"

	// minRefreshInterval keeps periodic refresh from hammering the API server.
	minRefreshInterval = 1 * time.Second
)

// Config is the root configuration structure for pkgmirror.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "MagicMirror Package Manager"
	// at render time if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 7890.
	Port int `yaml:"port"`

	// APIURL is the base URL of the MMPM API server.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	// Defaults to http://localhost:7891.
	APIURL string `yaml:"api_url"`

	// APIHeaders are sent with every request to the API server.
	// Values support environment variable substitution.
	APIHeaders map[string]string `yaml:"api_headers"`

	// FetchTimeout bounds each request to the API server. "0s" disables the
	// bound. Defaults to 10s.
	FetchTimeout *Duration `yaml:"fetch_timeout"`

	// RefreshInterval is the time between refreshes after startup. "0s"
	// disables periodic refresh. Defaults to 5m.
	RefreshInterval *Duration `yaml:"refresh_interval"`

	// LogLevel is one of debug, info, warn or error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// Metrics enables the Prometheus endpoint at /metrics.
	Metrics bool `yaml:"metrics"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// FetchTimeoutDuration returns the effective fetch timeout.
func (c *Config) FetchTimeoutDuration() time.Duration {
	if c.FetchTimeout == nil {
		return defaultFetchTimeout
	}
	return c.FetchTimeout.Duration()
}

// RefreshIntervalDuration returns the effective refresh interval.
func (c *Config) RefreshIntervalDuration() time.Duration {
	if c.RefreshInterval == nil {
		return defaultRefreshInterval
	}
	return c.RefreshInterval.Duration()
}

// Level returns the configured log level as a [slog.Level].
func (c *Config) Level() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

// SetLogLevel replaces the configured log level, validating it the way
// [Parse] does.
func (c *Config) SetLogLevel(level string) error {
	if _, err := parseLevel(level); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	c.LogLevel = strings.ToLower(level)
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (expected debug, info, warn or error)", s)
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Unknown keys are rejected. Environment variables are expanded in APIURL
// and APIHeaders values. Defaults are applied for Port, APIURL and LogLevel;
// FetchTimeout and RefreshInterval fall back to their defaults through
// [Config.FetchTimeoutDuration] and [Config.RefreshIntervalDuration].
// An empty document yields the default configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	expanded, err := expandEnvVars(c.APIURL)
	if err != nil {
		return fmt.Errorf("api_url: %w", err)
	}
	c.APIURL = expanded

	parsedURL, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("invalid api_url: %w", err)
	}
	if parsedURL.Scheme == "" {
		return errors.New("api_url must have a scheme (http:// or https://)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("api_url scheme must be http or https, got %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return errors.New("api_url must include a host")
	}

	for k, v := range c.APIHeaders {
		if k == "" {
			return errors.New("api_headers: header name cannot be empty")
		}
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("api_headers[%s]: %w", k, err)
		}
		c.APIHeaders[k] = expanded
	}

	if c.FetchTimeout != nil && c.FetchTimeout.Duration() < 0 {
		return fmt.Errorf("fetch_timeout cannot be negative, got %s", c.FetchTimeout.Duration())
	}

	if c.RefreshInterval != nil {
		d := c.RefreshInterval.Duration()
		if d < 0 {
			return fmt.Errorf("refresh_interval cannot be negative, got %s", d)
		}
		if d > 0 && d < minRefreshInterval {
			return fmt.Errorf("refresh_interval must be 0 or at least %s, got %s", minRefreshInterval, d)
		}
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	return nil
}
