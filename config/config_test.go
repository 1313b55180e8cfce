package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Port != 7890 {
		t.Errorf("Port = %d, want 7890", cfg.Port)
	}
	if cfg.APIURL != "http://localhost:7891" {
		t.Errorf("APIURL = %q, want http://localhost:7891", cfg.APIURL)
	}
	if cfg.FetchTimeoutDuration() != 10*time.Second {
		t.Errorf("FetchTimeoutDuration() = %v, want 10s", cfg.FetchTimeoutDuration())
	}
	if cfg.RefreshIntervalDuration() != 5*time.Minute {
		t.Errorf("RefreshIntervalDuration() = %v, want 5m", cfg.RefreshIntervalDuration())
	}
	if cfg.Level() != slog.LevelInfo {
		t.Errorf("Level() = %v, want INFO", cfg.Level())
	}
	if cfg.Metrics {
		t.Error("Metrics = true, want false by default")
	}
	if cfg.Title != "" {
		t.Errorf("Title = %q, want empty string", cfg.Title)
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
title: Living Room Mirror
port: 9090
api_url: https://mirror.example.com/mmpm
api_headers:
  Authorization: Bearer token123
  X-Custom: value
fetch_timeout: 3s
refresh_interval: 30s
log_level: debug
metrics: true
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Title != "Living Room Mirror" {
		t.Errorf("Title = %q, want %q", cfg.Title, "Living Room Mirror")
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.APIURL != "https://mirror.example.com/mmpm" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.APIHeaders["Authorization"] != "Bearer token123" {
		t.Errorf("APIHeaders[Authorization] = %q, want %q", cfg.APIHeaders["Authorization"], "Bearer token123")
	}
	if cfg.FetchTimeoutDuration() != 3*time.Second {
		t.Errorf("FetchTimeoutDuration() = %v, want 3s", cfg.FetchTimeoutDuration())
	}
	if cfg.RefreshIntervalDuration() != 30*time.Second {
		t.Errorf("RefreshIntervalDuration() = %v, want 30s", cfg.RefreshIntervalDuration())
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v, want DEBUG", cfg.Level())
	}
	if !cfg.Metrics {
		t.Error("Metrics = false, want true")
	}
}

func TestParse_ZeroDurationsDisable(t *testing.T) {
	yaml := `
fetch_timeout: 0s
refresh_interval: 0s
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.FetchTimeoutDuration() != 0 {
		t.Errorf("FetchTimeoutDuration() = %v, want 0", cfg.FetchTimeoutDuration())
	}
	if cfg.RefreshIntervalDuration() != 0 {
		t.Errorf("RefreshIntervalDuration() = %v, want 0", cfg.RefreshIntervalDuration())
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	// t.Setenv auto-restores after test (Go 1.17+)
	t.Setenv("TEST_MMPM_HOST", "raspberrypi.local")
	t.Setenv("TEST_MMPM_TOKEN", "secret123")

	yaml := `
api_url: http://${TEST_MMPM_HOST}:7891
api_headers:
  Authorization: "Bearer ${TEST_MMPM_TOKEN}"
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.APIURL != "http://raspberrypi.local:7891" {
		t.Errorf("APIURL = %q, want http://raspberrypi.local:7891", cfg.APIURL)
	}
	if cfg.APIHeaders["Authorization"] != "Bearer secret123" {
		t.Errorf("APIHeaders[Authorization] = %q, want 'Bearer secret123'", cfg.APIHeaders["Authorization"])
	}
}

func TestParse_EnvVarDefault(t *testing.T) {
	// UNSET_VAR is expected to not exist in the environment
	yaml := `
api_url: http://${UNSET_VAR:-fallback.local}:7891
api_headers:
  Authorization: "${UNSET_TOKEN:-}"
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.APIURL != "http://fallback.local:7891" {
		t.Errorf("APIURL = %q, want http://fallback.local:7891", cfg.APIURL)
	}
	if v, ok := cfg.APIHeaders["Authorization"]; !ok || v != "" {
		t.Errorf("APIHeaders[Authorization] = %q (present %v), want empty string", v, ok)
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	// MISSING_VAR is expected to not exist in the environment
	yaml := `
api_url: http://${MISSING_VAR}:7891
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var, got nil")
	}
	if !strings.Contains(err.Error(), "MISSING_VAR") {
		t.Errorf("error should mention MISSING_VAR: %v", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"port too high", "port: 70000", "port must be between"},
		{"port negative", "port: -1", "port must be between"},
		{"api_url without scheme", "api_url: localhost:7891", "scheme must be http or https"},
		{"api_url bare host", "api_url: raspberrypi.local", "must have a scheme"},
		{"api_url ftp", "api_url: ftp://example.com", "scheme must be http or https"},
		{"api_url without host", "api_url: http://", "must include a host"},
		{"negative fetch timeout", "fetch_timeout: -1s", "fetch_timeout cannot be negative"},
		{"negative refresh", "refresh_interval: -5s", "refresh_interval cannot be negative"},
		{"refresh too short", "refresh_interval: 100ms", "at least 1s"},
		{"bad log level", "log_level: chatty", "unknown log level"},
		{"unknown key", "poll_interval: 10s", "poll_interval"},
		{"invalid duration", "fetch_timeout: soon", "invalid duration"},
		{"header with missing env", "api_headers:\n  Authorization: ${NOPE_NOT_SET}", "api_headers[Authorization]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("Parse() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	yaml := `
this is not: valid: yaml: at all
  - broken
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML, got nil")
	}
}

func TestParse_LogLevels(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cfg, err := Parse([]byte("log_level: " + tt.input))
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if cfg.Level() != tt.want {
				t.Errorf("Level() = %v, want %v", cfg.Level(), tt.want)
			}
		})
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"seconds", "10s", 10 * time.Second, false},
		{"milliseconds", "1500ms", 1500 * time.Millisecond, false},
		{"minutes", "2m", 2 * time.Minute, false},
		{"hours", "1h", 1 * time.Hour, false},
		{"combined", "1m30s", 90 * time.Second, false},
		{"invalid", "not-a-duration", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte("fetch_timeout: " + tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Parse() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if cfg.FetchTimeoutDuration() != tt.want {
				t.Errorf("FetchTimeout = %v, want %v", cfg.FetchTimeoutDuration(), tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkgmirror.yaml")
	if err := os.WriteFile(path, []byte("port: 9191\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9191 {
		t.Errorf("Port = %d, want 9191", cfg.Port)
	}

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Load() error = %v, want read error", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "") // set but empty

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"multiple vars", "${TEST_VAR}-${TEST_VAR}", "value-value", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty var", "${EMPTY_VAR}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false}, // set var takes precedence
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// UNSET and MISSING are expected to not exist in environment
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfig_SetLogLevel(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if err := cfg.SetLogLevel("DEBUG"); err != nil {
		t.Fatalf("SetLogLevel() error = %v", err)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v, want DEBUG", cfg.Level())
	}

	if err := cfg.SetLogLevel("chatty"); err == nil {
		t.Error("SetLogLevel() expected error for unknown level, got nil")
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v after rejected level, want DEBUG", cfg.Level())
	}
}
