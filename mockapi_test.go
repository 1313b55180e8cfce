package pkgmirror

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	testCatalog = []PackageRecord{
		{Title: "MMM-Weather", Author: "alice", Repository: "https://github.com/alice/MMM-Weather", Category: "Weather"},
		{Title: "MMM-News", Author: "bob", Repository: "https://github.com/bob/MMM-News", Category: "News", IsInstalled: true},
	}
	testDatabase   = DatabaseInfo{LastUpdate: "2026-10-18 09:00:00", Categories: 2, Packages: 2}
	testUpgradable = UpgradableDetails{
		Core:     true,
		Packages: []PackageRef{{Title: "MMM-News", Repository: "https://github.com/bob/MMM-News"}},
	}
)

// mockAPI is an httptest MMPM API server. Each route answers with the MMPM
// envelope unless its fail flag is set.
type mockAPI struct {
	*httptest.Server
	failPackages atomic.Bool
	requests     atomic.Int32
	delay        atomic.Int64 // nanoseconds added to every response
}

func newMockAPI(t *testing.T) *mockAPI {
	t.Helper()
	api := &mockAPI{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/packages", func(w http.ResponseWriter, r *http.Request) {
		if api.failPackages.Load() {
			writeEnvelope(w, http.StatusInternalServerError, "server error")
			return
		}
		writeEnvelope(w, http.StatusOK, testCatalog)
	})
	mux.HandleFunc("/api/db/info", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, testDatabase)
	})
	mux.HandleFunc("/api/packages/upgradable", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, testUpgradable)
	})

	api.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.requests.Add(1)
		if d := time.Duration(api.delay.Load()); d > 0 {
			time.Sleep(d)
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(api.Close)
	return api
}

func writeEnvelope(w http.ResponseWriter, code int, message any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": message})
}

// unreachableURL returns a URL nothing is listening on.
func unreachableURL(t *testing.T) string {
	t.Helper()
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()
	return url
}
