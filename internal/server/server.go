package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jpalmerr/pkgmirror/internal/model"
	"github.com/jpalmerr/pkgmirror/internal/observable"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single stream write.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "MagicMirror Package Manager"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Channel names used for SSE event names and WebSocket frames.
const (
	ChannelPackages   = "packages"
	ChannelDatabase   = "database"
	ChannelUpgradable = "upgradable"
)

// State is the read side of the mirrored state. *store.Store satisfies it.
type State interface {
	Packages() observable.Observable[[]model.PackageRecord]
	DatabaseInfo() observable.Observable[model.DatabaseInfo]
	Upgradable() observable.Observable[model.UpgradableDetails]
}

// Refresher runs one refresh and returns once it has settled.
type Refresher interface {
	Load(ctx context.Context)
}

// Snapshot is the body of GET /api/state.
type Snapshot struct {
	Packages     []model.PackageRecord   `json:"packages"`
	DatabaseInfo model.DatabaseInfo      `json:"database"`
	Upgradable   model.UpgradableDetails `json:"upgradable"`
}

// Config holds the optional parts of a [Server].
type Config struct {
	// Port is the TCP port to listen on. Zero picks a free port.
	Port int

	// Assets contains assets/index.html. Without it "/" is not served.
	Assets fs.FS

	// Title replaces the title placeholder in the dashboard.
	Title string

	// Refresher backs POST /api/refresh. Without it the route is not served.
	Refresher Refresher

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	// Logger receives server events. Nil falls back to slog.Default().
	Logger *slog.Logger
}

// Server handles HTTP requests for the pkgmirror dashboard and API.
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	state      State
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server

	mu   sync.Mutex
	addr net.Addr
}

// NewServer creates a new HTTP [Server] exposing st.
//
// The server is not started until [Server.Start] is called.
func NewServer(st State, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		state:  st,
		cfg:    cfg,
		logger: logger,
	}
}

// Handler returns the request router. It is what [Server.Start] serves.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/packages", s.handlePackages)
	mux.HandleFunc("/api/database", s.handleDatabase)
	mux.HandleFunc("/api/upgradable", s.handleUpgradable)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/sse", s.handleSSE)
	mux.HandleFunc("/api/ws", s.handleWebSocket)

	if s.cfg.Refresher != nil {
		mux.HandleFunc("/api/refresh", s.handleRefresh)
	}
	if s.cfg.Metrics != nil {
		mux.Handle("/metrics", s.cfg.Metrics)
	}
	if s.cfg.Assets != nil {
		mux.HandleFunc("/", s.handleDashboard)
	}
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.cfg.Port, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx so long-lived streams end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.cfg.Assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// read index.html from embedded assets
	content, err := fs.ReadFile(s.cfg.Assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.cfg.Title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

func (s *Server) handlePackages(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w, r, s.state.Packages().Get())
}

func (s *Server) handleDatabase(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w, r, s.state.DatabaseInfo().Get())
}

func (s *Server) handleUpgradable(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w, r, s.state.Upgradable().Get())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeSnapshot(w, r, s.snapshot())
}

func (s *Server) snapshot() Snapshot {
	return Snapshot{
		Packages:     s.state.Packages().Get(),
		DatabaseInfo: s.state.DatabaseInfo().Get(),
		Upgradable:   s.state.Upgradable().Get(),
	}
}

// writeSnapshot answers a GET with v encoded as JSON.
func (s *Server) writeSnapshot(w http.ResponseWriter, r *http.Request, v any) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode snapshot response", "path", r.URL.Path, "error", err)
	}
}

// handleRefresh runs a refresh and answers 204 once it has settled. The
// refresh never fails; outcomes are visible through the snapshots.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !sameOrigin(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	start := time.Now()
	s.cfg.Refresher.Load(r.Context())
	s.logger.Info("manual refresh settled", "duration_ms", time.Since(start).Milliseconds())

	w.WriteHeader(http.StatusNoContent)
}

// sameOrigin reports whether a browser request comes from a page served by
// this host. Requests without an Origin header are not from browsers and
// are allowed.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
