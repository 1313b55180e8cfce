package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jpalmerr/pkgmirror/internal/model"
)

// API paths on the MMPM API server.
const (
	PackagesPath   = "/api/packages"
	DatabasePath   = "/api/db/info"
	UpgradablePath = "/api/packages/upgradable"
)

// DefaultBaseURL is where the MMPM API server listens by default.
const DefaultBaseURL = "http://localhost:7891"

// the catalog is a few thousand records; leave generous headroom
const maxResponseBodySize = 8 << 20 // 8MB

// connection pooling limits; all traffic goes to a single host
const (
	defaultMaxIdleConns        = 10
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// envelope is the response wrapper used by every MMPM API endpoint. On
// success Message holds the payload, on failure a string describing the error.
type envelope struct {
	Code    int             `json:"code"`
	Message json.RawMessage `json:"message"`
}

// Client talks to the MMPM API server over HTTP.
//
// Client never returns errors from its fetch methods: every outcome,
// including transport failures, is folded into a [Result]. Timeouts are taken
// from the caller's context.
type Client struct {
	baseURL     *url.URL
	headers     map[string]string
	httpClient  *http.Client
	maxBodySize int64
}

// NewClient creates a Client for the API server at baseURL.
//
// headers are sent with every request (for example an Authorization header).
// Returns an error if baseURL is not an absolute http or https URL.
func NewClient(baseURL string, headers map[string]string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("api url must include a host")
	}

	hdrs := make(map[string]string, len(headers))
	for k, v := range headers {
		hdrs[k] = v
	}

	return &Client{
		baseURL:     u,
		headers:     hdrs,
		maxBodySize: maxResponseBodySize,
		httpClient: &http.Client{
			// no client-wide timeout; deadlines come from the request context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}, nil
}

// BaseURL returns the API server URL the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// FetchPackages retrieves the package catalog.
func (c *Client) FetchPackages(ctx context.Context) Result[[]model.PackageRecord] {
	res := fetch[[]model.PackageRecord](ctx, c, PackagesPath)
	if res.OK() && res.Payload == nil {
		res.Payload = model.EmptyCatalog()
	}
	return res
}

// FetchDatabaseInfo retrieves the catalog database status record.
func (c *Client) FetchDatabaseInfo(ctx context.Context) Result[model.DatabaseInfo] {
	return fetch[model.DatabaseInfo](ctx, c, DatabasePath)
}

// FetchUpgradable retrieves the upgrade availability record.
func (c *Client) FetchUpgradable(ctx context.Context) Result[model.UpgradableDetails] {
	res := fetch[model.UpgradableDetails](ctx, c, UpgradablePath)
	if res.OK() && res.Payload.Packages == nil {
		res.Payload.Packages = []model.PackageRef{}
	}
	return res
}

// Close closes idle connections. The client remains usable afterwards.
// Safe to call on a nil Client.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

// fetch issues a GET for path and decodes the envelope into a Result.
func fetch[T any](ctx context.Context, c *Client, path string) Result[T] {
	start := time.Now()
	res := c.do(ctx, path)
	latency := time.Since(start)
	if !res.ok {
		return Result[T]{StatusCode: res.code, Message: res.message, Latency: latency}
	}

	var payload T
	if err := json.Unmarshal(res.payload, &payload); err != nil {
		return Result[T]{
			Message: fmt.Sprintf("failed to decode %s payload: %v", path, err),
			Latency: latency,
		}
	}
	return Result[T]{Payload: payload, StatusCode: http.StatusOK, Latency: latency}
}

// rawResult is the outcome of one request before the payload is decoded.
type rawResult struct {
	ok      bool
	code    int
	message string
	payload json.RawMessage
}

func (c *Client) do(ctx context.Context, path string) rawResult {
	target := c.baseURL.JoinPath(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return rawResult{message: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return rawResult{message: fmt.Sprintf("request failed: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	// one byte past the limit tells an oversized body from one that fits exactly
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return rawResult{code: failureCode(resp.StatusCode), message: fmt.Sprintf("failed to read response body: %v", err)}
	}
	if int64(len(body)) > c.maxBodySize {
		return rawResult{
			code:    failureCode(resp.StatusCode),
			message: fmt.Sprintf("response from %s exceeds %s", path, byteSize(c.maxBodySize)),
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Code == 0 {
		// not an MMPM envelope; fall back to the HTTP status
		if resp.StatusCode == http.StatusOK {
			return rawResult{message: fmt.Sprintf("unexpected response from %s: not an api envelope", path)}
		}
		return rawResult{code: resp.StatusCode, message: bodyMessage(resp.StatusCode, body)}
	}

	if env.Code != http.StatusOK {
		return rawResult{code: env.Code, message: envelopeMessage(env)}
	}
	return rawResult{ok: true, code: http.StatusOK, payload: env.Message}
}

// failureCode maps the HTTP status of a response that could not be used to a
// failure code. A 200 must not read as success.
func failureCode(status int) int {
	if status == http.StatusOK {
		return 0
	}
	return status
}

func byteSize(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}

// envelopeMessage extracts the error text from a failed envelope. The API
// sends a JSON string; anything else is passed through as raw JSON.
func envelopeMessage(env envelope) string {
	var s string
	if err := json.Unmarshal(env.Message, &s); err == nil {
		return s
	}
	if len(env.Message) == 0 {
		return http.StatusText(env.Code)
	}
	return string(env.Message)
}

func bodyMessage(code int, body []byte) string {
	msg := strings.TrimSpace(string(bytes.ToValidUTF8(body, nil)))
	if msg == "" {
		return http.StatusText(code)
	}
	const maxLen = 512
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
