// ABOUTME: Authenticated HTTP gateway for the storefront REST API
// ABOUTME: Attaches the bearer token and recovers from expiry with one shared refresh

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/hiu1412/carshop/internal/session"
)

// Authentication endpoints. Requests to these never carry the bearer token
// and a 401 from them is terminal.
const (
	PathLogin    = "/auth/login"
	PathRegister = "/auth/register"
	PathRefresh  = "/auth/refresh"
)

var authEndpoints = []string{PathLogin, PathRegister, PathRefresh}

const (
	headerRequestID = "X-Request-ID"
	defaultTimeout  = 30 * time.Second
)

// Options configures a Gateway.
type Options struct {
	// BaseURL is the API root, e.g. http://localhost:8000/api
	BaseURL string
	// Credentials is the access-token slot.
	Credentials session.CredentialStore
	// Jar carries the refresh cookie. The gateway never reads it.
	Jar http.CookieJar
	// Timeout applies to each HTTP exchange (default 30s).
	Timeout time.Duration
	// Transport is the innermost RoundTripper (default http.DefaultTransport).
	Transport http.RoundTripper
	// OnSignedOut is called once per failed refresh, after the slot is cleared.
	OnSignedOut func(err error)
}

// Gateway issues every call to the remote API.
type Gateway struct {
	baseURL     string
	httpClient  *http.Client
	creds       session.CredentialStore
	onSignedOut func(error)
	timeout     time.Duration

	// refresh state machine, see refresh.go
	mu      sync.Mutex
	state   refreshState
	pending []chan refreshOutcome
}

// New creates a gateway. Credentials is required.
func New(opts Options) (*Gateway, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("gateway: base URL is required")
	}
	if opts.Credentials == nil {
		return nil, fmt.Errorf("gateway: credential store is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := otelhttp.NewTransport(NewLoggingTransport(opts.Transport))

	return &Gateway{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			Jar:       opts.Jar,
		},
		creds:       opts.Credentials,
		onSignedOut: opts.OnSignedOut,
		timeout:     timeout,
	}, nil
}

// BaseURL returns the API root the gateway talks to.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// Response is a successful (2xx) API response with the body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the whole body into v.
func (r *Response) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("invalid response from backend: %w", err)
	}
	return nil
}

// DecodeData unmarshals the envelope's data field into v.
func (r *Response) DecodeData(v interface{}) error {
	var env envelope
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return fmt.Errorf("invalid response from backend: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("invalid response from backend: missing data")
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("invalid response from backend: %w", err)
	}
	return nil
}

// Message returns the envelope's message when it is a string.
func (r *Response) Message() string {
	var env envelope
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return ""
	}
	return env.message()
}

// Request sends method path to the API. body is JSON-encoded unless it is
// nil or already []byte. Any non-2xx outcome is returned as *APIError.
//
// A 401 from a non-auth endpoint runs the refresh protocol and the request is
// retried exactly once with the new token. A second 401 is returned as is.
func (g *Gateway) Request(ctx context.Context, method, path string, body interface{}, headers map[string]string) (*Response, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	exempt := isAuthEndpoint(path)
	var tok *oauth2.Token
	if !exempt {
		if tok, err = g.creds.Token(); err != nil {
			return nil, fmt.Errorf("failed to read credentials: %w", err)
		}
	}

	resp, err := g.do(ctx, method, path, payload, headers, tok)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || exempt {
		return g.finish(method, path, resp)
	}

	slog.Debug("Access token rejected", "method", method, "path", path)
	fresh, err := g.recoverCredentials(ctx, tok)
	if err != nil {
		return nil, err
	}

	resp, err = g.do(ctx, method, path, payload, headers, fresh)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		slog.Warn("Request unauthorized after refresh", "method", method, "path", path)
	}
	return g.finish(method, path, resp)
}

func (g *Gateway) do(ctx context.Context, method, path string, payload []byte, headers map[string]string, tok *oauth2.Token) (*Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(headerRequestID, uuid.NewString())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if tok != nil && tok.AccessToken != "" {
		tok.SetAuthHeader(req)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, g.handleRequestError(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (g *Gateway) finish(method, path string, resp *Response) (*Response, error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	return nil, newAPIError(method, path, resp.StatusCode, resp.Body)
}

// handleRequestError converts context errors to user-friendly messages
func (g *Gateway) handleRequestError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("request canceled: %w", ctx.Err())
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", ctx.Err())
	}
	return fmt.Errorf("cannot connect to backend at %s: %w", g.baseURL, err)
}

func encodeBody(body interface{}) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		return data, nil
	}
}

func isAuthEndpoint(path string) bool {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	for _, ep := range authEndpoints {
		if path == ep || strings.HasPrefix(path, ep+"/") {
			return true
		}
	}
	return false
}
