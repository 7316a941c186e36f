// ABOUTME: RoundTripper that logs every outbound API call
// ABOUTME: Redacts credentials and cookies before anything reaches the log

package gateway

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// LoggingTransport wraps an http.RoundTripper and logs request/response
// summaries at debug level.
type LoggingTransport struct {
	Transport http.RoundTripper
}

// NewLoggingTransport creates a new logging transport wrapper
func NewLoggingTransport(transport http.RoundTripper) *LoggingTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &LoggingTransport{Transport: transport}
}

// RoundTrip implements http.RoundTripper.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	slog.Debug("HTTP request",
		"method", req.Method,
		"url", req.URL.Redacted(),
		"request_id", req.Header.Get(headerRequestID),
		"headers", redactHeaders(req.Header),
	)

	resp, err := t.Transport.RoundTrip(req)
	duration := time.Since(start)
	if err != nil {
		slog.Debug("HTTP request failed", "method", req.Method, "path", req.URL.Path, "duration", duration, "error", err)
		return nil, err
	}

	slog.Debug("HTTP response",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", duration,
	)
	return resp, nil
}

func redactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if isSensitiveHeader(name) {
			out[name] = "[REDACTED]"
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

func isSensitiveHeader(name string) bool {
	switch strings.ToLower(name) {
	case "authorization", "cookie", "set-cookie", "x-api-key", "x-auth-token":
		return true
	}
	return false
}
