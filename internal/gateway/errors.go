// ABOUTME: Error types surfaced by the authenticated gateway
// ABOUTME: Parses the API's {status, message, data} error envelope

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEmptyPath is returned before any network call when path is "".
	ErrEmptyPath = errors.New("request path must not be empty")

	// ErrSessionExpired means the refresh protocol failed and the credential
	// slot was cleared. The user has to sign in again.
	ErrSessionExpired = errors.New("session expired, please log in again")
)

// envelope is the wire shape of every API response.
type envelope struct {
	Status  string              `json:"status"`
	Message json.RawMessage     `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// message returns the envelope message when it is a plain string. Some
// endpoints (payment status) put an object there instead.
func (e *envelope) message() string {
	var s string
	if len(e.Message) > 0 && json.Unmarshal(e.Message, &s) == nil {
		return s
	}
	return ""
}

// APIError is a non-2xx response from the remote API.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
	Data       json.RawMessage
	Errors     map[string][]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// DecodeData unmarshals the error's data payload into v.
func (e *APIError) DecodeData(v interface{}) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return fmt.Errorf("error response has no data")
	}
	return json.Unmarshal(e.Data, v)
}

// IsUnauthorized reports whether err is a 401 surfaced by the gateway.
func IsUnauthorized(err error) bool {
	return HasStatus(err, http.StatusUnauthorized)
}

// HasStatus reports whether err is an *APIError with the given status code.
func HasStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

func newAPIError(method, path string, statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Method: method, Path: path}
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		apiErr.Message = env.message()
		apiErr.Data = env.Data
		apiErr.Errors = env.Errors
	}
	return apiErr
}
