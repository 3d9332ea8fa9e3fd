package authclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/authclient/refresh"
)

var (
	// ErrUnauthorized matches any 401 returned by the backend.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTransport wraps network-level failures where no HTTP response exists.
	ErrTransport = errors.New("transport failure")
	// ErrNotAuthenticated is returned by operations that need a stored session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidRequest is returned for malformed request descriptors.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidResponse is returned when a success body cannot be decoded.
	ErrInvalidResponse = errors.New("invalid response body")
	// ErrRefreshUnavailable is the forced-logout reason when no refresh token is stored.
	ErrRefreshUnavailable = refresh.ErrNoRefreshToken
	// ErrRefreshFailed wraps a failed refresh call. RefreshNow returns it; Do
	// returns the original 401 instead.
	ErrRefreshFailed = refresh.ErrRefreshFailed
	// ErrClientNotReady is returned by methods on a nil or unbuilt Client.
	ErrClientNotReady = errors.New("client not initialized")
)

// HTTPError is the structured failure for any non-2xx response.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

// Error formats the call and status with the backend message, or the
// status text when the body has none.
func (e *HTTPError) Error() string {
	msg := http.StatusText(e.StatusCode)
	if m := e.Message(); m != "" {
		msg = m
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, msg)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Message extracts the "message" field of a JSON error body, if any.
func (e *HTTPError) Message() string {
	var body struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(e.Body, &body); err != nil {
		return ""
	}
	return body.Message
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}

func isUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
