package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetworkUnavailable wraps transport-level failures.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrMalformedPayload wraps response bodies that are not valid JSON.
	ErrMalformedPayload = errors.New("malformed payload")
)

// RequestFailed reports a non-2xx response.
type RequestFailed struct {
	Status  int
	Path    string
	Message string
}

func (e *RequestFailed) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("request %s failed with status %d: %s", e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("request %s failed with status %d (%s)", e.Path, e.Status, http.StatusText(e.Status))
}

// StatusCode returns the HTTP status carried by err, if any.
func StatusCode(err error) (int, bool) {
	var rf *RequestFailed
	if errors.As(err, &rf) {
		return rf.Status, true
	}
	return 0, false
}

// IsNetworkUnavailable reports whether err is a connectivity failure.
func IsNetworkUnavailable(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable)
}
