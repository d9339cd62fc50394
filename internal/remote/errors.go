// ABOUTME: Error taxonomy of the remote client
// ABOUTME: Distinguishes transport failures, HTTP rejections and undecodable bodies

package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnavailable wraps transport failures, timeouts and an open circuit breaker.
	ErrUnavailable = errors.New("remote unavailable")
	// ErrMalformed wraps responses whose body does not match the expected shape.
	ErrMalformed = errors.New("malformed response")
)

// StatusError is a non-2xx response.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Message)
}

// NotFound reports a 404.
func (e *StatusError) NotFound() bool {
	return e.Code == http.StatusNotFound
}

// Permanent reports a rejection that retrying will not fix: any 4xx except
// 404, 408 and 429.
func (e *StatusError) Permanent() bool {
	switch e.Code {
	case http.StatusNotFound, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.Code >= 400 && e.Code < 500
}

func malformed(method, path, what string) error {
	return fmt.Errorf("%w: %s %s: missing %s", ErrMalformed, method, path, what)
}
