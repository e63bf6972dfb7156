package rest

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrURLRequired = errors.New("rest: url is required")
)

// HTTPError is returned for every non-2xx response.
type HTTPError struct {
	StatusCode int
	Header     http.Header
	Path       string
	Method     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("rest: %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// StatusMessage is the standard text for StatusCode.
func (e *HTTPError) StatusMessage() string {
	return http.StatusText(e.StatusCode)
}
