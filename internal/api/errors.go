package api

import (
	"errors"
	"fmt"
)

// RequestError is the only failure the client reports: the request could
// not be completed, the backend answered with a non-2xx status, or the body
// could not be decoded. StatusCode is zero when no response was received.
type RequestError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to %s: %d", e.Op, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
	}
	return "failed to " + e.Op
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// StatusCode extracts the HTTP status from err, or 0 when err is not a
// RequestError or no response was received.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}
