package syncclient

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Sentinel errors for the classes callers branch on.
var (
	// ErrUnauthorized: authentication failed or expired. Not retryable;
	// aborts the whole sync cycle.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrServer: the server failed (5xx). Retryable with backoff.
	ErrServer = errors.New("server error")
	// ErrRejected: validation/business rejection (4xx). Not retryable;
	// surfaced to the user without consuming retry budget.
	ErrRejected = errors.New("request rejected")
	// ErrNetwork: the request never completed. Retryable.
	ErrNetwork = errors.New("network error")
)

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// Retryable reports whether an error is transient: transport-level failures
// and server errors are worth retrying, everything else is permanent.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer) {
		return true
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrRejected) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
