package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind labels a class of fetch failure in logs, metrics and the run
// summary.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindConnection  ErrorKind = "connection"
	KindForbidden   ErrorKind = "forbidden"
	KindNotFound    ErrorKind = "not_found"
	KindRateLimited ErrorKind = "rate_limited"
	KindServer      ErrorKind = "server"
	KindOther       ErrorKind = "other"
)

// FetchError is a classified request failure.
type FetchError struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could succeed.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindForbidden, KindNotFound:
		return false
	}
	return true
}

// classifyError maps a transport error and/or HTTP status onto a FetchError.
// It returns nil when there is nothing to classify.
func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return &FetchError{Kind: KindTimeout, Err: err}
	case errors.As(err, &opErr):
		return &FetchError{Kind: KindConnection, Err: err}
	}

	if err == nil {
		err = fmt.Errorf("http status %d", statusCode)
	}
	switch {
	case statusCode == http.StatusForbidden:
		return &FetchError{Kind: KindForbidden, Status: statusCode, Err: err}
	case statusCode == http.StatusNotFound:
		return &FetchError{Kind: KindNotFound, Status: statusCode, Err: err}
	case statusCode == http.StatusTooManyRequests:
		return &FetchError{Kind: KindRateLimited, Status: statusCode, Err: err}
	case statusCode >= http.StatusInternalServerError:
		return &FetchError{Kind: KindServer, Status: statusCode, Err: err}
	}
	return &FetchError{Kind: KindOther, Status: statusCode, Err: err}
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return string(fetchErr.Kind)
	}
	return string(KindOther)
}
