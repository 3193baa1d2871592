// Package apperr defines the error kinds surfaced by repositories and
// services. Every returned error wraps exactly one kind so callers branch with
// errors.Is and the HTTP layer maps it with Status.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAccessDenied    = errors.New("access denied")
	ErrUpstream        = errors.New("upstream failure")
)

// NotFound reports a missing record.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidArgument reports a rejected input. No backend call was made.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// AccessDenied reports a role mismatch.
func AccessDenied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAccessDenied, fmt.Sprintf(format, args...))
}

// Upstream wraps a backend failure. Errors that already carry a kind, and
// context cancellation, pass through with op prepended.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}

// Kind returns the kind sentinel wrapped by err, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrInvalidArgument, ErrAccessDenied, ErrUpstream} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Status maps err onto an HTTP status code.
func Status(err error) int {
	switch Kind(err) {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInvalidArgument:
		return http.StatusUnprocessableEntity
	case ErrAccessDenied:
		return http.StatusForbidden
	case ErrUpstream:
		return http.StatusBadGateway
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
