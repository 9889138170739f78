// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package apierr classifies failures of external services (language-model
// provider, academic search index). Every such failure unwraps to
// ErrExternalService plus one kind sentinel, so callers can branch with
// errors.Is without knowing which service failed.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	// ErrExternalService marks any failure of an external collaborator.
	// It is never retried automatically.
	ErrExternalService = errors.New("external service error")

	// ErrAuth indicates rejected or missing credentials.
	ErrAuth = errors.New("authentication failed")

	// ErrRateLimited indicates the service throttled the request.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrTimeout indicates the per-call deadline expired.
	ErrTimeout = errors.New("call timed out")

	// ErrUnavailable indicates a transport failure or a 5xx response.
	ErrUnavailable = errors.New("service unavailable")

	// ErrBadRequest indicates the service refused the request (other 4xx).
	ErrBadRequest = errors.New("request rejected")

	// ErrParse indicates a malformed payload. Parse failures are recovered
	// by the component that hit them and never abort a run.
	ErrParse = errors.New("malformed response")
)

// ServiceError describes one failed call to an external service.
type ServiceError struct {
	// Service names the collaborator (e.g. "arxiv", "claude").
	Service string
	// Op names the operation (e.g. "search", "complete").
	Op string
	// StatusCode is the HTTP status, or 0 for transport failures.
	StatusCode int
	// Kind is one of the kind sentinels above.
	Kind error
	// Err is the underlying cause, if any.
	Err error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %v", e.Service, e.Op, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes ErrExternalService, the kind sentinel and the cause.
func (e *ServiceError) Unwrap() []error {
	errs := []error{ErrExternalService}
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// New returns a ServiceError of the given kind.
func New(service, op string, kind, cause error) *ServiceError {
	return &ServiceError{Service: service, Op: op, Kind: kind, Err: cause}
}

// FromStatus classifies a non-2xx HTTP response. body is an optional
// snippet of the response for diagnostics.
func FromStatus(service, op string, status int, body string) *ServiceError {
	var cause error
	if body = strings.TrimSpace(body); body != "" {
		if len(body) > 200 {
			body = body[:200] + "..."
		}
		cause = errors.New(body)
	}
	e := &ServiceError{Service: service, Op: op, StatusCode: status, Err: cause}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = ErrAuth
	case status == http.StatusTooManyRequests:
		e.Kind = ErrRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Kind = ErrTimeout
	case status >= 500:
		e.Kind = ErrUnavailable
	default:
		e.Kind = ErrBadRequest
	}
	return e
}

// FromTransport classifies an error returned before any response arrived.
// Cancellation by the caller is returned as-is: it is not a service failure.
func FromTransport(service, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", service, op, err)
	}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return New(service, op, ErrTimeout, err)
	}
	return New(service, op, ErrUnavailable, err)
}

// IsExternal reports whether err stems from an external service failure.
func IsExternal(err error) bool {
	return errors.Is(err, ErrExternalService)
}

// IsAuth reports whether err is a credential rejection.
func IsAuth(err error) bool {
	return errors.Is(err, ErrAuth)
}

// IsTimeout reports whether err is a per-call timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// Service returns the name of the failing service, or "" when err is not
// a ServiceError.
func Service(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Service
	}
	return ""
}
