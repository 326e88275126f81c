package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind classifies a failed request so callers can decide how to react.
type Kind string

const (
	KindNone            Kind = ""
	KindNetwork         Kind = "network"
	KindTimeout         Kind = "timeout"
	KindSessionExpired  Kind = "session_expired"
	KindServer          Kind = "server"
	KindInvalidResponse Kind = "invalid_response"
	KindCancelled       Kind = "cancelled"
)

// SessionExpiredIndicator is contained in the message of every
// session-expired error.
const SessionExpiredIndicator = "session expired"

var (
	// ErrSessionExpired is matched by errors.Is for every 401/403 response and
	// for requests attempted without a token.
	ErrSessionExpired = errors.New(SessionExpiredIndicator + ", please log in again")
	// ErrInvalidResponse is matched for bodies that could not be decoded.
	ErrInvalidResponse = errors.New("invalid server response")
	// ErrInvalidCredentials is returned by Login when the backend rejects the
	// login or password.
	ErrInvalidCredentials = errors.New("invalid login or password")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return ErrSessionExpired.Error()
	}
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return e.Message
}

// Is makes 401 and 403 responses match ErrSessionExpired.
func (e *APIError) Is(target error) bool {
	return target == ErrSessionExpired && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// RequestError wraps transport and decoding failures with their Kind.
type RequestError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *RequestError) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("%s: request timed out", e.Op)
	case KindInvalidResponse:
		return fmt.Sprintf("%s: %s: %v", e.Op, ErrInvalidResponse, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrInvalidResponse) match decode failures.
func (e *RequestError) Is(target error) bool {
	return target == ErrInvalidResponse && e.Kind == KindInvalidResponse
}

// Classify maps any error returned by the client onto a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrSessionExpired) {
		return KindSessionExpired
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return KindServer
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindNetwork
}

// IsSessionExpired reports whether err should route the user to log in.
func IsSessionExpired(err error) bool {
	return Classify(err) == KindSessionExpired
}

// IsSessionExpiredMessage matches the indicator substring in a message that
// has already been flattened to text.
func IsSessionExpiredMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), SessionExpiredIndicator)
}

func transportError(op string, err error) error {
	kind := KindNetwork
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		kind = KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &RequestError{Kind: kind, Op: op, Err: err}
}
