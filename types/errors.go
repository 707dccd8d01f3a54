package types

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that a query, anime or episode does not exist on the
// backend. Non-retryable and non-fatal.
var ErrNotFound = errors.New("not found")

// TransportKind classifies why a transport call failed.
type TransportKind int

const (
	TransportTimeout TransportKind = iota
	TransportConnect
	TransportStatus
)

func (k TransportKind) String() string {
	switch k {
	case TransportTimeout:
		return "timeout"
	case TransportConnect:
		return "connect"
	case TransportStatus:
		return "status"
	default:
		return "unknown"
	}
}

// TransportError is a failed network exchange. Timeouts and connection
// failures are transient; bad statuses are passed through untouched so the
// caller can decide.
type TransportError struct {
	Kind   TransportKind
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Kind == TransportStatus {
		return fmt.Sprintf("transport: %s returned status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("transport: %s %s: %v", e.Kind, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports that a source could not interpret a backend response.
// Never retried; the pipeline falls through to the next source instead.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: cannot parse response: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// LaunchError reports a failed player spawn. Fatal to the playback attempt
// only, never to the process.
type LaunchError struct {
	Template string
	Err      error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %q: %v", e.Template, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Transient reports whether err is worth retrying. Only transport timeouts
// and connection failures qualify; parse and not-found errors propagate
// immediately.
func Transient(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind == TransportTimeout || te.Kind == TransportConnect
	}
	return false
}
