// Package errs defines the dispatcher's error-kind taxonomy. Every
// component wraps failures in a *Error carrying one of these kinds so
// callers can branch on errors.Is/Kind() rather than string matching.
package errs

import "fmt"

type Kind string

const (
	TransientTransport Kind = "transient_transport"
	PermanentTransport Kind = "permanent_transport"
	TransientAgent     Kind = "transient_agent"
	PermanentAgent     Kind = "permanent_agent"
	CacheUnavailable   Kind = "cache_unavailable"
	StoreUnavailable   Kind = "store_unavailable"
	RateLimited        Kind = "rate_limited"
	Duplicate          Kind = "duplicate"
	BadRequest         Kind = "bad_request"
	Paused             Kind = "paused"
	DeadlineExceeded   Kind = "deadline_exceeded"
	CircuitOpen        Kind = "circuit_open"
)

// Error is the dispatcher's sentinel error wrapper. The zero value is
// not useful; construct with New or Wrap.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Kind() Kind { return e.kind }

// Is lets errors.Is(err, errs.New(kind, "")) match any *Error of the
// same kind, without caring about the message or wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == t.kind
}

// Retriable reports whether the dispatcher's retry policy treats this
// kind as something the queue should retry rather than drop.
func (k Kind) Retriable() bool {
	switch k {
	case TransientTransport, TransientAgent, StoreUnavailable, CircuitOpen, DeadlineExceeded:
		return true
	default:
		return false
	}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, or "" otherwise.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.kind, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return "", false
}

// DeadLetterApology is the fixed, no-stack-trace message sent to the
// user when a dispatch exhausts its retries and lands in dead_letter.
const DeadLetterApology = "Estoy experimentando dificultades técnicas en este momento. Por favor intentá de nuevo en unos minutos."
