// Package apperr defines the error kinds shared across the service.
//
// Packages declare their own sentinels on top of a kind:
//
//	var ErrCallNotFound = apperr.New(apperr.ErrNotFound, "call not found")
//
// Callers test with errors.Is against either the package sentinel or the kind.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("dependency unavailable")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// New returns a sentinel that matches kind under errors.Is.
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Unavailable wraps a dependency failure so it matches ErrUnavailable while
// keeping the cause in the chain.
func Unavailable(op string, cause error) error {
	return &causeError{kind: ErrUnavailable, op: op, cause: cause}
}

type causeError struct {
	kind  error
	op    string
	cause error
}

func (e *causeError) Error() string { return e.op + ": " + e.cause.Error() }

func (e *causeError) Unwrap() []error { return []error{e.kind, e.cause} }

// Kind reports which taxonomy entry err belongs to, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrInvalidInput, ErrRateLimited, ErrUnauthorized, ErrConflict, ErrUnavailable} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
