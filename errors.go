package userd

import (
	"errors"
	"fmt"
)

// Kind classifies terminal request outcomes.
type Kind int

const (
	KindBackend    Kind = iota // store or cache transport failure
	KindValidation             // malformed body, blank name, bad email, duplicate email
	KindNotFound               // missing entity
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "backend"
	}
}

// Error is returned by the service layer. Msg is safe to show to clients.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Backend wraps err; the client sees "msg: err".
func Backend(err error, msg string) *Error {
	return &Error{Kind: KindBackend, Msg: msg, Err: err}
}

// KindOf returns the Kind of err. Unclassified errors are backend failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindBackend
}
