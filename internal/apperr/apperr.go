// Package apperr defines the closed set of error kinds surfaced by the
// scheduling core. Every boundary (HTTP responses, the scheduling client,
// CLI output) switches on Kind rather than comparing message strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindDependencyCycle
	KindDependencyNotSatisfied
	KindInvalidTransition
	KindArchivedEvent
	KindServiceUnavailable
)

var codes = map[Kind]string{
	KindInternal:               "INTERNAL_ERROR",
	KindValidation:             "VALIDATION_ERROR",
	KindNotFound:               "NOT_FOUND",
	KindDependencyCycle:        "DEPENDENCY_CYCLE",
	KindDependencyNotSatisfied: "DEPENDENCY_NOT_SATISFIED",
	KindInvalidTransition:      "INVALID_TRANSITION",
	KindArchivedEvent:          "EVENT_ARCHIVED",
	KindServiceUnavailable:     "SERVICE_UNAVAILABLE",
}

// Code returns the stable wire code for k.
func (k Kind) Code() string {
	if code, ok := codes[k]; ok {
		return code
	}
	return codes[KindInternal]
}

func (k Kind) String() string { return k.Code() }

// KindFromCode maps a wire code back to its Kind. Unknown codes are Internal.
func KindFromCode(code string) Kind {
	for k, c := range codes {
		if c == code {
			return k
		}
	}
	return KindInternal
}

// Error is a classified error with the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Code()
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

// Sentinels for errors.Is checks.
var (
	ErrValidation             = &Error{Kind: KindValidation}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrDependencyCycle        = &Error{Kind: KindDependencyCycle}
	ErrDependencyNotSatisfied = &Error{Kind: KindDependencyNotSatisfied}
	ErrInvalidTransition      = &Error{Kind: KindInvalidTransition}
	ErrArchivedEvent          = &Error{Kind: KindArchivedEvent}
	ErrServiceUnavailable     = &Error{Kind: KindServiceUnavailable}
)

// New builds a classified error with a formatted message.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validation(op, format string, args ...any) *Error {
	return New(KindValidation, op, format, args...)
}

func NotFound(op, format string, args ...any) *Error {
	return New(KindNotFound, op, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the human readable part of err without the op prefix.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Msg != "" {
			return e.Msg
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Kind.Code()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
