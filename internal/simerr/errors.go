// Package simerr defines the structured error kinds used across epinet.
//
// Every user-facing failure carries a Kind that callers can branch on with
// errors.Is against the package sentinels, plus the parameter or path it
// concerns and a human message.
package simerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// KindConfiguration marks invalid parameter values detected before any
	// simulation work begins.
	KindConfiguration Kind = iota + 1
	// KindConstruction marks a network that cannot be grown as requested.
	KindConstruction
	// KindIO marks a failure on the persistence boundary. These are
	// recoverable: the in-memory simulation stays correct.
	KindIO
)

// String returns the kind name used in rendered messages.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration error"
	case KindConstruction:
		return "construction error"
	case KindIO:
		return "io error"
	default:
		return "error"
	}
}

// Sentinels for errors.Is. Never returned bare.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrConstruction  = errors.New("construction error")
	ErrIO            = errors.New("io error")
)

// Error is a classified failure.
type Error struct {
	Kind  Kind
	Param string // offending parameter, or the path for IO errors
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Param != "" {
		msg += ": " + e.Param
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrConstruction:
		return e.Kind == KindConstruction
	case ErrIO:
		return e.Kind == KindIO
	}
	return false
}

// Config returns a configuration error for param.
func Config(param, format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Param: param, Msg: fmt.Sprintf(format, args...)}
}

// Construction returns a network construction error for param.
func Construction(param, format string, args ...any) error {
	return &Error{Kind: KindConstruction, Param: param, Msg: fmt.Sprintf(format, args...)}
}

// IO wraps err as an IO error on path.
func IO(path string, err error) error {
	return &Error{Kind: KindIO, Param: path, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
