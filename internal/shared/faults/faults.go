package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by the boundary that can act on it.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindAuth
	KindConfig
	KindStaging
	KindHostOperation
	KindParse
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindConfig:
		return "config"
	case KindStaging:
		return "staging"
	case KindHostOperation:
		return "host_operation"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

var (
	// ErrNoCredential is returned when no registry token has been stored.
	ErrNoCredential = &Error{Kind: KindAuth, Op: "credential", Err: errors.New("no registry access token set")}
	// ErrNoEndpoints is returned when no registry endpoints are configured.
	ErrNoEndpoints = &Error{Kind: KindConfig, Op: "settings", Err: errors.New("no package registry urls configured")}
)

// Error is a classified failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a kind and operation name. A nil err yields nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a classified error from a format string.
func Newf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether any classified error in the chain has the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		var fe *Error
		if !errors.As(err, &fe) {
			return false
		}
		if fe.Kind == kind {
			return true
		}
		err = fe.Err
	}
	return false
}
