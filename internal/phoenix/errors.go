package phoenix

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure classes reported by the client.
type Kind uint8

const (
	KindConnection Kind = iota + 1
	KindNotFound
	KindValidation
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

var (
	ErrConnection = errors.New("phoenix: connection error")
	ErrNotFound   = errors.New("phoenix: resource not found")
	ErrValidation = errors.New("phoenix: validation failed")
	ErrProtocol   = errors.New("phoenix: protocol violation")

	// ErrMissingID is returned by UpdateUser before any request is made.
	ErrMissingID = errors.New("phoenix: cannot update user without id")
)

// Error is a classified failure of one client operation.
type Error struct {
	Kind Kind
	// Op is the logical operation, e.g. "get_user".
	Op string
	// Status is the HTTP status, 0 when no response was received.
	Status  int
	Message string
	// Fields is set for KindValidation: field name -> messages.
	Fields map[string][]string
	// Err is the underlying transport or decode error, if any.
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Op != "" {
		return fmt.Sprintf("phoenix: %s: %s: %s", e.Op, e.Kind, e.Message)
	}
	return fmt.Sprintf("phoenix: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrConnection:
		return e.Kind == KindConnection || e.Kind == KindProtocol
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrProtocol:
		return e.Kind == KindProtocol
	}
	return false
}

// KindOf returns the Kind of a classified error, or 0 when err is not one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// FieldErrors returns the field messages of a validation error.
func FieldErrors(err error) map[string][]string {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindValidation {
		return e.Fields
	}
	return nil
}

func connectionError(msg string, cause error) *Error {
	return &Error{Kind: KindConnection, Message: msg, Err: cause}
}

func protocolError(msg string, cause error) *Error {
	return &Error{Kind: KindProtocol, Message: msg, Err: cause}
}
