package gateway

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed gateway call
type ErrorKind int

const (
	// KindTransport covers network failures, timeouts and cancellation
	KindTransport ErrorKind = iota + 1
	// KindServer is a non-2xx response
	KindServer
	// KindMalformed is a 2xx response whose body could not be used
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is returned by every Client operation that fails
type Error struct {
	Op     string
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway %s: %s error (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the error kind, or 0 when err did not come from the gateway
func KindOf(err error) ErrorKind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return 0
}

func transportError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindTransport, Err: err}
}

func serverError(op string, status int, message string) *Error {
	if message == "" {
		message = "request rejected"
	}
	return &Error{Op: op, Kind: KindServer, Status: status, Err: errors.New(message)}
}

func malformedError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindMalformed, Err: err}
}
