package plc

import (
	"context"
	"errors"
)

var (
	// ErrUnknownTag is returned when a tag is not exposed by the controller.
	ErrUnknownTag = errors.New("plc: unknown tag")
	// ErrEmptyAddress is returned when no controller address is given.
	ErrEmptyAddress = errors.New("plc: empty address")
	// ErrClosed is returned when a closed connection is used.
	ErrClosed = errors.New("plc: connection closed")
)

// Driver opens connections to a controller.
type Driver interface {
	Connect(ctx context.Context, address string) (Conn, error)
}

// Conn is one open controller session.
type Conn interface {
	// Read returns a scalar value when elements is zero, otherwise a []any
	// holding at most elements values.
	Read(ctx context.Context, tag string, elements int) (any, error)
	// ListTags returns the tags the controller exposes, in controller order.
	ListTags(ctx context.Context) ([]string, error)
	Close() error
}
