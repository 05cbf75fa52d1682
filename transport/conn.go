package transport

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrConnClosed       = errors.New("connection is closed")
	ErrAddrAlreadyInUse = errors.New("address already in use")
	ErrNetUnreachable   = errors.New("network is unreachable")
	ErrInvalidAddr      = errors.New("invalid address")
)

// Receiver is a bound endpoint that datagrams arrive on.
type Receiver interface {
	// Receive blocks until a datagram arrives and copies it into p.
	// A datagram longer than p is truncated.
	Receive(ctx context.Context, p []byte) (n int, err error)
	Close() error

	LocalAddr() Addr
}

// Sender transmits datagrams to one remote endpoint.
type Sender interface {
	// Send blocks until the transport accepts p.
	Send(ctx context.Context, p []byte) error
	Close() error

	RemoteAddr() Addr
}

type Network interface {
	// Listen binds a local endpoint.
	Listen(ctx context.Context, addr string) (Receiver, error)
	// Dial opens an endpoint sending to addr.
	Dial(ctx context.Context, addr string) (Sender, error)
}
