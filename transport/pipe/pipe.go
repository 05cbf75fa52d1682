package pipe

import (
	"context"
	"sync"

	"osc-relay/transport"

	"github.com/pkg/errors"
)

type Addr struct {
	Name string
}

func (a Addr) Network() string { return string(transport.Pipe) }
func (a Addr) String() string  { return a.Name }

var _ transport.Addr = Addr{}

// pipe is the listening side of an endpoint.
type pipe struct {
	addr Addr

	stream chan []byte // datagrams waiting to be received.

	closed chan struct{}
	once   sync.Once // making sure not to close closed channel.

	transport *PipeTransport
}

var _ transport.Receiver = (*pipe)(nil)

func (p *pipe) LocalAddr() transport.Addr { return p.addr }

func (p *pipe) Receive(ctx context.Context, b []byte) (n int, err error) {
	if isClosed(p.closed) {
		return 0, transport.ErrConnClosed
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-p.closed:
		return 0, transport.ErrConnClosed
	case datagram := <-p.stream:
		return copy(b, datagram), nil
	}
}

func (p *pipe) Close() error {
	p.once.Do(func() {
		close(p.closed)
		p.transport.remove(p)
	})
	return nil
}

type sender struct {
	remote Addr

	closed chan struct{}
	once   sync.Once

	transport *PipeTransport
}

var _ transport.Sender = (*sender)(nil)

func (s *sender) RemoteAddr() transport.Addr { return s.remote }

func (s *sender) Send(ctx context.Context, b []byte) error {
	if isClosed(s.closed) {
		return transport.ErrConnClosed
	}

	dst, ok := s.transport.lookup(s.remote)
	if !ok {
		return errors.Wrap(transport.ErrNetUnreachable, s.remote.Name)
	}

	// The caller may reuse b once Send returns.
	datagram := append([]byte(nil), b...)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return transport.ErrConnClosed
	case <-dst.closed:
		return errors.Wrap(transport.ErrNetUnreachable, s.remote.Name)
	case dst.stream <- datagram:
		return nil
	}
}

func (s *sender) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func isClosed(c <-chan struct{}) bool {
	select {
	case <-c: // c will only fire at closed state.
		return true
	default:
		return false
	}
}
