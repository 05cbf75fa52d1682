package pipe

import (
	"context"
	"sync"

	"osc-relay/transport"

	"github.com/pkg/errors"
)

// PipeTransport is an in-memory datagram network.
// Endpoints are identified by name instead of host:port.
type PipeTransport struct {
	endpoints map[string]*pipe
	bufSize   uint

	mu sync.Mutex
}

// NewPipeTransport creates a network whose endpoints buffer up to bufSize datagrams.
// Unlike UDP, a send to a full endpoint blocks instead of dropping.
func NewPipeTransport(bufSize uint) *PipeTransport {
	return &PipeTransport{
		endpoints: make(map[string]*pipe),
		bufSize:   bufSize,
	}
}

var _ transport.Network = (*PipeTransport)(nil)

func (pt *PipeTransport) Listen(ctx context.Context, addr string) (transport.Receiver, error) {
	if addr == "" {
		return nil, errors.Wrap(transport.ErrInvalidAddr, "empty pipe name")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pt.mu.Lock()
	defer pt.mu.Unlock()

	if _, ok := pt.endpoints[addr]; ok {
		return nil, errors.Wrap(transport.ErrAddrAlreadyInUse, addr)
	}

	p := &pipe{
		addr:      Addr{Name: addr},
		stream:    make(chan []byte, pt.bufSize),
		closed:    make(chan struct{}),
		transport: pt,
	}
	pt.endpoints[addr] = p

	return p, nil
}

// Dial never fails for a well-formed name.
// Whether anyone listens is checked on every Send, like an unconnected UDP socket.
func (pt *PipeTransport) Dial(ctx context.Context, addr string) (transport.Sender, error) {
	if addr == "" {
		return nil, errors.Wrap(transport.ErrInvalidAddr, "empty pipe name")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &sender{
		remote:    Addr{Name: addr},
		closed:    make(chan struct{}),
		transport: pt,
	}, nil
}

func (pt *PipeTransport) lookup(addr Addr) (*pipe, bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	p, ok := pt.endpoints[addr.Name]
	return p, ok
}

func (pt *PipeTransport) remove(p *pipe) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.endpoints[p.addr.Name] == p {
		delete(pt.endpoints, p.addr.Name)
	}
}
