// Package udp implements the relay transport on top of UDP sockets.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc768
package udp

import (
	"context"
	"net"
	"time"

	"osc-relay/transport"

	"github.com/pkg/errors"
)

// aLongTimeAgo is a deadline that has always passed. Setting it unblocks pending I/O.
var aLongTimeAgo = time.Unix(1, 0)

const network = string(transport.UDP)

type Network struct{}

var _ transport.Network = Network{}

func (Network) Listen(ctx context.Context, addr string) (transport.Receiver, error) {
	laddr, err := resolve(ctx, addr)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, errors.Wrapf(err, "binding %s", addr)
	}

	return &receiver{conn: conn}, nil
}

// Dial opens an unconnected socket on an ephemeral port that writes to addr.
// An unconnected socket does not surface ICMP port unreachable,
// so a peer that is not up yet can't fail the sender.
func (Network) Dial(ctx context.Context, addr string) (transport.Sender, error) {
	raddr, err := resolve(ctx, addr)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP(network, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening socket for %s", addr)
	}

	return &sender{conn: conn, raddr: raddr}, nil
}

func resolve(ctx context.Context, addr string) (*net.UDPAddr, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, errors.Wrap(transport.ErrInvalidAddr, err.Error())
	}

	udpAddr, err := net.ResolveUDPAddr(network, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", addr)
	}

	return udpAddr, nil
}

type receiver struct {
	conn *net.UDPConn
}

var _ transport.Receiver = (*receiver)(nil)

func (r *receiver) LocalAddr() transport.Addr { return r.conn.LocalAddr() }
func (r *receiver) Close() error              { return closeConn(r.conn) }

func (r *receiver) Receive(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	defer interruptOnDone(ctx, r.conn.SetReadDeadline)()

	n, _, err := r.conn.ReadFromUDP(p)
	if err != nil {
		return 0, mapErr(ctx, err, "reading datagram")
	}

	return n, nil
}

type sender struct {
	conn  *net.UDPConn
	raddr *net.UDPAddr
}

var _ transport.Sender = (*sender)(nil)

func (s *sender) RemoteAddr() transport.Addr { return s.raddr }
func (s *sender) Close() error               { return closeConn(s.conn) }

func (s *sender) Send(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	defer interruptOnDone(ctx, s.conn.SetWriteDeadline)()

	if _, err := s.conn.WriteToUDP(p, s.raddr); err != nil {
		return mapErr(ctx, err, "writing datagram")
	}

	return nil
}

// interruptOnDone expires the deadline once ctx is done, unblocking pending I/O.
// The returned func clears it again, after an interruption already in flight has landed.
func interruptOnDone(ctx context.Context, setDeadline func(time.Time) error) (release func()) {
	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(interrupted)
		_ = setDeadline(aLongTimeAgo)
	})

	return func() {
		if !stop() {
			<-interrupted
			_ = setDeadline(time.Time{})
		}
	}
}

// closeConn makes Close idempotent.
func closeConn(conn *net.UDPConn) error {
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func mapErr(ctx context.Context, err error, op string) error {
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, net.ErrClosed):
		return transport.ErrConnClosed
	default:
		return errors.Wrap(err, op)
	}
}
