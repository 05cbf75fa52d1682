// Package transport defines the datagram endpoints the relay moves bytes through.
package transport

type Protocol string

const (
	UDP  Protocol = "udp"
	Pipe Protocol = "pipe"
)

// Addr identifies an endpoint. [net.Addr] satisfies it.
type Addr interface {
	Network() string
	String() string
}
