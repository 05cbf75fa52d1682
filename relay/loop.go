package relay

import (
	"context"
	"fmt"

	"osc-relay/frame"
	"osc-relay/lib/ds/queue"
	"osc-relay/transport"

	"github.com/hypebeast/go-osc/osc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Codec translates between OSC messages and one direction's typed values.
type Codec[T fmt.Stringer] interface {
	Decode(msg *osc.Message) (T, error)
	Encode(v T) *osc.Message
}

// receiveLoop is the single producer of its queue.
// Malformed datagrams are dropped; only transport and queue errors end it.
type receiveLoop[T fmt.Stringer] struct {
	conn    transport.Receiver
	queue   *queue.Queue[T]
	codec   Codec[T]
	policy  frame.Policy
	bufSize uint

	metrics directionMetrics
	logger  zerolog.Logger
}

func (l *receiveLoop[T]) run(ctx context.Context) error {
	buf := make([]byte, l.bufSize)

	for {
		n, err := l.conn.Receive(ctx, buf)
		if err != nil {
			return errors.Wrap(err, "receiving datagram")
		}
		l.metrics.received.Inc()

		v, err := l.translate(buf[:n])
		if err != nil {
			l.metrics.drop(err)
			l.logger.Warn().Err(err).Int("bytes", n).Msg("dropping packet")
			continue
		}

		if err := l.queue.Push(ctx, v); err != nil {
			return errors.Wrapf(err, "enqueueing %s", v)
		}
		l.metrics.depth.Set(float64(l.queue.Len()))
	}
}

func (l *receiveLoop[T]) translate(b []byte) (T, error) {
	var zero T

	packet, err := frame.Decode(b)
	if err != nil {
		return zero, err
	}

	msg, bare, err := frame.Unwrap(packet, l.policy)
	if err != nil {
		return zero, err
	}
	if bare {
		l.logger.Warn().Str("address", msg.Address).Msg("message without bundle")
	}

	return l.codec.Decode(msg)
}

// sendLoop is the single consumer of its queue.
// It ends cleanly once the queue is closed and drained.
type sendLoop[T fmt.Stringer] struct {
	conn  transport.Sender
	queue *queue.Queue[T]
	codec Codec[T]

	metrics directionMetrics
	logger  zerolog.Logger
}

func (l *sendLoop[T]) run(ctx context.Context) error {
	for {
		v, err := l.queue.Pop(ctx)
		if errors.Is(err, queue.ErrEndOfStream) {
			l.logger.Debug().Msg("queue drained")
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "dequeueing")
		}
		l.metrics.depth.Set(float64(l.queue.Len()))

		b, err := frame.Encode(l.codec.Encode(v))
		if err != nil {
			return errors.Wrapf(err, "encoding %s", v)
		}

		// No retry: a lost datagram is not recoverable at this layer.
		if err := l.conn.Send(ctx, b); err != nil {
			return errors.Wrapf(err, "sending %s", v)
		}
		l.metrics.forwarded.Inc()
		l.logger.Debug().Stringer("item", v).Msg("relayed")
	}
}
