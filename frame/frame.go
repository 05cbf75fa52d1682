// Package frame enforces the envelope contract of the relay wire format:
// every datagram is an OSC bundle holding exactly one OSC message.
package frame

import (
	"bytes"
	"encoding/binary"

	"github.com/hypebeast/go-osc/osc"
	"github.com/pkg/errors"
)

var (
	ErrMalformedPacket     = errors.New("frame: malformed packet")
	ErrEmptyEnvelope       = errors.New("frame: empty envelope")
	ErrMultiplexedEnvelope = errors.New("frame: multiple messages in envelope")
	ErrNestedEnvelope      = errors.New("frame: nested envelope")
	ErrBareMessage         = errors.New("frame: message without envelope")
)

// Policy decides what happens to a message that arrives without an envelope.
type Policy uint8

const (
	// PolicyTolerant accepts bare messages. Callers should still report them.
	PolicyTolerant Policy = iota
	// PolicyStrict rejects bare messages with [ErrBareMessage].
	PolicyStrict
)

func (p Policy) String() string {
	switch p {
	case PolicyTolerant:
		return "tolerant"
	case PolicyStrict:
		return "strict"
	default:
		return "unknown"
	}
}

const (
	bundleHeaderSize = 16 // tag and timetag.
	elementSizeLen   = 4
)

var bundleTag = []byte("#bundle\x00")

// Decode parses one datagram.
// Any failure of the underlying codec, including a panic, is reported as [ErrMalformedPacket].
func Decode(b []byte) (osc.Packet, error) {
	if len(b) == 0 {
		return nil, errors.Wrap(ErrMalformedPacket, "empty datagram")
	}
	if bytes.HasPrefix(b, bundleTag) {
		return decodeBundle(b)
	}
	return parse(b)
}

// decodeBundle splits a bundle by its element size prefixes and decodes each element on its own.
// The elements must cover the datagram exactly.
func decodeBundle(b []byte) (osc.Packet, error) {
	if len(b) < bundleHeaderSize {
		return nil, errors.Wrap(ErrMalformedPacket, "short bundle header")
	}

	header, err := parse(b[:bundleHeaderSize])
	if err != nil {
		return nil, err
	}
	bundle, ok := header.(*osc.Bundle)
	if !ok {
		return nil, errors.Wrapf(ErrMalformedPacket, "bundle header decoded as %T", header)
	}
	bundle.Messages, bundle.Bundles = nil, nil

	for rest := b[bundleHeaderSize:]; len(rest) > 0; {
		if len(rest) < elementSizeLen {
			return nil, errors.Wrapf(ErrMalformedPacket, "%d trailing bytes", len(rest))
		}
		size := binary.BigEndian.Uint32(rest)
		rest = rest[elementSizeLen:]

		if size == 0 || size%4 != 0 || uint64(size) > uint64(len(rest)) {
			return nil, errors.Wrapf(ErrMalformedPacket, "element size %d with %d bytes left", size, len(rest))
		}

		elem, err := Decode(rest[:size])
		if err != nil {
			return nil, err
		}
		switch elem := elem.(type) {
		case *osc.Message:
			bundle.Messages = append(bundle.Messages, elem)
		case *osc.Bundle:
			bundle.Bundles = append(bundle.Bundles, elem)
		default:
			return nil, errors.Wrapf(ErrMalformedPacket, "unexpected element type %T", elem)
		}

		rest = rest[size:]
	}

	return bundle, nil
}

// parse hands one complete packet to the codec.
func parse(b []byte) (p osc.Packet, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, errors.Wrapf(ErrMalformedPacket, "codec panic: %v", r)
		}
	}()

	p, err = osc.ParsePacket(string(b))
	if err != nil {
		return nil, errors.Wrap(ErrMalformedPacket, err.Error())
	}
	if p == nil {
		return nil, errors.Wrap(ErrMalformedPacket, "no packet")
	}

	return p, nil
}

// Unwrap extracts the single message carried by p.
// bare reports whether p was a message without an envelope.
func Unwrap(p osc.Packet, policy Policy) (msg *osc.Message, bare bool, err error) {
	switch p := p.(type) {
	case *osc.Message:
		if policy == PolicyStrict {
			return nil, true, ErrBareMessage
		}
		return p, true, nil
	case *osc.Bundle:
		switch n := len(p.Messages) + len(p.Bundles); {
		case n == 0:
			return nil, false, ErrEmptyEnvelope
		case n > 1:
			return nil, false, errors.Wrapf(ErrMultiplexedEnvelope, "%d elements", n)
		case len(p.Bundles) == 1:
			return nil, false, ErrNestedEnvelope
		}
		if p.Messages[0] == nil {
			return nil, false, ErrEmptyEnvelope
		}
		return p.Messages[0], false, nil
	default:
		return nil, false, errors.Wrapf(ErrMalformedPacket, "unexpected packet type %T", p)
	}
}

// Wrap puts msg into the canonical envelope.
// The timetag stays zero, as peers expect.
func Wrap(msg *osc.Message) *osc.Bundle {
	return &osc.Bundle{Messages: []*osc.Message{msg}}
}

// Encode serializes msg inside the canonical envelope.
func Encode(msg *osc.Message) ([]byte, error) {
	b, err := Wrap(msg).MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "encoding envelope")
	}
	return b, nil
}
