package gate

import (
	"fmt"
	"strings"

	"github.com/hypebeast/go-osc/osc"
	"github.com/pkg/errors"
)

// instruction holds the shape shared by Command and Response.
// Operands past the op's arity are always zero, so values compare with ==.
type instruction struct {
	op       Op
	operands [MaxArity]int32
}

func newInstruction(op Op, operands []int32) (instruction, error) {
	if !op.Valid() {
		return instruction{}, errors.Wrapf(ErrUnknownOp, "%d", op)
	}
	if len(operands) != op.Arity() {
		return instruction{}, errors.Wrapf(ErrArityMismatch, "%s takes %d operands, got %d", op, op.Arity(), len(operands))
	}

	ins := instruction{op: op}
	copy(ins.operands[:], operands)
	return ins, nil
}

// decodeInstruction maps an OSC message onto an op and its operands.
// Every argument must be an OSC int32; arguments past the arity are ignored.
func decodeInstruction(msg *osc.Message) (instruction, error) {
	op, err := ParseOp(msg.Address)
	if err != nil {
		return instruction{}, err
	}

	ins := instruction{op: op}
	for idx, arg := range msg.Arguments {
		v, ok := arg.(int32)
		if !ok {
			return instruction{}, errors.Wrapf(ErrArityMismatch, "%s: argument %d is %T, not int32", op, idx, arg)
		}
		if idx < op.Arity() {
			ins.operands[idx] = v
		}
	}

	if len(msg.Arguments) < op.Arity() {
		return instruction{}, errors.Wrapf(ErrArityMismatch, "%s: want %d arguments, got %d", op, op.Arity(), len(msg.Arguments))
	}

	return ins, nil
}

func (i instruction) Op() Op { return i.op }

// Operands returns a copy of the operands, exactly Arity() long.
func (i instruction) Operands() []int32 {
	return append([]int32(nil), i.operands[:i.op.Arity()]...)
}

// Encode returns the canonical OSC message. It never fails.
func (i instruction) Encode() *osc.Message {
	args := make([]interface{}, 0, i.op.Arity())
	for _, v := range i.operands[:i.op.Arity()] {
		args = append(args, v)
	}
	return &osc.Message{Address: i.op.Address(), Arguments: args}
}

func (i instruction) String() string {
	parts := make([]string, 0, i.op.Arity())
	for _, v := range i.operands[:i.op.Arity()] {
		parts = append(parts, fmt.Sprint(v))
	}
	return i.op.String() + "(" + strings.Join(parts, ", ") + ")"
}

// Command flows host to device.
type Command struct{ instruction }

func NewCommand(op Op, operands ...int32) (Command, error) {
	ins, err := newInstruction(op, operands)
	if err != nil {
		return Command{}, err
	}
	return Command{ins}, nil
}

func DecodeCommand(msg *osc.Message) (Command, error) {
	ins, err := decodeInstruction(msg)
	if err != nil {
		return Command{}, errors.Wrap(err, "decoding command")
	}
	return Command{ins}, nil
}

// Response flows device to host. It mirrors Command but is a distinct type
// so the two directions can't be mixed up.
type Response struct{ instruction }

func NewResponse(op Op, operands ...int32) (Response, error) {
	ins, err := newInstruction(op, operands)
	if err != nil {
		return Response{}, err
	}
	return Response{ins}, nil
}

func DecodeResponse(msg *osc.Message) (Response, error) {
	ins, err := decodeInstruction(msg)
	if err != nil {
		return Response{}, errors.Wrap(err, "decoding response")
	}
	return Response{ins}, nil
}

// CommandCodec translates commands for the relay.
type CommandCodec struct{}

func (CommandCodec) Decode(msg *osc.Message) (Command, error) {
	return DecodeCommand(msg)
}

func (CommandCodec) Encode(c Command) *osc.Message {
	return c.Encode()
}

// ResponseCodec translates responses for the relay.
type ResponseCodec struct{}

func (ResponseCodec) Decode(msg *osc.Message) (Response, error) {
	return DecodeResponse(msg)
}

func (ResponseCodec) Encode(r Response) *osc.Message {
	return r.Encode()
}
