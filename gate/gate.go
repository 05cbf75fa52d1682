// Package gate models the quantum gate operations carried over OSC.
//
// Reference: OSC 1.0 https://opensoundcontrol.stanford.edu/spec-1_0.html
package gate

import (
	"github.com/pkg/errors"
)

var (
	ErrUnknownAddress = errors.New("unknown address")
	ErrArityMismatch  = errors.New("arity mismatch")
	ErrUnknownOp      = errors.New("unknown op")
)

// Op is one of the gates that can be relayed.
type Op uint8

const (
	InitZero Op = iota + 1
	X
	Y
	Z
	H
	S
	Sdg
	T
	Tdg
	CX
	Mz
)

// MaxArity is the largest number of operands an op takes.
const MaxArity = 4

type opInfo struct {
	address string
	arity   int
}

// Adding a gate means adding one constant and one row here.
var opTable = map[Op]opInfo{
	InitZero: {"/InitZero", 2},
	X:        {"/X", 2},
	Y:        {"/Y", 2},
	Z:        {"/Z", 2},
	H:        {"/H", 2},
	S:        {"/S", 2},
	Sdg:      {"/Sdg", 2},
	T:        {"/T", 2},
	Tdg:      {"/Tdg", 2},
	CX:       {"/CX", 4},
	Mz:       {"/Mz", 2},
}

var addrTable = func() map[string]Op {
	m := make(map[string]Op, len(opTable))
	for op, info := range opTable {
		m[info.address] = op
	}
	return m
}()

// Ops returns every op in declaration order.
func Ops() []Op {
	return []Op{InitZero, X, Y, Z, H, S, Sdg, T, Tdg, CX, Mz}
}

// ParseOp looks up the op for an OSC address. Matching is exact.
func ParseOp(address string) (Op, error) {
	op, ok := addrTable[address]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownAddress, "%q", address)
	}
	return op, nil
}

func (o Op) Valid() bool {
	_, ok := opTable[o]
	return ok
}

// Address returns the OSC address, or "" for an invalid op.
func (o Op) Address() string { return opTable[o].address }

// Arity returns the number of operands, or 0 for an invalid op.
func (o Op) Arity() int { return opTable[o].arity }

func (o Op) String() string {
	if !o.Valid() {
		return "Op(invalid)"
	}
	return o.Address()[1:]
}
