// Package symex explores a control-flow graph path by path with symbolic
// values and constraints on them.
//
// A ProgramState is immutable; every operation returns a new state that
// shares what it did not change. Exploration keeps a work list of
// (block, state) pairs, deduplicates equivalent states per block and stops
// at the configured budgets.
package symex

import (
	"strconv"
	"sync/atomic"
)

// ValueKind is the shape of a symbolic value.
type ValueKind int

const (
	ValueConstant ValueKind = iota
	ValueUnknown
	ValueLogicalNot
	ValueMemberAccess
	ValueAnd
	ValueOr
	ValueXor
	ValueEquals
	ValueReferenceEquals
)

// Value is a symbolic value. Two values are the same only when they are
// the same *Value; operands are compared by identity too.
type Value struct {
	id   int64
	Kind ValueKind
	// Name is the constant name or the accessed member.
	Name  string
	Left  *Value
	Right *Value
}

var lastValueID atomic.Int64

func newValue(kind ValueKind, left, right *Value) *Value {
	return &Value{id: lastValueID.Add(1), Kind: kind, Left: left, Right: right}
}

// The constant values. Each has intrinsic constraints in every initial
// state.
var (
	NullValue  = &Value{id: -1, Kind: ValueConstant, Name: "null"}
	ThisValue  = &Value{id: -2, Kind: ValueConstant, Name: "this"}
	TrueValue  = &Value{id: -3, Kind: ValueConstant, Name: "true"}
	FalseValue = &Value{id: -4, Kind: ValueConstant, Name: "false"}
)

// NewUnknown returns a fresh value nothing is known about.
func NewUnknown() *Value { return newValue(ValueUnknown, nil, nil) }

// NewNot returns !operand.
func NewNot(operand *Value) *Value { return newValue(ValueLogicalNot, operand, nil) }

// NewMember returns the value of receiver.name.
func NewMember(receiver *Value, name string) *Value {
	v := newValue(ValueMemberAccess, receiver, nil)
	v.Name = name
	return v
}

// NewAnd returns the non-short-circuit conjunction left & right.
func NewAnd(left, right *Value) *Value { return newValue(ValueAnd, left, right) }

// NewOr returns the non-short-circuit disjunction left | right.
func NewOr(left, right *Value) *Value { return newValue(ValueOr, left, right) }

// NewXor returns left ^ right.
func NewXor(left, right *Value) *Value { return newValue(ValueXor, left, right) }

// NewValueEquals returns the value of left.Equals(right) or left == right
// under value equality.
func NewValueEquals(left, right *Value) *Value { return newValue(ValueEquals, left, right) }

// NewReferenceEquals returns the value of ReferenceEquals(left, right).
func NewReferenceEquals(left, right *Value) *Value {
	return newValue(ValueReferenceEquals, left, right)
}

// ID returns the identity of the value, stable for the process lifetime.
func (v *Value) ID() int64 { return v.id }

func (v *Value) String() string {
	if v == nil {
		return "<nil>"
	}
	switch v.Kind {
	case ValueConstant:
		return v.Name
	case ValueLogicalNot:
		return "!" + v.Left.String()
	case ValueMemberAccess:
		return v.Left.String() + "." + v.Name
	case ValueAnd:
		return "(" + v.Left.String() + " & " + v.Right.String() + ")"
	case ValueOr:
		return "(" + v.Left.String() + " | " + v.Right.String() + ")"
	case ValueXor:
		return "(" + v.Left.String() + " ^ " + v.Right.String() + ")"
	case ValueEquals:
		return v.Left.String() + ".Equals(" + v.Right.String() + ")"
	case ValueReferenceEquals:
		return "ReferenceEquals(" + v.Left.String() + ", " + v.Right.String() + ")"
	}
	return "sv" + strconv.FormatInt(v.id, 10)
}
