package symex

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/panbanda/csflow/pkg/cfg"
	"github.com/panbanda/csflow/pkg/semantic"
)

// ErrStackUnderflow is returned when a value is popped from an empty
// stack. It means an instruction consumed more values than were produced
// before it on the same path, which is a bug in the analysis.
var ErrStackUnderflow = errors.New("symbolic stack underflow")

// ProgramState is one path's evaluation stack, constraints and variable
// bindings. States are immutable.
type ProgramState struct {
	stack       []*Value
	constraints map[*Value]Constraints
	bindings    map[*semantic.Symbol]*Value
	visits      map[*cfg.Block]int
}

// NewProgramState returns the initial state: an empty stack and the
// intrinsic constraints of the constants.
func NewProgramState() *ProgramState {
	return &ProgramState{
		constraints: map[*Value]Constraints{
			NullValue:  {Object: Null},
			ThisValue:  {Object: NotNull},
			TrueValue:  {Object: NotNull, Bool: True},
			FalseValue: {Object: NotNull, Bool: False},
		},
		bindings: map[*semantic.Symbol]*Value{},
		visits:   map[*cfg.Block]int{},
	}
}

func (s *ProgramState) clone() *ProgramState {
	c := *s
	return &c
}

// Push returns the state with v on top of the stack.
func (s *ProgramState) Push(v *Value) *ProgramState {
	c := s.clone()
	c.stack = append(slices.Clip(s.stack), v)
	return c
}

// Pop returns the state without its top value, and that value.
func (s *ProgramState) Pop() (*ProgramState, *Value, error) {
	if len(s.stack) == 0 {
		return nil, nil, ErrStackUnderflow
	}
	c := s.clone()
	top := len(s.stack) - 1
	c.stack = s.stack[:top:top]
	return c, s.stack[top], nil
}

// PopN discards the top n values.
func (s *ProgramState) PopN(n int) (*ProgramState, error) {
	if n == 0 {
		return s, nil
	}
	if n > len(s.stack) {
		return nil, fmt.Errorf("%w: popping %d of %d values", ErrStackUnderflow, n, len(s.stack))
	}
	c := s.clone()
	keep := len(s.stack) - n
	c.stack = s.stack[:keep:keep]
	return c, nil
}

// Peek returns the value i positions below the top of the stack, or nil.
func (s *ProgramState) Peek(i int) *Value {
	if i < 0 || i >= len(s.stack) {
		return nil
	}
	return s.stack[len(s.stack)-1-i]
}

// Depth returns the number of values on the stack.
func (s *ProgramState) Depth() int { return len(s.stack) }

// Stack returns a copy of the stack, bottom first.
func (s *ProgramState) Stack() []*Value { return slices.Clone(s.stack) }

// Binding returns the value bound to sym, or nil.
func (s *ProgramState) Binding(sym *semantic.Symbol) *Value { return s.bindings[sym] }

// Bind returns the state with sym bound to v.
func (s *ProgramState) Bind(sym *semantic.Symbol, v *Value) *ProgramState {
	if s.bindings[sym] == v {
		return s
	}
	c := s.clone()
	c.bindings = maps.Clone(s.bindings)
	c.bindings[sym] = v
	return c
}

// Bindings returns the bound symbols ordered by ID.
func (s *ProgramState) Bindings() []*semantic.Symbol {
	syms := slices.Collect(maps.Keys(s.bindings))
	slices.SortFunc(syms, func(a, b *semantic.Symbol) int { return cmp.Compare(a.ID, b.ID) })
	return syms
}

// Constraints returns the facts held about v.
func (s *ProgramState) Constraints(v *Value) Constraints { return s.constraints[v] }

// HasConstraint reports whether c holds for v.
func (s *ProgramState) HasConstraint(v *Value, c Constraint) bool {
	return s.constraints[v].Has(c)
}

// store records c for v alone, without propagating it to operands. It
// returns nil when c contradicts what is known.
func (s *ProgramState) store(v *Value, c Constraint) *ProgramState {
	old := s.constraints[v]
	next, ok := old.with(c)
	if !ok {
		return nil
	}
	if next == old {
		return s
	}
	cp := s.clone()
	cp.constraints = maps.Clone(s.constraints)
	cp.constraints[v] = next
	return cp
}

// SetConstraint returns the states in which c holds for v. There are none
// when c contradicts what is known, and more than one when a compound
// boolean value can satisfy c in several ways.
func (s *ProgramState) SetConstraint(v *Value, c Constraint) []*ProgramState {
	if c == nil {
		return []*ProgramState{s}
	}
	next := s.store(v, c)
	if next == nil {
		return nil
	}
	bc, isBool := c.(BoolConstraint)

	switch v.Kind {
	case ValueLogicalNot:
		var opposite Constraint
		if isBool {
			opposite = bc.OppositeForLogicalNot()
		} else {
			opposite = c.(ObjectConstraint).OppositeForLogicalNot()
		}
		if opposite == nil || !isBool {
			return []*ProgramState{next}
		}
		return next.SetConstraint(v.Left, opposite)

	case ValueAnd, ValueOr, ValueXor:
		if !isBool {
			return []*ProgramState{next}
		}
		var out []*ProgramState
		for _, combo := range boolCombinations(v.Kind, bc) {
			for _, l := range next.SetConstraint(v.Left, combo[0]) {
				out = appendDistinct(out, l.SetConstraint(v.Right, combo[1])...)
			}
		}
		return out

	case ValueEquals, ValueReferenceEquals:
		if !isBool {
			return []*ProgramState{next}
		}
		if bc == True {
			return next.constrainEqual(v.Left, v.Right)
		}
		return next.constrainNotEqual(v.Left, v.Right)
	}
	return []*ProgramState{next}
}

// boolCombinations lists the operand truth values under which an operator
// yields c.
func boolCombinations(kind ValueKind, c BoolConstraint) [][2]BoolConstraint {
	switch {
	case kind == ValueAnd && c == True, kind == ValueOr && c == False:
		return [][2]BoolConstraint{{c, c}}
	case kind == ValueAnd:
		return [][2]BoolConstraint{{True, False}, {False, True}, {False, False}}
	case kind == ValueOr:
		return [][2]BoolConstraint{{True, True}, {True, False}, {False, True}}
	case kind == ValueXor && c == True:
		return [][2]BoolConstraint{{True, False}, {False, True}}
	}
	return [][2]BoolConstraint{{True, True}, {False, False}}
}

func (s *ProgramState) constrainEqual(left, right *Value) []*ProgramState {
	if left == right {
		return []*ProgramState{s}
	}
	states := []*ProgramState{s}
	copyFrom := func(from, to *Value) {
		var out []*ProgramState
		for _, st := range states {
			cs := st.Constraints(from)
			next := []*ProgramState{st}
			if cs.Object != 0 {
				next = flatMap(next, to, cs.Object)
			}
			if cs.Bool != 0 {
				next = flatMap(next, to, cs.Bool)
			}
			out = append(out, next...)
		}
		states = out
	}
	copyFrom(left, right)
	copyFrom(right, left)
	return states
}

func (s *ProgramState) constrainNotEqual(left, right *Value) []*ProgramState {
	if left == right {
		return nil
	}
	states := []*ProgramState{s}
	opposite := func(known, other *Value) {
		var out []*ProgramState
		for _, st := range states {
			cs := st.Constraints(known)
			switch {
			case cs.Object == Null:
				out = append(out, st.SetConstraint(other, NotNull)...)
			case cs.Bool != 0:
				out = append(out, st.SetConstraint(other, cs.Bool.Opposite())...)
			default:
				out = append(out, st)
			}
		}
		states = out
	}
	opposite(left, right)
	opposite(right, left)
	return states
}

func flatMap(states []*ProgramState, v *Value, c Constraint) []*ProgramState {
	var out []*ProgramState
	for _, st := range states {
		out = append(out, st.SetConstraint(v, c)...)
	}
	return out
}

func appendDistinct(dst []*ProgramState, states ...*ProgramState) []*ProgramState {
	for _, st := range states {
		if !slices.ContainsFunc(dst, st.Equivalent) {
			dst = append(dst, st)
		}
	}
	return dst
}

// Equivalent reports whether two states have the same stack, bindings and
// constraints. Loop visit counts are not compared.
func (s *ProgramState) Equivalent(o *ProgramState) bool {
	if s == o {
		return true
	}
	return slices.Equal(s.stack, o.stack) &&
		maps.Equal(s.bindings, o.bindings) &&
		maps.Equal(s.constraints, o.constraints)
}

// Fingerprint hashes what Equivalent compares, so equivalent states have
// equal fingerprints.
func (s *ProgramState) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [8]byte
	word := func(n int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(n))
		_, _ = h.Write(buf[:])
	}
	for _, v := range s.stack {
		word(v.id)
	}
	word(-100)
	for _, sym := range s.Bindings() {
		word(int64(sym.ID))
		word(s.bindings[sym].id)
	}
	word(-101)
	values := slices.Collect(maps.Keys(s.constraints))
	slices.SortFunc(values, func(a, b *Value) int { return cmp.Compare(a.id, b.id) })
	for _, v := range values {
		cs := s.constraints[v]
		word(v.id)
		word(int64(cs.Object)<<8 | int64(cs.Bool))
	}
	return h.Sum64()
}

// visit records one more visit of b on this path and returns the count.
func (s *ProgramState) visit(b *cfg.Block) (*ProgramState, int) {
	c := s.clone()
	c.visits = maps.Clone(s.visits)
	c.visits[b]++
	return c, c.visits[b]
}

// retain drops bindings of symbols keep rejects and then the constraints
// of values no longer reachable from the stack or a binding.
func (s *ProgramState) retain(keep func(*semantic.Symbol) bool) *ProgramState {
	c := s.clone()
	c.bindings = make(map[*semantic.Symbol]*Value, len(s.bindings))
	for sym, v := range s.bindings {
		if keep(sym) {
			c.bindings[sym] = v
		}
	}

	live := map[*Value]bool{NullValue: true, ThisValue: true, TrueValue: true, FalseValue: true}
	var mark func(*Value)
	mark = func(v *Value) {
		if v == nil || live[v] {
			return
		}
		live[v] = true
		mark(v.Left)
		mark(v.Right)
	}
	for _, v := range c.stack {
		mark(v)
	}
	for _, v := range c.bindings {
		mark(v)
	}
	c.constraints = make(map[*Value]Constraints, len(live))
	for v, cs := range s.constraints {
		if live[v] {
			c.constraints[v] = cs
		}
	}
	return c
}

func (s *ProgramState) String() string {
	var b strings.Builder
	b.WriteString("stack=[")
	for i, v := range s.stack {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(v.String())
	}
	b.WriteString("]")
	for _, sym := range s.Bindings() {
		v := s.bindings[sym]
		fmt.Fprintf(&b, " %s=%s%s", sym.Name, v, s.constraints[v])
	}
	return b.String()
}
