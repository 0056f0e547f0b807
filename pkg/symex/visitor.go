package symex

import (
	"github.com/panbanda/csflow/pkg/cfg"
	"github.com/panbanda/csflow/pkg/semantic"
	"github.com/panbanda/csflow/pkg/syntax"
)

// visit applies the effect of one instruction to s. The result holds no
// state when the instruction makes the path infeasible.
func (e *explorer) visit(n *syntax.Node, s *ProgramState) ([]*ProgramState, error) {
	out, err := e.effect(n, s)
	if err != nil {
		return nil, err
	}
	if !cfg.IsStatementExpression(n) {
		return out, nil
	}
	for i, st := range out {
		if out[i], err = st.PopN(1); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func one(s *ProgramState) []*ProgramState { return []*ProgramState{s} }

func (e *explorer) effect(n *syntax.Node, s *ProgramState) ([]*ProgramState, error) {
	if cfg.IsShortCircuit(n) {
		// The value computed by the branches is already on the stack.
		return one(s), nil
	}
	if n.Kind.IsPattern() {
		return one(e.bindDesignations(n, s).Push(NewUnknown())), nil
	}

	switch n.Kind {
	case syntax.KindIdentifier:
		sym := e.oracle.ReferencedSymbol(n)
		if !e.isTracked(sym) {
			return one(s.Push(NewUnknown())), nil
		}
		v := s.Binding(sym)
		if v == nil {
			v = NewUnknown()
			s = s.Bind(sym, v)
		}
		return one(s.Push(v)), nil

	case syntax.KindThis, syntax.KindBase:
		return one(s.Push(ThisValue)), nil
	case syntax.KindNull:
		return one(s.Push(NullValue)), nil
	case syntax.KindTrue:
		return one(s.Push(TrueValue)), nil
	case syntax.KindFalse:
		return one(s.Push(FalseValue)), nil

	case syntax.KindLiteral, syntax.KindObjectCreation, syntax.KindArrayCreation, syntax.KindAnonymousObject,
		syntax.KindInterpolatedString, syntax.KindTypeof, syntax.KindSizeof, syntax.KindLambda,
		syntax.KindAnonymousMethod, syntax.KindQuery, syntax.KindTuple:
		s, err := s.PopN(len(cfg.Operands(n)))
		if err != nil {
			return nil, err
		}
		if n.Kind == syntax.KindObjectCreation {
			s = e.rebindByRefArguments(n.Slot(0), s)
		}
		return pushNotNull(s), nil

	case syntax.KindDefault, syntax.KindPredefinedType, syntax.KindTypeExpr:
		return one(s.Push(NewUnknown())), nil

	case syntax.KindAssignment:
		if syntax.StripParens(n.Slot(0)).Is(syntax.KindIdentifier) {
			s, v, err := s.Pop()
			if err != nil {
				return nil, err
			}
			if sym := e.identifierSymbol(n.Slot(0)); e.isTracked(sym) {
				s = s.Bind(sym, v)
			}
			return one(s.Push(v)), nil
		}
		s, rhs, err := s.Pop()
		if err != nil {
			return nil, err
		}
		if s, err = s.PopN(1); err != nil {
			return nil, err
		}
		return one(s.Push(rhs)), nil

	case syntax.KindCompoundAssignment:
		s, err := s.PopN(2)
		if err != nil {
			return nil, err
		}
		return one(e.assignFresh(n.Slot(0), s)), nil

	case syntax.KindPrefixUnary, syntax.KindPostfixUnary:
		s, err := s.PopN(1)
		if err != nil {
			return nil, err
		}
		if n.Operator == "++" || n.Operator == "--" {
			return one(e.assignFresh(n.Slot(0), s)), nil
		}
		return one(s.Push(NewUnknown())), nil

	case syntax.KindLogicalNot:
		s, v, err := s.Pop()
		if err != nil {
			return nil, err
		}
		return one(s.Push(NewNot(v))), nil

	case syntax.KindBinary:
		return e.binary(n, s)

	case syntax.KindIsPattern:
		s, v, err := s.Pop()
		if err != nil {
			return nil, err
		}
		pattern := n.Slot(1)
		if pattern.Is(syntax.KindConstantPattern) && syntax.StripParens(pattern.Slot(0)).Is(syntax.KindNull) {
			return e.nullComparison(s, v, NullValue, n.Slot(0), pattern.Slot(0)), nil
		}
		return one(e.bindDesignations(pattern, s).Push(NewUnknown())), nil

	case syntax.KindIs, syntax.KindAs, syntax.KindAwait, syntax.KindThrowExpression:
		s, err := s.PopN(1)
		if err != nil {
			return nil, err
		}
		return one(s.Push(NewUnknown())), nil

	case syntax.KindCast, syntax.KindCheckedExpression:
		return one(s), nil

	case syntax.KindMemberAccess, syntax.KindMemberBinding:
		s, receiver, err := s.Pop()
		if err != nil {
			return nil, err
		}
		return one(s.Push(NewMember(receiver, n.Name))), nil

	case syntax.KindElementAccess:
		s, err := s.PopN(len(cfg.Operands(n)))
		if err != nil {
			return nil, err
		}
		return one(e.rebindByRefArguments(n.Slot(1), s).Push(NewUnknown())), nil

	case syntax.KindElementBinding:
		s, err := s.PopN(len(cfg.Operands(n)) + 1)
		if err != nil {
			return nil, err
		}
		return one(s.Push(NewUnknown())), nil

	case syntax.KindInitializer:
		s, err := s.PopN(len(cfg.Operands(n)))
		if err != nil {
			return nil, err
		}
		if n.Parent.Is(syntax.KindObjectCreation, syntax.KindArrayCreation) {
			// The created object is already on the stack.
			return one(s), nil
		}
		return one(s.Push(NewUnknown())), nil

	case syntax.KindDeclarator:
		if n.Slot(0) == nil {
			return one(s), nil
		}
		s, v, err := s.Pop()
		if err != nil {
			return nil, err
		}
		if sym := e.oracle.DeclaredSymbol(n); e.isTracked(sym) {
			s = s.Bind(sym, v)
		}
		return one(s), nil

	case syntax.KindDeclarationExpression:
		v := NewUnknown()
		if sym := e.oracle.DeclaredSymbol(n); e.isTracked(sym) {
			s = s.Bind(sym, v)
		}
		return one(s.Push(v)), nil

	case syntax.KindLocalFunction:
		return one(s), nil

	case syntax.KindInvocation:
		return e.invocation(n, s)
	}

	s, err := s.PopN(len(cfg.Operands(n)))
	if err != nil {
		return nil, err
	}
	if n.Kind.IsExpression() {
		s = s.Push(NewUnknown())
	}
	return one(s), nil
}

func (e *explorer) binary(n *syntax.Node, s *ProgramState) ([]*ProgramState, error) {
	s, right, err := s.Pop()
	if err != nil {
		return nil, err
	}
	s, left, err := s.Pop()
	if err != nil {
		return nil, err
	}

	switch n.Operator {
	case "==", "!=":
		var out []*ProgramState
		if isNullLiteral(n.Slot(0)) || isNullLiteral(n.Slot(1)) {
			out = e.nullComparison(s, left, right, n.Slot(0), n.Slot(1))
		} else {
			out = valueEquals(s, left, right)
		}
		if n.Operator == "!=" {
			for i, st := range out {
				rest, eq, _ := st.Pop()
				out[i] = rest.Push(NewNot(eq))
			}
		}
		return out, nil
	case "&":
		return one(s.Push(NewAnd(left, right))), nil
	case "|":
		return one(s.Push(NewOr(left, right))), nil
	case "^":
		return one(s.Push(NewXor(left, right))), nil
	}
	return one(s.Push(NewUnknown())), nil
}

func isNullLiteral(n *syntax.Node) bool {
	return syntax.StripParens(n).Is(syntax.KindNull)
}

func pushNotNull(s *ProgramState) []*ProgramState {
	v := NewUnknown()
	return s.Push(v).SetConstraint(v, NotNull)
}

// valueEquals pushes left.Equals(right), which is known to hold when both
// sides are the same value.
func valueEquals(s *ProgramState, left, right *Value) []*ProgramState {
	r := NewValueEquals(left, right)
	s = s.Push(r)
	if left == right {
		return s.SetConstraint(r, True)
	}
	return one(s)
}

// nullComparison applies == or is against a null literal. A value-typed
// operand of such a comparison is never null, so it is constrained NotNull
// first.
func (e *explorer) nullComparison(s *ProgramState, left, right *Value, leftNode, rightNode *syntax.Node) []*ProgramState {
	states := one(s)
	for _, op := range [...]struct {
		v *Value
		n *syntax.Node
	}{{left, leftNode}, {right, rightNode}} {
		if !e.isValueType(op.n) {
			continue
		}
		var next []*ProgramState
		for _, st := range states {
			next = append(next, st.SetConstraint(op.v, NotNull)...)
		}
		states = next
	}

	var out []*ProgramState
	for _, st := range states {
		out = append(out, e.referenceEquals(st, left, right, leftNode, rightNode)...)
	}
	return out
}

// referenceEquals pushes ReferenceEquals(left, right) and records its
// outcome when the operands already decide it.
func (e *explorer) referenceEquals(s *ProgramState, left, right *Value, leftNode, rightNode *syntax.Node) []*ProgramState {
	r := NewReferenceEquals(left, right)
	s = s.Push(r)
	switch {
	case s.HasConstraint(left, Null) && s.HasConstraint(right, Null):
		return s.SetConstraint(r, True)
	case leftNode != nil && rightNode != nil &&
		(e.notNullValueType(s, left, leftNode) || e.notNullValueType(s, right, rightNode)):
		return s.SetConstraint(r, False)
	case s.HasConstraint(left, Null) && s.HasConstraint(right, NotNull),
		s.HasConstraint(left, NotNull) && s.HasConstraint(right, Null):
		return s.SetConstraint(r, False)
	case left == right:
		return s.SetConstraint(r, True)
	}
	return one(s)
}

func (e *explorer) isValueType(n *syntax.Node) bool {
	return n != nil && e.oracle.IsValueType(e.oracle.TypeOf(n))
}

// notNullValueType reports whether v is a value-typed operand already known
// not to be null. Boxing such a value always yields a fresh reference.
func (e *explorer) notNullValueType(s *ProgramState, v *Value, n *syntax.Node) bool {
	return s.HasConstraint(v, NotNull) && e.isValueType(n)
}

// identifierSymbol returns the symbol named by n when n is a plain
// identifier, possibly parenthesized.
func (e *explorer) identifierSymbol(n *syntax.Node) *semantic.Symbol {
	n = syntax.StripParens(n)
	if !n.Is(syntax.KindIdentifier) {
		return nil
	}
	return e.oracle.ReferencedSymbol(n)
}

// assignFresh pushes a new unknown value and binds it to target when
// target is a tracked variable.
func (e *explorer) assignFresh(target *syntax.Node, s *ProgramState) *ProgramState {
	v := NewUnknown()
	if sym := e.identifierSymbol(target); e.isTracked(sym) {
		s = s.Bind(sym, v)
	}
	return s.Push(v)
}

// bindDesignations binds every variable a pattern declares to a fresh
// value.
func (e *explorer) bindDesignations(pattern *syntax.Node, s *ProgramState) *ProgramState {
	syntax.Inspect(pattern, func(n *syntax.Node) bool {
		if n.Is(syntax.KindDeclarationPattern, syntax.KindVarPattern) {
			if sym := e.oracle.DeclaredSymbol(n); e.isTracked(sym) {
				s = s.Bind(sym, NewUnknown())
			}
		}
		return true
	})
	return s
}

// rebindByRefArguments gives tracked variables passed by out or ref a
// fresh value.
func (e *explorer) rebindByRefArguments(args *syntax.Node, s *ProgramState) *ProgramState {
	for _, a := range args.Children() {
		if a.Kind != syntax.KindArgument || (a.Modifier != "out" && a.Modifier != "ref") {
			continue
		}
		if sym := e.identifierSymbol(a.Slot(0)); e.isTracked(sym) {
			s = s.Bind(sym, NewUnknown())
		}
	}
	return s
}
