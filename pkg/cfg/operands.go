package cfg

import "github.com/panbanda/csflow/pkg/syntax"

// Operands returns the child expressions of n that the builder emits as
// instructions ahead of n, in evaluation order. Each of them leaves exactly
// one value for n to consume.
//
// Binding expressions also consume the receiver left by the enclosing
// conditional access, which is not a child and is not listed here.
func Operands(n *syntax.Node) []*syntax.Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case syntax.KindAssignment:
		if isIdentifierTarget(n.Slot(0)) {
			return present(n.Slot(1))
		}
		return present(n.Slot(0), n.Slot(1))

	case syntax.KindInvocation:
		if IsNameof(n) {
			return nil
		}
		return append(present(n.Slot(0)), arguments(n.Slot(1))...)

	case syntax.KindElementAccess:
		return append(present(n.Slot(0)), arguments(n.Slot(1))...)

	case syntax.KindElementBinding:
		return arguments(n.Slot(0))

	case syntax.KindObjectCreation, syntax.KindArrayCreation:
		return arguments(n.Slot(0))

	case syntax.KindInitializer, syntax.KindAnonymousObject, syntax.KindInterpolatedString,
		syntax.KindTuple:
		return flatten(n.Children())

	case syntax.KindCompoundAssignment, syntax.KindBinary:
		return present(n.Slot(0), n.Slot(1))

	case syntax.KindLogicalNot, syntax.KindPrefixUnary, syntax.KindPostfixUnary, syntax.KindMemberAccess,
		syntax.KindCast, syntax.KindAs, syntax.KindIs, syntax.KindIsPattern, syntax.KindAwait,
		syntax.KindCheckedExpression, syntax.KindThrowExpression:
		return present(n.Slot(0))

	case syntax.KindIdentifier, syntax.KindThis, syntax.KindBase, syntax.KindNull, syntax.KindTrue,
		syntax.KindFalse, syntax.KindLiteral, syntax.KindPredefinedType, syntax.KindMemberBinding,
		syntax.KindLambda, syntax.KindAnonymousMethod, syntax.KindQuery, syntax.KindLocalFunction,
		syntax.KindDeclarationExpression, syntax.KindTypeof, syntax.KindSizeof, syntax.KindDefault,
		syntax.KindTypeExpr, syntax.KindDeclarator, syntax.KindLogicalAnd, syntax.KindLogicalOr,
		syntax.KindCoalesce, syntax.KindConditionalAccess, syntax.KindConditional:
		return nil
	}
	if n.Kind.IsPattern() || n.Kind == syntax.KindPatternCaseLabel {
		return nil
	}
	var out []*syntax.Node
	for _, c := range flatten(n.Children()) {
		if c.Kind.IsExpression() {
			out = append(out, c)
		}
	}
	return out
}

// IsNameof reports whether n is a nameof(...) invocation. Its arguments are
// never evaluated.
func IsNameof(n *syntax.Node) bool {
	if !n.Is(syntax.KindInvocation) {
		return false
	}
	target := syntax.StripParens(n.Slot(0))
	return target.Is(syntax.KindIdentifier) && target.Name == "nameof" && len(n.Slot(1).Children()) == 1
}

// IsStatementExpression reports whether the value of n is discarded: n is
// the expression of an expression statement or an item of a for loop
// initializer or incrementor list.
func IsStatementExpression(n *syntax.Node) bool {
	p := syntax.ParentSkippingParens(n)
	switch {
	case p == nil:
		return false
	case p.Kind == syntax.KindExpressionStatement:
		return true
	case p.Kind == syntax.KindList && p.Parent.Is(syntax.KindFor):
		return p.Parent.Slot(0) == p || p.Parent.Slot(2) == p
	}
	return false
}

// IsShortCircuit reports whether n is evaluated through branch blocks
// rather than as a single instruction.
func IsShortCircuit(n *syntax.Node) bool {
	return n.Is(syntax.KindLogicalAnd, syntax.KindLogicalOr, syntax.KindCoalesce,
		syntax.KindConditionalAccess, syntax.KindConditional)
}

func isIdentifierTarget(n *syntax.Node) bool {
	return syntax.StripParens(n).Is(syntax.KindIdentifier)
}

func present(nodes ...*syntax.Node) []*syntax.Node {
	out := make([]*syntax.Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func arguments(list *syntax.Node) []*syntax.Node {
	var out []*syntax.Node
	for _, a := range list.Children() {
		if a.Kind == syntax.KindArgument {
			if e := a.Slot(0); e != nil {
				out = append(out, e)
			}
			continue
		}
		out = append(out, a)
	}
	return out
}

func flatten(nodes []*syntax.Node) []*syntax.Node {
	var out []*syntax.Node
	for _, n := range nodes {
		switch n.Kind {
		case syntax.KindArgumentList, syntax.KindList:
			out = append(out, arguments(n)...)
		case syntax.KindArgument:
			out = append(out, present(n.Slot(0))...)
		default:
			out = append(out, n)
		}
	}
	return out
}
