package cfg

import "github.com/panbanda/csflow/pkg/syntax"

// buildCondition builds e as the test of a branch to whenTrue or whenFalse
// and returns the entry block of the test. && and || are split into one
// binary branch per operand.
func (b *builder) buildCondition(e *syntax.Node, whenTrue, whenFalse *Block) *Block {
	e = syntax.StripParens(e)
	switch {
	case e.Is(syntax.KindLogicalAnd):
		right := b.buildCondition(e.Slot(1), whenTrue, whenFalse)
		return b.buildCondition(e.Slot(0), right, whenFalse)
	case e.Is(syntax.KindLogicalOr):
		right := b.buildCondition(e.Slot(1), whenTrue, whenFalse)
		return b.buildCondition(e.Slot(0), whenTrue, right)
	}
	b.current = b.newBinaryBranch(e, whenTrue, whenFalse)
	b.buildExpression(e)
	return b.current
}

// buildExpression prepends the instructions of e to the current block,
// opening branch blocks for short-circuit operators.
func (b *builder) buildExpression(e *syntax.Node) {
	if e == nil {
		return
	}
	switch e.Kind {
	case syntax.KindParenthesized:
		b.buildExpression(e.Slot(0))
		return
	case syntax.KindArgumentList, syntax.KindList:
		ops := flatten(e.Children())
		for i := len(ops) - 1; i >= 0; i-- {
			b.buildExpression(ops[i])
		}
		return
	case syntax.KindArgument:
		b.buildExpression(e.Slot(0))
		return
	}

	if IsShortCircuit(e) {
		// A discarded short-circuit value still needs a consumer in the
		// block where its paths join.
		if IsStatementExpression(e) {
			b.add(e)
		}
		b.buildShortCircuit(e)
		return
	}

	if e.Is(syntax.KindObjectCreation, syntax.KindArrayCreation) {
		// The initializer runs after the creation.
		b.buildExpression(e.Slot(1))
	}
	b.add(e)

	ops := Operands(e)
	for i := len(ops) - 1; i >= 0; i-- {
		b.buildExpression(ops[i])
	}
}

func (b *builder) buildShortCircuit(e *syntax.Node) {
	after := b.current
	switch e.Kind {
	case syntax.KindLogicalAnd, syntax.KindLogicalOr, syntax.KindCoalesce:
		b.current = b.newSimple(after)
		b.buildExpression(e.Slot(1))
		right := b.current
		switch e.Kind {
		case syntax.KindLogicalAnd:
			b.current = b.newBinaryBranch(e, right, after)
		case syntax.KindLogicalOr:
			b.current = b.newBinaryBranch(e, after, right)
		default:
			// The true edge is the null path.
			b.current = b.newBinaryBranch(e, right, after)
		}
		b.current.ShortCircuit = true
		b.buildExpression(e.Slot(0))

	case syntax.KindConditionalAccess:
		b.current = b.newSimple(after)
		b.buildExpression(e.Slot(1))
		notNull := b.current
		b.current = b.newBinaryBranch(e, after, notNull)
		b.current.ShortCircuit = true
		b.buildExpression(e.Slot(0))

	case syntax.KindConditional:
		b.current = b.newSimple(after)
		b.buildExpression(e.Slot(2))
		whenFalse := b.current
		b.current = b.newSimple(after)
		b.buildExpression(e.Slot(1))
		whenTrue := b.current
		b.buildCondition(e.Slot(0), whenTrue, whenFalse)
	}
}
