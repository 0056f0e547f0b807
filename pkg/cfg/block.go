// Package cfg builds control-flow graphs of basic blocks for C# method
// bodies.
//
// A graph is built in one backward pass over the body: statements are
// visited from last to first and their instructions are prepended to a
// current block, and a new block is only opened where control flow
// branches, jumps or enters a scoped construct.
package cfg

import (
	"fmt"
	"strings"

	"github.com/panbanda/csflow/pkg/syntax"
)

// Kind is the variant of a basic block.
type Kind int

const (
	// KindSimple blocks fall through to their single successor.
	KindSimple Kind = iota
	// KindBranch blocks have an ordered list of successors. Switch dispatch
	// blocks and try boundaries are Branch blocks.
	KindBranch
	// KindBinaryBranch blocks test their Node: the first successor is taken
	// when the test holds, the second when it does not.
	KindBinaryBranch
	// KindJump blocks transfer control to their single successor because of
	// a jump statement, a label or a scoped statement header.
	KindJump
	KindLock
	KindUsing
	// KindUsingEnd marks the end of a using scope; Disposed lists the
	// resources released there.
	KindUsingEnd
	KindForInitializer
	KindForeachCollectionProducer
	KindExit

	kindTemporary
)

func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "Simple"
	case KindBranch:
		return "Branch"
	case KindBinaryBranch:
		return "BinaryBranch"
	case KindJump:
		return "Jump"
	case KindLock:
		return "Lock"
	case KindUsing:
		return "Using"
	case KindUsingEnd:
		return "UsingEnd"
	case KindForInitializer:
		return "ForInitializer"
	case KindForeachCollectionProducer:
		return "ForeachCollectionProducer"
	case KindExit:
		return "Exit"
	default:
		return "Temporary"
	}
}

// Block is a basic block. Its fields are fixed once Build returns.
type Block struct {
	ID   int
	Kind Kind
	// Instructions execute in order, unconditionally.
	Instructions []*syntax.Node
	// Node is the controlling syntax node: the tested expression or
	// statement of a branch, the statement of a jump or scoped header.
	Node *syntax.Node
	// Disposed holds the declarators or identifiers whose resources are
	// released at a UsingEnd block.
	Disposed []*syntax.Node
	// ShortCircuit marks the binary branch of an &&, ||, ??, ?. or ?:
	// evaluated for its value rather than as a condition. Its edges carry
	// the operand value instead of a test outcome.
	ShortCircuit bool

	succs []*Block
	preds []*Block

	reversed []*syntax.Node
	target   *Block
}

// Successors returns the successor blocks in priority order.
func (b *Block) Successors() []*Block { return b.succs }

// Predecessors returns the distinct predecessor blocks.
func (b *Block) Predecessors() []*Block { return b.preds }

// Successor returns the only successor of a single-successor block.
func (b *Block) Successor() *Block {
	if len(b.succs) == 0 {
		return nil
	}
	return b.succs[0]
}

// TrueSuccessor is the block reached when a binary branch test holds.
func (b *Block) TrueSuccessor() *Block {
	if b.Kind != KindBinaryBranch {
		return nil
	}
	return b.succs[0]
}

// FalseSuccessor is the block reached when a binary branch test fails.
func (b *Block) FalseSuccessor() *Block {
	if b.Kind != KindBinaryBranch {
		return nil
	}
	return b.succs[1]
}

// InstructionStrings renders the instructions, mostly for tests and
// debugging output.
func (b *Block) InstructionStrings() []string {
	out := make([]string, len(b.Instructions))
	for i, n := range b.Instructions {
		out[i] = n.String()
	}
	return out
}

func (b *Block) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%d %s", b.ID, b.Kind)
	if b.Node != nil {
		fmt.Fprintf(&sb, " [%s]", b.Node.Kind)
	}
	if len(b.succs) > 0 {
		sb.WriteString(" ->")
		for _, s := range b.succs {
			fmt.Fprintf(&sb, " #%d", s.ID)
		}
	}
	return sb.String()
}

func (b *Block) prepend(n *syntax.Node) {
	b.reversed = append(b.reversed, n)
}

func (b *Block) addSuccessor(s *Block) {
	for _, existing := range b.succs {
		if existing == s {
			return
		}
	}
	b.succs = append(b.succs, s)
}
