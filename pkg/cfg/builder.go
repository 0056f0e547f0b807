package cfg

import (
	"github.com/panbanda/csflow/pkg/syntax"
)

type jumpTarget struct {
	block *Block
	// depth is the number of enclosing try-finally statements at the point
	// the target was pushed.
	depth int
}

type finallyScope struct {
	// entry is the first block of the finally copy that runs on abrupt exits.
	entry *Block
	// tail is the last block of that copy.
	tail *Block
}

type pendingGoto struct {
	jump *Block
	key  string
}

type switchScope struct {
	labels  map[string]*Block
	pending []pendingGoto
	after   *Block
}

type builder struct {
	blocks  []*Block
	temps   []*Block
	exit    *Block
	current *Block

	breaks    []jumpTarget
	continues []jumpTarget
	exits     []*Block
	finallies []*finallyScope
	switches  []*switchScope

	labels map[string]*Block
	gotos  []pendingGoto
}

// Build constructs the control-flow graph of a method body. body is a
// block, an expression (for expression-bodied members) or a method, local
// function, lambda or anonymous method whose body is used. A nil body
// yields a graph with an empty entry block.
func Build(body *syntax.Node) (*Graph, error) {
	if body.Is(syntax.KindMethod, syntax.KindLocalFunction, syntax.KindLambda, syntax.KindAnonymousMethod) {
		body = body.Slot(1)
	}

	b := &builder{labels: make(map[string]*Block)}
	b.exit = b.newBlock(KindExit)
	b.exits = []*Block{b.exit}
	b.current = b.newSimple(b.exit)

	switch {
	case body == nil:
	case body.Kind.IsExpression():
		b.buildExpression(body)
	default:
		b.buildStatement(body)
	}

	for _, g := range b.gotos {
		target, ok := b.labels[g.key]
		if !ok {
			target = b.exit
		}
		g.jump.succs = []*Block{target}
	}
	return b.finalize(b.current)
}

func (b *builder) newBlock(kind Kind) *Block {
	blk := &Block{Kind: kind}
	b.blocks = append(b.blocks, blk)
	return blk
}

func (b *builder) newSimple(succ *Block) *Block {
	blk := b.newBlock(KindSimple)
	blk.succs = []*Block{succ}
	return blk
}

func (b *builder) newJump(node *syntax.Node, succ *Block) *Block {
	blk := b.newBlock(KindJump)
	blk.Node = node
	blk.succs = []*Block{succ}
	return blk
}

func (b *builder) newBinaryBranch(node *syntax.Node, whenTrue, whenFalse *Block) *Block {
	blk := b.newBlock(KindBinaryBranch)
	blk.Node = node
	blk.succs = []*Block{whenTrue, whenFalse}
	return blk
}

func (b *builder) newBranch(node *syntax.Node, succs ...*Block) *Block {
	blk := b.newBlock(KindBranch)
	blk.Node = node
	blk.succs = succs
	return blk
}

// newTemp returns a placeholder for a block that does not exist yet. Its
// target is set once the real block is built.
func (b *builder) newTemp() *Block {
	blk := &Block{Kind: kindTemporary}
	b.temps = append(b.temps, blk)
	return blk
}

func (b *builder) add(n *syntax.Node) {
	b.current.prepend(n)
}

func (b *builder) exitTarget() *Block {
	return b.exits[len(b.exits)-1]
}

func (b *builder) pushLoop(breakTo, continueTo *Block) {
	depth := len(b.finallies)
	b.breaks = append(b.breaks, jumpTarget{block: breakTo, depth: depth})
	b.continues = append(b.continues, jumpTarget{block: continueTo, depth: depth})
}

func (b *builder) popLoop() {
	b.breaks = b.breaks[:len(b.breaks)-1]
	b.continues = b.continues[:len(b.continues)-1]
}

// jumpTo opens a jump block for n that leaves for target. When the jump
// crosses enclosing finally clauses it enters the innermost one, and the
// outermost crossed clause gains target as an extra successor.
func (b *builder) jumpTo(n *syntax.Node, target jumpTarget) {
	dest := target.block
	if depth := len(b.finallies); target.depth < depth {
		outer := b.finallies[target.depth]
		outer.tail.addSuccessor(target.block)
		outer.tail.Kind = KindBranch
		dest = b.finallies[depth-1].entry
	}
	b.current = b.newJump(n, dest)
}

func (b *builder) jumpOut(n *syntax.Node, stack []jumpTarget) {
	if len(stack) == 0 {
		b.current = b.newJump(n, b.exitTarget())
		return
	}
	b.jumpTo(n, stack[len(stack)-1])
}
