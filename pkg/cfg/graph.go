package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/topo"
)

// ErrInvalidGraph is returned when a built graph violates a structural
// invariant. It indicates a builder bug, not a problem with the input.
var ErrInvalidGraph = errors.New("invalid control flow graph")

// Graph is the control-flow graph of one method body.
type Graph struct {
	// Blocks are ordered with the entry first and the exit last.
	Blocks []*Block
	Entry  *Block
	Exit   *Block

	rpo []*Block
}

// ReversePostorder returns the blocks in reverse postorder of a depth-first
// walk from the entry. Blocks unreachable from the entry (only ever the
// exit) come last.
func (g *Graph) ReversePostorder() []*Block { return g.rpo }

// Edges returns the number of control-flow edges, counting parallel edges
// once per successor slot.
func (g *Graph) Edges() int {
	n := 0
	for _, b := range g.Blocks {
		n += len(b.succs)
	}
	return n
}

// Cyclomatic returns the cyclomatic complexity E - N + 2 of the graph.
func (g *Graph) Cyclomatic() int {
	return g.Edges() - len(g.Blocks) + 2
}

type blockNode struct{ blk *Block }

func (n blockNode) ID() int64     { return int64(n.blk.ID) }
func (n blockNode) DOTID() string { return fmt.Sprintf("b%d", n.blk.ID) }

func (n blockNode) Attributes() []encoding.Attribute {
	label := fmt.Sprintf("#%d %s", n.blk.ID, n.blk.Kind)
	for _, instr := range n.blk.Instructions {
		label += "\\l" + strings.ReplaceAll(instr.String(), `"`, `'`)
	}
	if n.blk.Node != nil && n.blk.Kind != KindExit {
		label += "\\l[" + n.blk.Node.Kind.String() + "]"
	}
	return []encoding.Attribute{
		{Key: "shape", Value: "box"},
		{Key: "label", Value: `"` + label + `\l"`},
	}
}

type blockEdge struct {
	from, to blockNode
	id       int64
	label    string
}

func (e blockEdge) From() graph.Node         { return e.from }
func (e blockEdge) To() graph.Node           { return e.to }
func (e blockEdge) ID() int64                { return e.id }
func (e blockEdge) ReversedLine() graph.Line { return blockEdge{from: e.to, to: e.from, id: e.id, label: e.label} }

func (e blockEdge) Attributes() []encoding.Attribute {
	if e.label == "" {
		return nil
	}
	return []encoding.Attribute{{Key: "label", Value: e.label}}
}

// Directed returns the graph as a gonum multigraph keyed by block ID.
// Binary branch edges are labelled T and F.
func (g *Graph) Directed() *multi.DirectedGraph {
	d := multi.NewDirectedGraph()
	for _, b := range g.Blocks {
		d.AddNode(blockNode{b})
	}
	var id int64
	for _, b := range g.Blocks {
		for i, s := range b.succs {
			e := blockEdge{from: blockNode{b}, to: blockNode{s}, id: id}
			if b.Kind == KindBinaryBranch {
				e.label = [2]string{"T", "F"}[i]
			}
			d.SetLine(e)
			id++
		}
	}
	return d
}

// DOT renders the graph in Graphviz format.
func (g *Graph) DOT(name string) (string, error) {
	out, err := dot.MarshalMulti(g.Directed(), name, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding %s as dot: %w", name, err)
	}
	return string(out), nil
}

// Loops returns the strongly connected components that form cycles: those
// with more than one block and single blocks that branch to themselves.
// Each loop lists its blocks in ID order.
func (g *Graph) Loops() [][]*Block {
	var loops [][]*Block
	for _, scc := range topo.TarjanSCC(g.Directed()) {
		if len(scc) == 1 {
			if b := g.Blocks[scc[0].ID()]; !slices.Contains(b.succs, b) {
				continue
			}
		}
		loop := make([]*Block, 0, len(scc))
		for _, n := range scc {
			loop = append(loop, g.Blocks[n.ID()])
		}
		slices.SortFunc(loop, func(a, b *Block) int { return cmp.Compare(a.ID, b.ID) })
		loops = append(loops, loop)
	}
	slices.SortFunc(loops, func(a, b []*Block) int { return cmp.Compare(a[0].ID, b[0].ID) })
	return loops
}
