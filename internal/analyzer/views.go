package analyzer

import (
	"sort"

	"github.com/panbanda/csflow/pkg/cfg"
	"github.com/panbanda/csflow/pkg/models"
	"github.com/panbanda/csflow/pkg/semantic"
	"github.com/panbanda/csflow/pkg/symex"
	"github.com/panbanda/csflow/pkg/syntax"
)

// CFGView renders the graph of d.
func CFGView(d *Detail) models.CFGView {
	g := d.Graph
	v := models.CFGView{
		File:       d.File,
		Method:     d.Name,
		Entry:      g.Entry.ID,
		Exit:       g.Exit.ID,
		Blocks:     make([]models.BlockView, 0, len(g.Blocks)),
		Edges:      g.Edges(),
		Cyclomatic: g.Cyclomatic(),
	}
	for _, b := range g.Blocks {
		bv := models.BlockView{
			ID:           b.ID,
			Kind:         b.Kind.String(),
			Instructions: b.InstructionStrings(),
			Successors:   blockIDs(b.Successors()),
		}
		if b.Kind == cfg.KindBinaryBranch {
			bv.Branch = branchText(b.Node)
		}
		v.Blocks = append(v.Blocks, bv)
	}
	for _, loop := range g.Loops() {
		v.Loops = append(v.Loops, blockIDs(loop))
	}
	return v
}

// LivenessView renders the liveness result of d.
func LivenessView(d *Detail) models.LivenessView {
	v := models.LivenessView{
		File:     d.File,
		Method:   d.Name,
		Blocks:   make([]models.BlockLiveness, 0, len(d.Graph.Blocks)),
		Captured: symbolNames(d.Live.Captured()),
		Passes:   d.Live.Passes(),
	}
	for _, b := range d.Graph.Blocks {
		v.Blocks = append(v.Blocks, models.BlockLiveness{
			ID:      b.ID,
			Kind:    b.Kind.String(),
			LiveIn:  symbolNames(d.Live.LiveIn(b)),
			LiveOut: symbolNames(d.Live.LiveOut(b)),
		})
	}
	return v
}

// ExplorationView renders an exploration of d.
func ExplorationView(d *Detail, res *symex.Result) models.ExplorationView {
	v := models.ExplorationView{
		File:     d.File,
		Method:   d.Name,
		Steps:    res.Steps,
		States:   res.States,
		Exceeded: res.Exceeded,
		Blocks:   make([]models.BlockExploration, 0, len(d.Graph.Blocks)),
	}
	for _, b := range d.Graph.Blocks {
		be := models.BlockExploration{
			ID:     b.ID,
			Kind:   b.Kind.String(),
			States: len(res.StatesAt(b)),
		}
		if b.Kind == cfg.KindBinaryBranch {
			be.Outcome = outcome(res.Outcome(b))
		}
		v.Blocks = append(v.Blocks, be)
	}
	return v
}

// branchText renders the test of a binary branch. Loop branches carry the
// loop statement, so only their condition is shown.
func branchText(n *syntax.Node) string {
	switch {
	case n == nil:
		return ""
	case n.Is(syntax.KindFor):
		if cond := n.Slot(1); cond != nil {
			return cond.String()
		}
		return "true"
	case n.Is(syntax.KindForeach):
		return "MoveNext()"
	}
	return n.String()
}

func outcome(o symex.BranchOutcome) string {
	switch {
	case o.True && o.False:
		return "both"
	case o.True:
		return "true"
	case o.False:
		return "false"
	}
	return ""
}

func blockIDs(blocks []*cfg.Block) []int {
	if len(blocks) == 0 {
		return nil
	}
	ids := make([]int, len(blocks))
	for i, b := range blocks {
		ids[i] = b.ID
	}
	return ids
}

// symbolNames returns sorted names; an empty set renders as an empty list.
func symbolNames(syms []*semantic.Symbol) []string {
	names := make([]string, len(syms))
	for i, s := range syms {
		names[i] = s.Name
	}
	sort.Strings(names)
	return names
}
