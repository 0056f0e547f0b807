// Package liveness computes live variables over a control-flow graph.
//
// Sets are Roaring bitmaps over symbol IDs. The analysis is a standard
// backward gen/kill fixed point; entities referenced from closures are
// treated as live everywhere.
package liveness

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/panbanda/csflow/pkg/cfg"
	"github.com/panbanda/csflow/pkg/semantic"
	"github.com/panbanda/csflow/pkg/syntax"
)

// Result holds the per-block sets of one analysis.
type Result struct {
	symbols  map[uint32]*semantic.Symbol
	gen      map[*cfg.Block]*roaring.Bitmap
	kill     map[*cfg.Block]*roaring.Bitmap
	liveIn   map[*cfg.Block]*roaring.Bitmap
	liveOut  map[*cfg.Block]*roaring.Bitmap
	captured *roaring.Bitmap
	passes   int
	oracle   semantic.Oracle
}

// Analyze computes liveness of the scope entities over g. Entities outside
// scope are ignored wherever they appear.
func Analyze(g *cfg.Graph, oracle semantic.Oracle, scope []*semantic.Symbol) *Result {
	r := &Result{
		symbols:  make(map[uint32]*semantic.Symbol, len(scope)),
		gen:      make(map[*cfg.Block]*roaring.Bitmap, len(g.Blocks)),
		kill:     make(map[*cfg.Block]*roaring.Bitmap, len(g.Blocks)),
		liveIn:   make(map[*cfg.Block]*roaring.Bitmap, len(g.Blocks)),
		liveOut:  make(map[*cfg.Block]*roaring.Bitmap, len(g.Blocks)),
		captured: roaring.New(),
		oracle:   oracle,
	}
	for _, s := range scope {
		r.symbols[uint32(s.ID)] = s
	}

	local := &localPass{oracle: oracle, tracked: r.symbols, captured: r.captured}
	for _, b := range g.Blocks {
		r.gen[b], r.kill[b] = local.run(b)
		r.liveIn[b] = roaring.New()
		r.liveOut[b] = roaring.New()
	}

	rpo := g.ReversePostorder()
	for changed := true; changed; {
		changed = false
		r.passes++
		for i := len(rpo) - 1; i >= 0; i-- {
			b := rpo[i]
			out := roaring.New()
			for _, s := range b.Successors() {
				out.Or(r.liveIn[s])
			}
			in := roaring.AndNot(out, r.kill[b])
			in.Or(r.gen[b])
			if !in.Equals(r.liveIn[b]) || !out.Equals(r.liveOut[b]) {
				r.liveIn[b], r.liveOut[b] = in, out
				changed = true
			}
		}
	}

	if !r.captured.IsEmpty() {
		for _, b := range g.Blocks {
			r.liveIn[b].Or(r.captured)
			r.liveOut[b].Or(r.captured)
		}
	}
	return r
}

// LiveIn returns the entities live on entry to b, ordered by symbol ID.
func (r *Result) LiveIn(b *cfg.Block) []*semantic.Symbol { return r.resolve(r.liveIn[b]) }

// LiveOut returns the entities live on exit from b, ordered by symbol ID.
func (r *Result) LiveOut(b *cfg.Block) []*semantic.Symbol { return r.resolve(r.liveOut[b]) }

// Gen returns the entities b reads before writing them.
func (r *Result) Gen(b *cfg.Block) []*semantic.Symbol { return r.resolve(r.gen[b]) }

// Kill returns the entities b writes.
func (r *Result) Kill(b *cfg.Block) []*semantic.Symbol { return r.resolve(r.kill[b]) }

// Captured returns the entities referenced from a nested closure.
func (r *Result) Captured() []*semantic.Symbol { return r.resolve(r.captured) }

// IsLiveIn reports whether s is live on entry to b.
func (r *Result) IsLiveIn(b *cfg.Block, s *semantic.Symbol) bool {
	return contains(r.liveIn[b], s)
}

// IsLiveOut reports whether s is live on exit from b.
func (r *Result) IsLiveOut(b *cfg.Block, s *semantic.Symbol) bool {
	return contains(r.liveOut[b], s)
}

// IsCaptured reports whether s is referenced from a nested closure.
func (r *Result) IsCaptured(s *semantic.Symbol) bool {
	return contains(r.captured, s)
}

// Passes returns the number of sweeps the fixed point took, including the
// final sweep that changed nothing.
func (r *Result) Passes() int { return r.passes }

// WalkBackward calls fn for each instruction of b from last to first. live
// reports whether an entity is live immediately after the instruction. The
// callback must not retain live. Concurrent walks over one Result are safe.
func (r *Result) WalkBackward(b *cfg.Block, fn func(n *syntax.Node, live func(*semantic.Symbol) bool)) {
	// Analyze already collected every capture.
	p := &localPass{oracle: r.oracle, tracked: r.symbols, captured: roaring.New()}
	p.gen, p.kill = roaring.New(), roaring.New()
	for _, d := range b.Disposed {
		sym := p.oracle.DeclaredSymbol(d)
		if sym == nil {
			sym = p.oracle.ReferencedSymbol(d)
		}
		p.use(sym)
	}
	current := roaring.Or(r.liveOut[b], p.gen)
	current.Or(r.captured)
	isLive := func(s *semantic.Symbol) bool { return contains(current, s) }

	for i := len(b.Instructions) - 1; i >= 0; i-- {
		n := b.Instructions[i]
		fn(n, isLive)
		p.gen, p.kill = roaring.New(), roaring.New()
		p.visit(n)
		current.AndNot(p.kill)
		current.Or(p.gen)
	}
}

func contains(bm *roaring.Bitmap, s *semantic.Symbol) bool {
	return bm != nil && s != nil && bm.Contains(uint32(s.ID))
}

func (r *Result) resolve(bm *roaring.Bitmap) []*semantic.Symbol {
	if bm == nil || bm.IsEmpty() {
		return nil
	}
	out := make([]*semantic.Symbol, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, r.symbols[it.Next()])
	}
	return out
}

// localPass folds one block's instructions from last to first.
type localPass struct {
	oracle   semantic.Oracle
	tracked  map[uint32]*semantic.Symbol
	captured *roaring.Bitmap

	gen, kill *roaring.Bitmap
}

func (p *localPass) run(b *cfg.Block) (gen, kill *roaring.Bitmap) {
	p.gen, p.kill = roaring.New(), roaring.New()

	// Disposal at the end of a using scope reads the resource.
	for _, d := range b.Disposed {
		sym := p.oracle.DeclaredSymbol(d)
		if sym == nil {
			sym = p.oracle.ReferencedSymbol(d)
		}
		p.use(sym)
	}

	if b.Kind == cfg.KindBinaryBranch && b.Node.Is(syntax.KindForeach) {
		p.assign(p.oracle.DeclaredSymbol(b.Node))
	}

	for i := len(b.Instructions) - 1; i >= 0; i-- {
		p.visit(b.Instructions[i])
	}
	return p.gen, p.kill
}

func (p *localPass) visit(n *syntax.Node) {
	switch n.Kind {
	case syntax.KindIdentifier:
		if isOutArgument(n) || insideNameof(n) {
			return
		}
		p.use(p.oracle.ReferencedSymbol(n))

	case syntax.KindAssignment:
		if left := syntax.StripParens(n.Slot(0)); left.Is(syntax.KindIdentifier) {
			p.assign(p.oracle.ReferencedSymbol(left))
		}

	case syntax.KindDeclarator, syntax.KindDeclarationExpression:
		p.assign(p.oracle.DeclaredSymbol(n))

	case syntax.KindInvocation, syntax.KindObjectCreation, syntax.KindElementAccess:
		args := n.Slot(1)
		if n.Kind == syntax.KindObjectCreation {
			args = n.Slot(0)
		}
		for _, a := range args.Children() {
			if a.Modifier != "out" {
				continue
			}
			switch e := syntax.StripParens(a.Slot(0)); {
			case e.Is(syntax.KindIdentifier):
				p.assign(p.oracle.ReferencedSymbol(e))
			case e.Is(syntax.KindDeclarationExpression):
				p.assign(p.oracle.DeclaredSymbol(e))
			}
		}

	case syntax.KindIsPattern, syntax.KindDeclarationPattern, syntax.KindVarPattern, syntax.KindRecursivePattern:
		syntax.Inspect(n, func(c *syntax.Node) bool {
			if c.Is(syntax.KindDeclarationPattern, syntax.KindVarPattern) {
				p.assign(p.oracle.DeclaredSymbol(c))
			}
			return true
		})

	case syntax.KindLambda, syntax.KindAnonymousMethod, syntax.KindQuery, syntax.KindLocalFunction:
		p.capture(n)
	}
}

func (p *localPass) capture(closure *syntax.Node) {
	syntax.Inspect(closure, func(c *syntax.Node) bool {
		if c.Kind == syntax.KindIdentifier {
			if s := p.oracle.ReferencedSymbol(c); s != nil && p.tracked[uint32(s.ID)] == s {
				p.captured.Add(uint32(s.ID))
			}
		}
		return true
	})
}

func (p *localPass) use(s *semantic.Symbol) {
	if s == nil || p.tracked[uint32(s.ID)] != s {
		return
	}
	p.gen.Add(uint32(s.ID))
}

func (p *localPass) assign(s *semantic.Symbol) {
	if s == nil || p.tracked[uint32(s.ID)] != s {
		return
	}
	p.kill.Add(uint32(s.ID))
	p.gen.Remove(uint32(s.ID))
}

func isOutArgument(n *syntax.Node) bool {
	p := syntax.ParentSkippingParens(n)
	return p.Is(syntax.KindArgument) && p.Modifier == "out"
}

func insideNameof(n *syntax.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if cfg.IsNameof(p) {
			return true
		}
	}
	return false
}
