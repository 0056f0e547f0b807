package cfg

import (
	"fmt"
	"slices"
)

// finalize resolves placeholders, drops empty simple blocks and
// unreachable blocks, and fixes the final block order.
func (b *builder) finalize(entry *Block) (*Graph, error) {
	for _, blk := range b.blocks {
		slices.Reverse(blk.reversed)
		blk.Instructions = blk.reversed
		blk.reversed = nil
	}

	resolved := make(map[*Block]*Block)
	var resolve func(*Block) *Block
	resolve = func(start *Block) *Block {
		if r, ok := resolved[start]; ok {
			return r
		}
		seen := make(map[*Block]bool)
		cur := start
		for cur != nil && !seen[cur] {
			seen[cur] = true
			switch {
			case cur.Kind == kindTemporary:
				cur = cur.target
			case cur.removable(b.exit):
				cur = cur.succs[0]
			default:
				resolved[start] = cur
				return cur
			}
		}
		// A dangling placeholder goes to the exit; an empty cycle keeps the
		// block where it closes.
		if cur == nil || cur.Kind == kindTemporary {
			cur = b.exit
		}
		resolved[start] = cur
		return cur
	}

	g := &Graph{Exit: b.exit, Entry: resolve(entry)}

	reachable := make(map[*Block]bool)
	stack := []*Block{g.Entry}
	for len(stack) > 0 {
		blk := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reachable[blk] {
			continue
		}
		reachable[blk] = true
		for i, s := range blk.succs {
			blk.succs[i] = resolve(s)
			stack = append(stack, blk.succs[i])
		}
	}
	reachable[b.exit] = true

	for i := len(b.blocks) - 1; i >= 0; i-- {
		blk := b.blocks[i]
		if !reachable[blk] || blk == b.exit || blk.Kind == kindTemporary {
			continue
		}
		g.Blocks = append(g.Blocks, blk)
	}
	// Keep the entry first even when a loop header was created after it.
	if idx := slices.Index(g.Blocks, g.Entry); idx > 0 {
		g.Blocks = slices.Delete(g.Blocks, idx, idx+1)
		g.Blocks = slices.Insert(g.Blocks, 0, g.Entry)
	}
	g.Blocks = append(g.Blocks, b.exit)

	for id, blk := range g.Blocks {
		blk.ID = id
		blk.preds = nil
	}
	for _, blk := range g.Blocks {
		for _, s := range blk.succs {
			if !slices.Contains(s.preds, blk) {
				s.preds = append(s.preds, blk)
			}
		}
	}
	g.rpo = reversePostorder(g.Entry)
	if len(g.rpo) < len(g.Blocks) {
		// The exit is unreachable when every path loops forever.
		g.rpo = append(g.rpo, g.Exit)
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (blk *Block) removable(exit *Block) bool {
	return blk != exit && blk.Kind == KindSimple && len(blk.Instructions) == 0 && len(blk.succs) == 1
}

func reversePostorder(entry *Block) []*Block {
	var post []*Block
	visited := make(map[*Block]bool)
	type frame struct {
		blk  *Block
		next int
	}
	stack := []frame{{blk: entry}}
	visited[entry] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.blk.succs) {
			s := top.blk.succs[top.next]
			top.next++
			if !visited[s] {
				visited[s] = true
				stack = append(stack, frame{blk: s})
			}
			continue
		}
		post = append(post, top.blk)
		stack = stack[:len(stack)-1]
	}
	slices.Reverse(post)
	return post
}

// Validate checks the structural invariants of a built graph.
func (g *Graph) Validate() error {
	if g.Entry == nil || g.Exit == nil {
		return fmt.Errorf("%w: missing entry or exit", ErrInvalidGraph)
	}
	exits := 0
	for i, blk := range g.Blocks {
		if blk.ID != i {
			return fmt.Errorf("%w: block %d has id %d", ErrInvalidGraph, i, blk.ID)
		}
		switch blk.Kind {
		case KindExit:
			exits++
			if len(blk.succs) != 0 || len(blk.Instructions) != 0 {
				return fmt.Errorf("%w: exit block has successors or instructions", ErrInvalidGraph)
			}
		case KindBinaryBranch:
			if len(blk.succs) != 2 {
				return fmt.Errorf("%w: binary branch #%d has %d successors", ErrInvalidGraph, blk.ID, len(blk.succs))
			}
		case KindBranch:
			if len(blk.succs) == 0 {
				return fmt.Errorf("%w: branch #%d has no successors", ErrInvalidGraph, blk.ID)
			}
		case kindTemporary:
			return fmt.Errorf("%w: unresolved placeholder block", ErrInvalidGraph)
		default:
			if len(blk.succs) != 1 {
				return fmt.Errorf("%w: %s block #%d has %d successors", ErrInvalidGraph, blk.Kind, blk.ID, len(blk.succs))
			}
		}
		for _, s := range blk.succs {
			if s == nil || s.Kind == kindTemporary {
				return fmt.Errorf("%w: block #%d has an unresolved successor", ErrInvalidGraph, blk.ID)
			}
		}
	}
	if exits != 1 || g.Blocks[len(g.Blocks)-1] != g.Exit {
		return fmt.Errorf("%w: exit must be the single last block", ErrInvalidGraph)
	}
	return nil
}
