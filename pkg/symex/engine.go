package symex

import (
	"fmt"
	"log/slog"

	"github.com/panbanda/csflow/pkg/cfg"
	"github.com/panbanda/csflow/pkg/liveness"
	"github.com/panbanda/csflow/pkg/semantic"
	"github.com/panbanda/csflow/pkg/syntax"
)

// Default exploration budgets.
const (
	DefaultMaxSteps      = 4000
	DefaultMaxStates     = 1000
	DefaultMaxLoopVisits = 2
)

// Observer is notified before each instruction is visited.
type Observer interface {
	PreInstruction(b *cfg.Block, n *syntax.Node, s *ProgramState)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(b *cfg.Block, n *syntax.Node, s *ProgramState)

func (f ObserverFunc) PreInstruction(b *cfg.Block, n *syntax.Node, s *ProgramState) { f(b, n, s) }

type explorer struct {
	oracle        semantic.Oracle
	maxSteps      int
	maxStates     int
	maxLoopVisits int
	live          *liveness.Result
	observers     []Observer
	logger        *slog.Logger
	name          string
	tracked       map[*semantic.Symbol]bool
}

// Option configures Explore.
type Option func(*explorer)

// WithMaxSteps bounds the number of (block, state) pairs processed.
func WithMaxSteps(n int) Option {
	return func(e *explorer) { e.maxSteps = n }
}

// WithMaxStates bounds the number of distinct (block, state) pairs kept.
func WithMaxStates(n int) Option {
	return func(e *explorer) { e.maxStates = n }
}

// WithMaxLoopVisits bounds how often one path may enter the same block.
// Paths over the bound are dropped without marking the run exceeded.
func WithMaxLoopVisits(n int) Option {
	return func(e *explorer) { e.maxLoopVisits = n }
}

// WithScope limits variable tracking to the given symbols and binds the
// parameters among them to fresh values at entry.
func WithScope(symbols []*semantic.Symbol) Option {
	return func(e *explorer) {
		e.tracked = make(map[*semantic.Symbol]bool, len(symbols))
		for _, s := range symbols {
			e.tracked[s] = true
		}
	}
}

// WithLiveness drops bindings of variables that are dead on block exit, and
// stops tracking variables captured by closures.
func WithLiveness(r *liveness.Result) Option {
	return func(e *explorer) { e.live = r }
}

// WithObserver registers an instruction observer.
func WithObserver(o Observer) Option {
	return func(e *explorer) { e.observers = append(e.observers, o) }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *explorer) { e.logger = l }
}

// WithName names the explored method in log records.
func WithName(name string) Option {
	return func(e *explorer) { e.name = name }
}

// BranchOutcome records which edges of a binary branch were taken.
type BranchOutcome struct {
	True  bool
	False bool
}

// Result is what an exploration reached. When Exceeded is set the result
// covers only the paths explored before the budget ran out.
type Result struct {
	Exceeded bool
	Steps    int
	States   int

	reached  map[*cfg.Block][]*ProgramState
	branches map[*cfg.Block]*BranchOutcome
}

// StatesAt returns the distinct states that entered b.
func (r *Result) StatesAt(b *cfg.Block) []*ProgramState { return r.reached[b] }

// Reached reports whether any path entered b.
func (r *Result) Reached(b *cfg.Block) bool { return len(r.reached[b]) > 0 }

// Outcome returns the edges taken out of a binary branch block.
func (r *Result) Outcome(b *cfg.Block) BranchOutcome {
	if o := r.branches[b]; o != nil {
		return *o
	}
	return BranchOutcome{}
}

type workItem struct {
	block *cfg.Block
	state *ProgramState
}

type edge struct {
	to    *cfg.Block
	state *ProgramState
	// branch is 1 for a true edge, 2 for a false edge, 0 otherwise.
	branch int
}

// Explore runs symbolic execution over g from its entry. It fails only on
// analysis bugs such as stack underflow; running out of budget is reported
// through Result.Exceeded.
func Explore(g *cfg.Graph, oracle semantic.Oracle, opts ...Option) (*Result, error) {
	e := &explorer{
		oracle:        oracle,
		maxSteps:      DefaultMaxSteps,
		maxStates:     DefaultMaxStates,
		maxLoopVisits: DefaultMaxLoopVisits,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	res := &Result{
		reached:  make(map[*cfg.Block][]*ProgramState),
		branches: make(map[*cfg.Block]*BranchOutcome),
	}
	seen := make(map[*cfg.Block]map[uint64][]*ProgramState)

	initial := NewProgramState()
	for sym := range e.tracked {
		if sym.Kind == semantic.SymbolParameter {
			initial = initial.Bind(sym, NewUnknown())
		}
	}
	queue := []workItem{{block: g.Entry, state: initial}}
	markSeen(seen, g.Entry, initial)
	res.States = 1

explore:
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		if res.Steps >= e.maxSteps {
			res.Exceeded = true
			break explore
		}
		res.Steps++

		state, visits := item.state.visit(item.block)
		if visits > e.maxLoopVisits {
			continue
		}
		res.reached[item.block] = append(res.reached[item.block], state)
		if item.block.Kind == cfg.KindExit {
			continue
		}

		states := []*ProgramState{state}
		for _, instr := range item.block.Instructions {
			var next []*ProgramState
			for _, st := range states {
				for _, o := range e.observers {
					o.PreInstruction(item.block, instr, st)
				}
				out, err := e.visit(instr, st)
				if err != nil {
					return res, fmt.Errorf("block #%d, instruction %q: %w", item.block.ID, instr.String(), err)
				}
				next = append(next, out...)
			}
			states = next
		}

		for _, st := range states {
			edges, err := e.leave(item.block, st)
			if err != nil {
				return res, fmt.Errorf("leaving block #%d: %w", item.block.ID, err)
			}
			for _, ed := range edges {
				if ed.branch != 0 {
					o := res.branches[item.block]
					if o == nil {
						o = &BranchOutcome{}
						res.branches[item.block] = o
					}
					if ed.branch == 1 {
						o.True = true
					} else {
						o.False = true
					}
				}
				next := ed.state
				if e.live != nil {
					next = next.retain(func(sym *semantic.Symbol) bool { return e.live.IsLiveOut(item.block, sym) })
				}
				if isSeen(seen, ed.to, next) {
					continue
				}
				if res.States >= e.maxStates {
					res.Exceeded = true
					break explore
				}
				markSeen(seen, ed.to, next)
				res.States++
				queue = append(queue, workItem{block: ed.to, state: next})
			}
		}
	}

	if res.Exceeded {
		e.logger.Debug("exploration budget exceeded",
			"method", e.name, "steps", res.Steps, "states", res.States)
	}
	return res, nil
}

func markSeen(seen map[*cfg.Block]map[uint64][]*ProgramState, b *cfg.Block, s *ProgramState) {
	byHash := seen[b]
	if byHash == nil {
		byHash = make(map[uint64][]*ProgramState)
		seen[b] = byHash
	}
	fp := s.Fingerprint()
	byHash[fp] = append(byHash[fp], s)
}

func isSeen(seen map[*cfg.Block]map[uint64][]*ProgramState, b *cfg.Block, s *ProgramState) bool {
	for _, other := range seen[b][s.Fingerprint()] {
		if other.Equivalent(s) {
			return true
		}
	}
	return false
}

// leave computes the states flowing out of b along each edge.
func (e *explorer) leave(b *cfg.Block, s *ProgramState) ([]edge, error) {
	switch b.Kind {
	case cfg.KindJump:
		if b.Node.Is(syntax.KindReturn, syntax.KindThrow, syntax.KindYieldReturn) && b.Node.Slot(0) != nil {
			next, err := s.PopN(1)
			if err != nil {
				return nil, err
			}
			s = next
		}
	case cfg.KindLock, cfg.KindForeachCollectionProducer:
		next, err := s.PopN(1)
		if err != nil {
			return nil, err
		}
		s = next
	case cfg.KindUsing:
		if r := b.Node.Slot(0); r != nil && r.Kind != syntax.KindLocalDeclaration {
			next, err := s.PopN(1)
			if err != nil {
				return nil, err
			}
			s = next
		}
	case cfg.KindBranch:
		if b.Node.Is(syntax.KindSwitch) {
			next, err := s.PopN(1)
			if err != nil {
				return nil, err
			}
			s = next
		}
		edges := make([]edge, 0, len(b.Successors()))
		for _, succ := range b.Successors() {
			edges = append(edges, edge{to: succ, state: s})
		}
		return edges, nil
	case cfg.KindBinaryBranch:
		return e.leaveBinary(b, s)
	case cfg.KindExit:
		return nil, nil
	}
	return []edge{{to: b.Successor(), state: s}}, nil
}

func (e *explorer) leaveBinary(b *cfg.Block, s *ProgramState) ([]edge, error) {
	whenTrue, whenFalse := b.TrueSuccessor(), b.FalseSuccessor()

	switch {
	case b.Node.Is(syntax.KindForeach):
		var bodyState = s
		if sym := e.oracle.DeclaredSymbol(b.Node); e.isTracked(sym) {
			bodyState = s.Bind(sym, NewUnknown())
		}
		return []edge{{to: whenTrue, state: bodyState, branch: 1}, {to: whenFalse, state: s, branch: 2}}, nil

	case b.Node.Is(syntax.KindFor) && b.Node.Slot(1) == nil:
		return []edge{{to: whenTrue, state: s, branch: 1}}, nil
	}

	s, v, err := s.Pop()
	if err != nil {
		return nil, err
	}

	if b.Node.Is(syntax.KindCaseLabel) {
		// The label value is compared with the switch value, which is
		// not on the stack; nothing can be learned.
		return []edge{{to: whenTrue, state: s, branch: 1}, {to: whenFalse, state: s, branch: 2}}, nil
	}

	var edges []edge
	add := func(to *cfg.Block, states []*ProgramState, branch int, push *Value) {
		for _, st := range states {
			if push != nil {
				st = st.Push(push)
			}
			edges = append(edges, edge{to: to, state: st, branch: branch})
		}
	}

	if b.ShortCircuit {
		switch b.Node.Kind {
		case syntax.KindLogicalAnd:
			add(whenTrue, s.SetConstraint(v, True), 1, nil)
			add(whenFalse, s.SetConstraint(v, False), 2, FalseValue)
		case syntax.KindLogicalOr:
			add(whenTrue, s.SetConstraint(v, True), 1, TrueValue)
			add(whenFalse, s.SetConstraint(v, False), 2, nil)
		case syntax.KindCoalesce:
			add(whenTrue, s.SetConstraint(v, Null), 1, nil)
			add(whenFalse, s.SetConstraint(v, NotNull), 2, v)
		case syntax.KindConditionalAccess:
			add(whenTrue, s.SetConstraint(v, Null), 1, v)
			add(whenFalse, s.SetConstraint(v, NotNull), 2, v)
		}
		return edges, nil
	}

	add(whenTrue, s.SetConstraint(v, True), 1, nil)
	add(whenFalse, s.SetConstraint(v, False), 2, nil)
	return edges, nil
}

func (e *explorer) isTracked(sym *semantic.Symbol) bool {
	if sym == nil {
		return false
	}
	if e.tracked != nil && !e.tracked[sym] {
		return false
	}
	return e.live == nil || !e.live.IsCaptured(sym)
}
