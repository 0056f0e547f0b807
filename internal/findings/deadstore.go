package findings

import (
	"fmt"

	"github.com/panbanda/csflow/pkg/models"
	"github.com/panbanda/csflow/pkg/semantic"
	"github.com/panbanda/csflow/pkg/symex"
	"github.com/panbanda/csflow/pkg/syntax"
)

// DeadStore reports assignments and initializers whose value is never read.
type DeadStore struct{}

var _ Rule = DeadStore{}

func (DeadStore) ID() models.RuleID { return models.RuleDeadStore }

func (DeadStore) Start(*Method) Check { return deadStoreCheck{} }

type deadStoreCheck struct{}

func (deadStoreCheck) Finish(m *Method, _ *symex.Result) []models.Finding {
	if m.Live == nil {
		return nil
	}
	tracked := make(map[*semantic.Symbol]bool, len(m.Scope))
	for _, s := range m.Scope {
		// Writes to out parameters are read by the caller.
		if s.Kind == semantic.SymbolParameter && s.RefKind == semantic.RefOut {
			continue
		}
		tracked[s] = true
	}

	reported := make(map[*syntax.Node]bool)
	var out []models.Finding
	for _, b := range m.Graph.Blocks {
		m.Live.WalkBackward(b, func(n *syntax.Node, live func(*semantic.Symbol) bool) {
			sym, value := store(m.Model, n)
			if sym == nil || !tracked[sym] || reported[n] || live(sym) || m.Live.IsCaptured(sym) {
				return
			}
			if n.Kind == syntax.KindDeclarator && isExemptInitializer(value) {
				return
			}
			reported[n] = true
			msg := fmt.Sprintf("value assigned to '%s' is never read", sym.Name)
			out = append(out, finding(m, models.RuleDeadStore, models.SeverityWarning, n, msg))
		})
	}
	models.SortFindings(out)
	return out
}

// store returns the entity written by n and the written expression.
func store(model *semantic.Model, n *syntax.Node) (*semantic.Symbol, *syntax.Node) {
	switch n.Kind {
	case syntax.KindAssignment:
		left := syntax.StripParens(n.Slot(0))
		if !left.Is(syntax.KindIdentifier) {
			return nil, nil
		}
		return model.ReferencedSymbol(left), n.Slot(1)
	case syntax.KindDeclarator:
		if n.Slot(0) == nil {
			return nil, nil
		}
		return model.DeclaredSymbol(n), n.Slot(0)
	}
	return nil, nil
}

// isExemptInitializer reports whether an initial value is a conventional
// placeholder rather than a computed value.
func isExemptInitializer(n *syntax.Node) bool {
	n = syntax.StripParens(n)
	switch {
	case n == nil:
		return true
	case n.Is(syntax.KindNull, syntax.KindTrue, syntax.KindFalse, syntax.KindDefault):
		return true
	case n.Is(syntax.KindLiteral):
		switch n.String() {
		case "0", "1", `""`:
			return true
		}
	case n.Is(syntax.KindPrefixUnary):
		return n.Operator == "-" && syntax.StripParens(n.Slot(0)).Is(syntax.KindLiteral) &&
			syntax.StripParens(n.Slot(0)).String() == "1"
	case n.Is(syntax.KindMemberAccess):
		return n.Name == "Empty" && n.Slot(0).Is(syntax.KindPredefinedType, syntax.KindIdentifier) &&
			(n.Slot(0).Name == "string" || n.Slot(0).Name == "String")
	}
	return false
}
