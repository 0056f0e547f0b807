package findings

import (
	"fmt"

	"github.com/panbanda/csflow/pkg/cfg"
	"github.com/panbanda/csflow/pkg/models"
	"github.com/panbanda/csflow/pkg/symex"
	"github.com/panbanda/csflow/pkg/syntax"
)

// ConstantCondition reports conditions that took the same edge on every
// explored path. Only complete explorations are considered.
type ConstantCondition struct{}

var _ Rule = ConstantCondition{}

func (ConstantCondition) ID() models.RuleID { return models.RuleConstantCondition }

func (ConstantCondition) Start(*Method) Check { return conditionCheck{} }

type conditionCheck struct{}

func (conditionCheck) Finish(m *Method, res *symex.Result) []models.Finding {
	if res == nil || res.Exceeded {
		return nil
	}

	// A condition may be copied into several blocks, for example into the
	// normal and the exceptional path through a finally.
	outcomes := make(map[*syntax.Node]symex.BranchOutcome)
	var order []*syntax.Node
	for _, b := range m.Graph.Blocks {
		if !isCondition(b) || !res.Reached(b) {
			continue
		}
		o := res.Outcome(b)
		prev, ok := outcomes[b.Node]
		if !ok {
			order = append(order, b.Node)
		}
		outcomes[b.Node] = symex.BranchOutcome{True: prev.True || o.True, False: prev.False || o.False}
	}

	var out []models.Finding
	for _, n := range order {
		o := outcomes[n]
		if o.True == o.False {
			continue
		}
		msg := fmt.Sprintf("condition '%s' always evaluates to %t", n, o.True)
		out = append(out, finding(m, models.RuleConstantCondition, models.SeverityWarning, n, msg))
	}
	return out
}

// isCondition reports whether b tests a source condition written by the
// user, as opposed to a loop header, case label or short-circuit value.
func isCondition(b *cfg.Block) bool {
	if b.Kind != cfg.KindBinaryBranch || b.ShortCircuit || b.Node == nil || !b.Node.Kind.IsExpression() {
		return false
	}
	n := syntax.StripParens(b.Node)
	if n.Is(syntax.KindTrue, syntax.KindFalse) {
		return false
	}
	if n.Is(syntax.KindLogicalNot) && syntax.StripParens(n.Slot(0)).Is(syntax.KindTrue, syntax.KindFalse) {
		return false
	}
	return true
}
