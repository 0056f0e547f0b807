// Package findings holds the rules that turn flow analysis results into
// findings. A rule starts a Check per method; a Check that implements
// symex.Observer is attached to the exploration of that method.
package findings

import (
	"github.com/panbanda/csflow/pkg/cfg"
	"github.com/panbanda/csflow/pkg/liveness"
	"github.com/panbanda/csflow/pkg/models"
	"github.com/panbanda/csflow/pkg/semantic"
	"github.com/panbanda/csflow/pkg/symex"
	"github.com/panbanda/csflow/pkg/syntax"
)

// Method is everything known about one analyzed body.
type Method struct {
	File  string
	Name  string
	Node  *syntax.Node
	Graph *cfg.Graph
	Model *semantic.Model
	// Scope is the set of entities tracked for this body.
	Scope []*semantic.Symbol
	Live  *liveness.Result
}

// Rule produces findings for one kind of defect.
type Rule interface {
	ID() models.RuleID
	Start(m *Method) Check
}

// Check is the per-method state of a rule.
type Check interface {
	// Finish is called after exploration. res is nil when exploration
	// failed.
	Finish(m *Method, res *symex.Result) []models.Finding
}

// Selection enables rules by ID.
type Selection map[models.RuleID]bool

// All returns every rule in a stable order.
func All() []Rule {
	return []Rule{NullDereference{}, ConstantCondition{}, DeadStore{}}
}

// Select returns the enabled rules. A nil selection enables every rule.
func Select(enabled Selection) []Rule {
	var out []Rule
	for _, r := range All() {
		if enabled == nil || enabled[r.ID()] {
			out = append(out, r)
		}
	}
	return out
}

// finding builds a finding positioned at n.
func finding(m *Method, rule models.RuleID, sev models.Severity, n *syntax.Node, msg string) models.Finding {
	f := models.Finding{
		Rule:     rule,
		Severity: sev,
		File:     m.File,
		Method:   m.Name,
		Message:  msg,
	}
	if n != nil {
		f.Line = uint32(n.Span.StartLine)
		f.Column = uint32(n.Span.StartCol)
	}
	return f
}

// Run explores m with the checks of rules attached and returns their
// findings. Exploration options such as budgets and liveness pruning are
// passed through. When exploration fails the rules still finish with a nil
// result, and the error is returned with whatever they found.
func Run(m *Method, rules []Rule, opts ...symex.Option) ([]models.Finding, *symex.Result, error) {
	checks := make([]Check, 0, len(rules))
	opts = append([]symex.Option{symex.WithScope(m.Scope), symex.WithName(m.Name)}, opts...)
	for _, r := range rules {
		c := r.Start(m)
		checks = append(checks, c)
		if o, ok := c.(symex.Observer); ok {
			opts = append(opts, symex.WithObserver(o))
		}
	}

	res, err := symex.Explore(m.Graph, m.Model, opts...)
	if err != nil {
		res = nil
	}
	var out []models.Finding
	for _, c := range checks {
		out = append(out, c.Finish(m, res)...)
	}
	models.SortFindings(out)
	return out, res, err
}
