package findings

import (
	"fmt"
	"strings"

	"github.com/panbanda/csflow/pkg/cfg"
	"github.com/panbanda/csflow/pkg/models"
	"github.com/panbanda/csflow/pkg/semantic"
	"github.com/panbanda/csflow/pkg/symex"
	"github.com/panbanda/csflow/pkg/syntax"
)

// NullDereference reports member accesses on a receiver that is null on
// some explored path.
type NullDereference struct{}

var _ Rule = NullDereference{}

func (NullDereference) ID() models.RuleID { return models.RuleNullDereference }

func (NullDereference) Start(m *Method) Check {
	return &nullCheck{model: m.Model, hits: make(map[*syntax.Node]bool)}
}

type nullCheck struct {
	model *semantic.Model
	hits  map[*syntax.Node]bool
	order []*syntax.Node
}

var _ symex.Observer = (*nullCheck)(nil)

// Members that are safe to use on a null nullable value type.
var nullableMembers = map[string]bool{
	"HasValue":          true,
	"GetValueOrDefault": true,
	"Equals":            true,
	"GetHashCode":       true,
	"ToString":          true,
}

func (c *nullCheck) PreInstruction(_ *cfg.Block, n *syntax.Node, s *symex.ProgramState) {
	if n.Kind != syntax.KindMemberAccess || c.hits[n] {
		return
	}
	receiver := s.Peek(0)
	if receiver == nil || !s.HasConstraint(receiver, symex.Null) {
		return
	}
	if nullableMembers[n.Name] && c.isNullableValue(n.Slot(0)) {
		return
	}
	c.hits[n] = true
	c.order = append(c.order, n)
}

func (c *nullCheck) isNullableValue(n *syntax.Node) bool {
	t := c.model.TypeOf(n)
	if !t.Nullable() {
		return false
	}
	return c.model.IsValueType(semantic.Type{Name: strings.TrimSuffix(t.Name, "?")})
}

func (c *nullCheck) Finish(m *Method, _ *symex.Result) []models.Finding {
	out := make([]models.Finding, 0, len(c.order))
	for _, n := range c.order {
		msg := fmt.Sprintf("'%s' is null on at least one execution path", n.Slot(0))
		out = append(out, finding(m, models.RuleNullDereference, models.SeverityError, n, msg))
	}
	return out
}
