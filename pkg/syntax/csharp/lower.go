package csharp

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/csflow/pkg/syntax"
)

// lowerer converts tree-sitter nodes into syntax nodes. Shapes it does not
// recognize become KindOther statements or KindOpaqueExpression
// expressions over their lowered children, so analyses degrade instead of
// failing.
type lowerer struct {
	src        []byte
	attributes []string
}

func (l *lowerer) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(l.src)
}

func span(n *sitter.Node) syntax.Span {
	start, end := n.StartPoint(), n.EndPoint()
	return syntax.Span{
		StartLine: int(start.Row) + 1,
		StartCol:  int(start.Column) + 1,
		EndLine:   int(end.Row) + 1,
		EndCol:    int(end.Column) + 1,
	}
}

// node creates a syntax node positioned at n.
func (l *lowerer) node(n *sitter.Node, kind syntax.Kind, slots ...*syntax.Node) *syntax.Node {
	out := syntax.New(kind, slots...)
	out.Span = span(n)
	return out
}

// expr creates an expression node that carries its source text.
func (l *lowerer) expr(n *sitter.Node, kind syntax.Kind, slots ...*syntax.Node) *syntax.Node {
	out := l.node(n, kind, slots...)
	out.Text = l.text(n)
	return out
}

// named returns the named children of n, skipping comments.
func named(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := range int(n.NamedChildCount()) {
		c := n.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// children returns every child of n, named or not, skipping comments.
func children(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.ChildCount())
	for i := range int(n.ChildCount()) {
		c := n.Child(i)
		if c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func firstOfType(n *sitter.Node, types ...string) *sitter.Node {
	for _, c := range named(n) {
		for _, t := range types {
			if c.Type() == t {
				return c
			}
		}
	}
	return nil
}

func hasToken(n *sitter.Node, token string) bool {
	for _, c := range children(n) {
		if !c.IsNamed() && c.Type() == token {
			return true
		}
	}
	return false
}

func last(nodes []*sitter.Node) *sitter.Node {
	if len(nodes) == 0 {
		return nil
	}
	return nodes[len(nodes)-1]
}

// Declarations.

var typeDeclarations = map[string]string{
	"class_declaration":         "class",
	"struct_declaration":        "struct",
	"record_declaration":        "record",
	"record_struct_declaration": "struct",
	"interface_declaration":     "interface",
	"enum_declaration":          "enum",
}

func (l *lowerer) compilationUnit(root *sitter.Node) *syntax.Node {
	unit := l.node(root, syntax.KindCompilationUnit)
	var topLevel []*syntax.Node
	var first *sitter.Node
	for _, c := range named(root) {
		switch c.Type() {
		case "global_statement":
			if first == nil {
				first = c
			}
			for _, s := range named(c) {
				topLevel = append(topLevel, l.statement(s))
			}
		case "global_attribute_list", "global_attribute":
			l.collectAttributes(c)
		default:
			unit.Slots = append(unit.Slots, l.members(c)...)
		}
	}
	if len(topLevel) > 0 {
		body := l.node(first, syntax.KindBlock, topLevel...)
		m := syntax.Method("<top-level>", nil, body)
		m.Span = body.Span
		unit.Slots = append(unit.Slots, m)
	}
	return syntax.Adopt(unit)
}

// members lowers a namespace member or type member into zero or more
// declarations.
func (l *lowerer) members(n *sitter.Node) []*syntax.Node {
	switch t := n.Type(); {
	case t == "namespace_declaration", t == "file_scoped_namespace_declaration", t == "declaration_list":
		var out []*syntax.Node
		for _, c := range named(n) {
			if c.Type() == "declaration_list" || typeDeclarations[c.Type()] != "" || isMemberDeclaration(c.Type()) ||
				strings.HasSuffix(c.Type(), "namespace_declaration") {
				out = append(out, l.members(c)...)
			}
		}
		return out

	case typeDeclarations[t] != "":
		decl := l.node(n, syntax.KindType)
		decl.Name = l.text(n.ChildByFieldName("name"))
		decl.Modifier = typeDeclarations[t]
		if t == "record_declaration" && hasToken(n, "struct") {
			decl.Modifier = "struct"
		}
		decl.Attributes = l.collectAttributes(n)
		if body := n.ChildByFieldName("body"); body != nil {
			decl.Slots = l.members(body)
		} else if body := firstOfType(n, "declaration_list"); body != nil {
			decl.Slots = l.members(body)
		}
		return []*syntax.Node{syntax.Adopt(decl)}

	case t == "method_declaration", t == "constructor_declaration", t == "destructor_declaration",
		t == "operator_declaration", t == "conversion_operator_declaration":
		return []*syntax.Node{l.method(n, l.methodName(n))}

	case t == "property_declaration", t == "indexer_declaration":
		return l.accessors(n)
	}
	return nil
}

func isMemberDeclaration(t string) bool {
	switch t {
	case "method_declaration", "constructor_declaration", "destructor_declaration", "operator_declaration",
		"conversion_operator_declaration", "property_declaration", "indexer_declaration":
		return true
	}
	return false
}

func (l *lowerer) methodName(n *sitter.Node) string {
	switch n.Type() {
	case "destructor_declaration":
		return "~" + l.text(n.ChildByFieldName("name"))
	case "operator_declaration":
		return "operator " + l.text(n.ChildByFieldName("operator"))
	case "conversion_operator_declaration":
		return "operator " + l.text(n.ChildByFieldName("type"))
	}
	if name := n.ChildByFieldName("name"); name != nil {
		return l.text(name)
	}
	if id := firstOfType(n, "identifier"); id != nil {
		return l.text(id)
	}
	return n.Type()
}

// method lowers anything with a parameter list and a block or arrow body.
func (l *lowerer) method(n *sitter.Node, name string) *syntax.Node {
	params := l.parameters(n.ChildByFieldName("parameters"))
	if params.Span == (syntax.Span{}) {
		params = l.parameters(firstOfType(n, "parameter_list"))
	}
	m := l.node(n, syntax.KindMethod, params, l.body(n))
	m.Name = name
	m.Attributes = l.collectAttributes(n)
	if l.hasModifier(n, "static") {
		m.Modifier = "static"
	}
	return m
}

func (l *lowerer) hasModifier(n *sitter.Node, modifier string) bool {
	for _, c := range children(n) {
		if c.Type() == "modifier" && l.text(c) == modifier {
			return true
		}
	}
	return false
}

// body returns the block or expression body of a member, or nil.
func (l *lowerer) body(n *sitter.Node) *syntax.Node {
	if b := n.ChildByFieldName("body"); b != nil {
		if b.Type() == "arrow_expression_clause" {
			return l.expression(last(named(b)))
		}
		return l.statement(b)
	}
	if b := firstOfType(n, "block"); b != nil {
		return l.statement(b)
	}
	if a := firstOfType(n, "arrow_expression_clause"); a != nil {
		return l.expression(last(named(a)))
	}
	return nil
}

// accessors lowers the accessor bodies of a property or indexer into one
// method each, named Property.get, Property.set and so on.
func (l *lowerer) accessors(n *sitter.Node) []*syntax.Node {
	name := l.text(n.ChildByFieldName("name"))
	if n.Type() == "indexer_declaration" {
		name = "this[]"
	}
	var out []*syntax.Node
	if a := firstOfType(n, "arrow_expression_clause"); a != nil {
		m := l.node(n, syntax.KindMethod, l.node(a, syntax.KindList), l.expression(last(named(a))))
		m.Name = name + ".get"
		out = append(out, m)
	}
	list := n.ChildByFieldName("accessors")
	if list == nil {
		list = firstOfType(n, "accessor_list")
	}
	for _, acc := range named(list) {
		if acc.Type() != "accessor_declaration" {
			continue
		}
		kind := ""
		for _, c := range children(acc) {
			switch c.Type() {
			case "get", "set", "init", "add", "remove":
				kind = c.Type()
			}
		}
		if kind == "" {
			kind = l.text(acc.ChildByFieldName("name"))
		}
		body := l.body(acc)
		if body == nil {
			continue
		}
		m := l.node(acc, syntax.KindMethod, l.node(acc, syntax.KindList), body)
		m.Name = name + "." + kind
		out = append(out, m)
	}
	return out
}

// collectAttributes returns the attribute names attached to n and records
// them for generated-code detection.
func (l *lowerer) collectAttributes(n *sitter.Node) []string {
	var names []string
	var visit func(*sitter.Node)
	visit = func(c *sitter.Node) {
		switch c.Type() {
		case "attribute":
			name := l.text(c.ChildByFieldName("name"))
			if name == "" {
				name = l.text(firstOfType(c, "identifier", "qualified_name", "generic_name"))
			}
			names = append(names, name)
		case "attribute_list", "global_attribute_list", "global_attribute":
			for _, a := range named(c) {
				visit(a)
			}
		}
	}
	if n.Type() == "global_attribute_list" || n.Type() == "global_attribute" {
		visit(n)
	} else {
		for _, c := range named(n) {
			if c.Type() == "attribute_list" {
				visit(c)
			}
		}
	}
	l.attributes = append(l.attributes, names...)
	return names
}

func (l *lowerer) parameters(list *sitter.Node) *syntax.Node {
	if list == nil {
		return syntax.New(syntax.KindList)
	}
	out := l.node(list, syntax.KindList)
	for _, p := range named(list) {
		switch p.Type() {
		case "parameter":
			out.Slots = append(out.Slots, l.parameter(p))
		case "identifier", "implicit_parameter":
			param := l.node(p, syntax.KindParameter)
			param.Name = l.text(p)
			out.Slots = append(out.Slots, param)
		}
	}
	return syntax.Adopt(out)
}

func (l *lowerer) parameter(p *sitter.Node) *syntax.Node {
	param := l.node(p, syntax.KindParameter)
	param.Name = l.text(p.ChildByFieldName("name"))
	param.TypeText = l.text(p.ChildByFieldName("type"))
	for _, c := range children(p) {
		switch c.Type() {
		case "attribute_list":
			for _, a := range named(c) {
				if a.Type() == "attribute" {
					name := l.text(a.ChildByFieldName("name"))
					if name == "" {
						name = l.text(firstOfType(a, "identifier", "qualified_name"))
					}
					param.Attributes = append(param.Attributes, name)
				}
			}
		case "parameter_modifier", "ref", "out", "in":
			switch m := strings.TrimSpace(l.text(c)); m {
			case "ref", "out", "in":
				param.Modifier = m
			}
		}
	}
	if param.Name == "" {
		if id := last(named(p)); id != nil && id.Type() == "identifier" {
			param.Name = l.text(id)
		}
	}
	return param
}

// Statements.

func (l *lowerer) statements(nodes []*sitter.Node) []*syntax.Node {
	out := make([]*syntax.Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, l.statement(n))
	}
	return out
}

func (l *lowerer) statement(n *sitter.Node) *syntax.Node {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "block":
		return l.node(n, syntax.KindBlock, l.statements(named(n))...)

	case "empty_statement":
		return l.node(n, syntax.KindEmpty)

	case "expression_statement":
		return l.node(n, syntax.KindExpressionStatement, l.expression(first(named(n))))

	case "local_declaration_statement":
		return l.declaration(firstOfType(n, "variable_declaration"))

	case "variable_declaration":
		return l.declaration(n)

	case "local_function_statement":
		fn := l.node(n, syntax.KindLocalFunction, l.parameters(n.ChildByFieldName("parameters")), l.body(n))
		fn.Name = l.text(n.ChildByFieldName("name"))
		return fn

	case "if_statement":
		return l.node(n, syntax.KindIf,
			l.expression(n.ChildByFieldName("condition")),
			l.statement(n.ChildByFieldName("consequence")),
			l.statement(n.ChildByFieldName("alternative")))

	case "while_statement":
		return l.node(n, syntax.KindWhile,
			l.expression(n.ChildByFieldName("condition")),
			l.statement(n.ChildByFieldName("body")))

	case "do_statement":
		return l.node(n, syntax.KindDo,
			l.statement(n.ChildByFieldName("body")),
			l.expression(n.ChildByFieldName("condition")))

	case "for_statement":
		return l.forStatement(n)

	case "for_each_statement", "foreach_statement":
		return l.foreach(n)

	case "switch_statement":
		return l.switchStatement(n)

	case "try_statement":
		return l.tryStatement(n)

	case "lock_statement":
		parts := named(n)
		if len(parts) < 2 {
			return l.opaqueStatement(n)
		}
		return l.node(n, syntax.KindLock, l.expression(parts[0]), l.statement(last(parts)))

	case "using_statement":
		parts := named(n)
		if len(parts) == 0 {
			return l.opaqueStatement(n)
		}
		var resource *syntax.Node
		if len(parts) > 1 {
			if parts[0].Type() == "variable_declaration" {
				resource = l.declaration(parts[0])
			} else {
				resource = l.expression(parts[0])
			}
		}
		return l.node(n, syntax.KindUsing, resource, l.statement(last(parts)))

	case "fixed_statement":
		parts := named(n)
		if len(parts) < 2 {
			return l.opaqueStatement(n)
		}
		return l.node(n, syntax.KindFixed, l.declaration(parts[0]), l.statement(last(parts)))

	case "checked_statement":
		c := l.node(n, syntax.KindChecked, l.statement(firstOfType(n, "block")))
		c.Operator = "checked"
		if hasToken(n, "unchecked") {
			c.Operator = "unchecked"
		}
		return c

	case "unsafe_statement":
		return l.node(n, syntax.KindUnsafe, l.statement(firstOfType(n, "block")))

	case "labeled_statement":
		parts := named(n)
		if len(parts) < 2 {
			return l.opaqueStatement(n)
		}
		s := l.node(n, syntax.KindLabeled, l.statement(last(parts)))
		s.Name = l.text(parts[0])
		return s

	case "goto_statement":
		switch {
		case hasToken(n, "case"):
			return l.node(n, syntax.KindGotoCase, l.expression(first(named(n))))
		case hasToken(n, "default"):
			return l.node(n, syntax.KindGotoDefault)
		}
		g := l.node(n, syntax.KindGoto)
		g.Name = l.text(first(named(n)))
		return g

	case "return_statement":
		return l.node(n, syntax.KindReturn, l.expression(first(named(n))))

	case "throw_statement":
		return l.node(n, syntax.KindThrow, l.expression(first(named(n))))

	case "yield_statement":
		if hasToken(n, "break") {
			return l.node(n, syntax.KindYieldBreak)
		}
		return l.node(n, syntax.KindYieldReturn, l.expression(first(named(n))))

	case "break_statement":
		return l.node(n, syntax.KindBreak)

	case "continue_statement":
		return l.node(n, syntax.KindContinue)
	}
	return l.opaqueStatement(n)
}

func first(nodes []*sitter.Node) *sitter.Node {
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// opaqueStatement keeps the expressions and statements under an
// unrecognized statement so that their uses and jumps are not lost.
func (l *lowerer) opaqueStatement(n *sitter.Node) *syntax.Node {
	out := l.expr(n, syntax.KindOther)
	for _, c := range named(n) {
		if isStatement(c.Type()) {
			out.Slots = append(out.Slots, l.statement(c))
		} else {
			out.Slots = append(out.Slots, l.expression(c))
		}
	}
	return syntax.Adopt(out)
}

func isStatement(t string) bool {
	return strings.HasSuffix(t, "_statement") || t == "block"
}

func (l *lowerer) declaration(n *sitter.Node) *syntax.Node {
	if n == nil {
		return nil
	}
	typeText := l.text(n.ChildByFieldName("type"))
	decl := l.node(n, syntax.KindLocalDeclaration)
	decl.TypeText = typeText
	for _, c := range named(n) {
		if c.Type() != "variable_declarator" {
			continue
		}
		d := l.node(c, syntax.KindDeclarator)
		d.TypeText = typeText
		d.Name = l.text(c.ChildByFieldName("name"))
		if d.Name == "" {
			d.Name = l.text(firstOfType(c, "identifier"))
		}
		if eq := firstOfType(c, "equals_value_clause"); eq != nil {
			d.Slots = []*syntax.Node{l.expression(first(named(eq)))}
		} else if v := c.ChildByFieldName("value"); v != nil {
			d.Slots = []*syntax.Node{l.expression(v)}
		} else if parts := named(c); len(parts) > 1 {
			// Newer grammars put the initializer directly after '='.
			d.Slots = []*syntax.Node{l.expression(last(parts))}
		}
		d.Text = l.text(c)
		decl.Slots = append(decl.Slots, syntax.Adopt(d))
	}
	return syntax.Adopt(decl)
}

// forStatement splits the header at its semicolons, which works whether or
// not the grammar labels the clauses.
func (l *lowerer) forStatement(n *sitter.Node) *syntax.Node {
	var init, update []*syntax.Node
	var cond, body *syntax.Node
	section := 0
	for _, c := range children(n) {
		if !c.IsNamed() {
			switch c.Type() {
			case ";":
				section++
			case ")":
				section = 3
			}
			continue
		}
		switch section {
		case 0:
			if c.Type() == "variable_declaration" {
				init = append(init, l.declaration(c))
			} else {
				init = append(init, l.expression(c))
			}
		case 1:
			cond = l.expression(c)
		case 2:
			update = append(update, l.expression(c))
		default:
			body = l.statement(c)
		}
	}
	return l.node(n, syntax.KindFor,
		l.node(n, syntax.KindList, init...), cond, l.node(n, syntax.KindList, update...), body)
}

func (l *lowerer) foreach(n *sitter.Node) *syntax.Node {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	body := n.ChildByFieldName("body")
	if right == nil || body == nil {
		parts := named(n)
		if len(parts) < 2 {
			return l.opaqueStatement(n)
		}
		right, body = parts[len(parts)-2], parts[len(parts)-1]
	}
	out := l.node(n, syntax.KindForeach, l.expression(right), l.statement(body))
	out.TypeText = l.text(n.ChildByFieldName("type"))
	out.Name = l.text(left)
	return out
}

func (l *lowerer) switchStatement(n *sitter.Node) *syntax.Node {
	value := n.ChildByFieldName("value")
	body := n.ChildByFieldName("body")
	if value == nil || body == nil {
		parts := named(n)
		if len(parts) < 2 {
			return l.opaqueStatement(n)
		}
		value, body = parts[0], parts[len(parts)-1]
	}
	sw := l.node(n, syntax.KindSwitch, l.expression(value))
	for _, sec := range named(body) {
		if sec.Type() == "switch_section" {
			sw.Slots = append(sw.Slots, l.section(sec))
		}
	}
	return syntax.Adopt(sw)
}

// section lowers a switch section. Older grammars wrap each label in a
// *_switch_label node; newer ones inline 'case' ... ':' tokens.
func (l *lowerer) section(sec *sitter.Node) *syntax.Node {
	var labels, stmts []*syntax.Node
	var pending []*sitter.Node
	var when *sitter.Node
	inLabel := false

	flush := func(at *sitter.Node) {
		labels = append(labels, l.inlineLabel(at, pending, when))
		pending, when, inLabel = nil, nil, false
	}

	for _, c := range children(sec) {
		switch {
		case c.Type() == "case_switch_label":
			labels = append(labels, l.node(c, syntax.KindCaseLabel, l.expression(first(named(c)))))
		case c.Type() == "case_pattern_switch_label":
			parts := named(c)
			var whenExpr *syntax.Node
			if w := firstOfType(c, "when_clause"); w != nil {
				whenExpr = l.expression(first(named(w)))
			}
			labels = append(labels, l.node(c, syntax.KindPatternCaseLabel, l.pattern(first(parts)), whenExpr))
		case c.Type() == "default_switch_label":
			labels = append(labels, l.node(c, syntax.KindDefaultLabel))
		case !c.IsNamed() && c.Type() == "case":
			inLabel = true
		case !c.IsNamed() && c.Type() == "default" && !inLabel:
			labels = append(labels, l.node(c, syntax.KindDefaultLabel))
		case !c.IsNamed() && c.Type() == ":" && inLabel:
			flush(c)
		case !c.IsNamed():
		case inLabel && c.Type() == "when_clause":
			when = c
		case inLabel:
			pending = append(pending, c)
		default:
			stmts = append(stmts, l.statement(c))
		}
	}
	return l.node(sec, syntax.KindSwitchSection,
		l.node(sec, syntax.KindList, labels...),
		l.node(sec, syntax.KindList, stmts...))
}

func (l *lowerer) inlineLabel(at *sitter.Node, parts []*sitter.Node, when *sitter.Node) *syntax.Node {
	p := first(parts)
	if p == nil {
		return l.node(at, syntax.KindDefaultLabel)
	}
	if when == nil && (p.Type() == "constant_pattern" || !isPatternType(p.Type())) {
		value := p
		if p.Type() == "constant_pattern" {
			value = first(named(p))
		}
		return l.node(p, syntax.KindCaseLabel, l.expression(value))
	}
	var whenExpr *syntax.Node
	if when != nil {
		whenExpr = l.expression(first(named(when)))
	}
	return l.node(p, syntax.KindPatternCaseLabel, l.pattern(p), whenExpr)
}

func (l *lowerer) tryStatement(n *sitter.Node) *syntax.Node {
	body := n.ChildByFieldName("body")
	if body == nil {
		body = firstOfType(n, "block")
	}
	var catches []*syntax.Node
	var finally *syntax.Node
	for _, c := range named(n) {
		switch c.Type() {
		case "catch_clause":
			catches = append(catches, l.catchClause(c))
		case "finally_clause":
			finally = l.statement(firstOfType(c, "block"))
		}
	}
	return l.node(n, syntax.KindTry, l.statement(body), l.node(n, syntax.KindList, catches...), finally)
}

func (l *lowerer) catchClause(c *sitter.Node) *syntax.Node {
	var filter *syntax.Node
	if f := firstOfType(c, "catch_filter_clause"); f != nil {
		filter = l.expression(first(named(f)))
	}
	body := c.ChildByFieldName("body")
	if body == nil {
		body = firstOfType(c, "block")
	}
	out := l.node(c, syntax.KindCatch, filter, l.statement(body))
	if decl := firstOfType(c, "catch_declaration"); decl != nil {
		out.TypeText = l.text(decl.ChildByFieldName("type"))
		out.Name = l.text(decl.ChildByFieldName("name"))
		if out.TypeText == "" {
			parts := named(decl)
			out.TypeText = l.text(first(parts))
			if len(parts) > 1 {
				out.Name = l.text(parts[1])
			}
		}
	}
	return out
}
