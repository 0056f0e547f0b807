package csharp

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/csflow/pkg/syntax"
)

var literalTypes = map[string]bool{
	"integer_literal":         true,
	"real_literal":            true,
	"character_literal":       true,
	"string_literal":          true,
	"verbatim_string_literal": true,
	"raw_string_literal":      true,
}

var typeNodes = map[string]bool{
	"qualified_name":        true,
	"array_type":            true,
	"nullable_type":         true,
	"pointer_type":          true,
	"tuple_type":            true,
	"function_pointer_type": true,
	"alias_qualified_name":  true,
}

func (l *lowerer) expression(n *sitter.Node) *syntax.Node {
	if n == nil {
		return nil
	}
	t := n.Type()
	switch {
	case literalTypes[t]:
		return l.expr(n, syntax.KindLiteral)
	case typeNodes[t]:
		te := l.expr(n, syntax.KindTypeExpr)
		te.TypeText = te.Text
		return te
	}

	switch t {
	case "identifier":
		id := l.expr(n, syntax.KindIdentifier)
		id.Name = id.Text
		return id

	case "generic_name":
		id := l.expr(n, syntax.KindIdentifier)
		id.Name = l.text(firstOfType(n, "identifier"))
		return id

	case "this_expression", "this":
		return l.expr(n, syntax.KindThis)
	case "base_expression", "base":
		return l.expr(n, syntax.KindBase)
	case "null_literal":
		return l.expr(n, syntax.KindNull)
	case "boolean_literal":
		if strings.TrimSpace(l.text(n)) == "true" {
			return l.expr(n, syntax.KindTrue)
		}
		return l.expr(n, syntax.KindFalse)

	case "interpolated_string_expression":
		out := l.expr(n, syntax.KindInterpolatedString)
		for _, c := range named(n) {
			if c.Type() == "interpolation" {
				out.Slots = append(out.Slots, l.expression(first(named(c))))
			}
		}
		return syntax.Adopt(out)

	case "predefined_type":
		p := l.expr(n, syntax.KindPredefinedType)
		p.Name = p.Text
		return p

	case "parenthesized_expression":
		return l.expr(n, syntax.KindParenthesized, l.expression(first(named(n))))

	case "assignment_expression":
		left, right := l.binaryOperands(n)
		op := l.operator(n)
		kind := syntax.KindCompoundAssignment
		if op == "=" {
			kind = syntax.KindAssignment
		}
		out := l.expr(n, kind, l.expression(left), l.expression(right))
		out.Operator = op
		return out

	case "binary_expression":
		return l.binary(n)

	case "as_expression", "is_expression":
		left, right := l.binaryOperands(n)
		kind := syntax.KindAs
		if t == "is_expression" {
			kind = syntax.KindIs
		}
		out := l.expr(n, kind, l.expression(left))
		out.TypeText = l.text(right)
		return out

	case "prefix_unary_expression":
		op := l.operator(n)
		operand := l.expression(last(named(n)))
		if op == "!" {
			out := l.expr(n, syntax.KindLogicalNot, operand)
			out.Operator = op
			return out
		}
		out := l.expr(n, syntax.KindPrefixUnary, operand)
		out.Operator = op
		return out

	case "postfix_unary_expression":
		op := l.operator(n)
		operand := l.expression(first(named(n)))
		if op == "!" {
			// The null-forgiving operator has no runtime effect.
			return operand
		}
		out := l.expr(n, syntax.KindPostfixUnary, operand)
		out.Operator = op
		return out

	case "invocation_expression":
		fn := n.ChildByFieldName("function")
		args := n.ChildByFieldName("arguments")
		if fn == nil {
			parts := named(n)
			fn, args = first(parts), last(parts)
		}
		return l.expr(n, syntax.KindInvocation, l.expression(fn), l.arguments(args))

	case "member_access_expression":
		expr := n.ChildByFieldName("expression")
		name := n.ChildByFieldName("name")
		if expr == nil || name == nil {
			parts := named(n)
			expr, name = first(parts), last(parts)
		}
		out := l.expr(n, syntax.KindMemberAccess, l.expression(expr))
		out.Name = l.simpleName(name)
		return out

	case "element_access_expression":
		expr := n.ChildByFieldName("expression")
		sub := n.ChildByFieldName("subscript")
		if expr == nil || sub == nil {
			parts := named(n)
			expr, sub = first(parts), last(parts)
		}
		return l.expr(n, syntax.KindElementAccess, l.expression(expr), l.arguments(sub))

	case "conditional_access_expression":
		cond := n.ChildByFieldName("condition")
		parts := named(n)
		if cond == nil {
			cond = first(parts)
		}
		return l.expr(n, syntax.KindConditionalAccess, l.expression(cond), l.expression(last(parts)))

	case "member_binding_expression":
		out := l.expr(n, syntax.KindMemberBinding)
		name := n.ChildByFieldName("name")
		if name == nil {
			name = last(named(n))
		}
		out.Name = l.simpleName(name)
		return out

	case "element_binding_expression":
		return l.expr(n, syntax.KindElementBinding, l.arguments(first(named(n))))

	case "conditional_expression":
		cond := n.ChildByFieldName("condition")
		whenTrue := n.ChildByFieldName("consequence")
		whenFalse := n.ChildByFieldName("alternative")
		if cond == nil || whenTrue == nil || whenFalse == nil {
			parts := named(n)
			if len(parts) != 3 {
				return l.opaque(n)
			}
			cond, whenTrue, whenFalse = parts[0], parts[1], parts[2]
		}
		return l.expr(n, syntax.KindConditional, l.expression(cond), l.expression(whenTrue), l.expression(whenFalse))

	case "object_creation_expression", "implicit_object_creation_expression":
		var args, init *sitter.Node
		for _, c := range named(n) {
			switch c.Type() {
			case "argument_list":
				args = c
			case "initializer_expression":
				init = c
			}
		}
		out := l.expr(n, syntax.KindObjectCreation, l.arguments(args), l.expression(init))
		out.TypeText = l.text(n.ChildByFieldName("type"))
		return out

	case "array_creation_expression", "implicit_array_creation_expression", "stack_alloc_array_creation_expression",
		"implicit_stack_alloc_array_creation_expression":
		out := l.expr(n, syntax.KindArrayCreation, syntax.New(syntax.KindArgumentList),
			l.expression(firstOfType(n, "initializer_expression")))
		out.TypeText = l.text(n.ChildByFieldName("type"))
		return out

	case "initializer_expression":
		out := l.expr(n, syntax.KindInitializer)
		for _, c := range named(n) {
			out.Slots = append(out.Slots, l.expression(c))
		}
		return syntax.Adopt(out)

	case "anonymous_object_creation_expression":
		out := l.expr(n, syntax.KindAnonymousObject)
		for _, c := range named(n) {
			if c.Type() == "name_equals" {
				continue
			}
			if c.Type() == "anonymous_object_member_declarator" {
				c = last(named(c))
			}
			out.Slots = append(out.Slots, l.expression(c))
		}
		return syntax.Adopt(out)

	case "lambda_expression":
		params := n.ChildByFieldName("parameters")
		body := n.ChildByFieldName("body")
		if body == nil {
			body = last(named(n))
		}
		var lowered *syntax.Node
		if isStatement(body.Type()) {
			lowered = l.statement(body)
		} else {
			lowered = l.expression(body)
		}
		return l.expr(n, syntax.KindLambda, l.lambdaParameters(params), lowered)

	case "anonymous_method_expression":
		return l.expr(n, syntax.KindAnonymousMethod,
			l.parameters(firstOfType(n, "parameter_list")), l.statement(firstOfType(n, "block")))

	case "query_expression":
		out := l.expr(n, syntax.KindQuery)
		l.queryOperands(n, out)
		return syntax.Adopt(out)

	case "cast_expression":
		value := n.ChildByFieldName("value")
		if value == nil {
			value = last(named(n))
		}
		out := l.expr(n, syntax.KindCast, l.expression(value))
		out.TypeText = l.text(n.ChildByFieldName("type"))
		return out

	case "is_pattern_expression":
		expr := n.ChildByFieldName("expression")
		pat := n.ChildByFieldName("pattern")
		if expr == nil || pat == nil {
			parts := named(n)
			expr, pat = first(parts), last(parts)
		}
		if pat.Type() == "negated_pattern" {
			// x is not P is lowered to !(x is P).
			inner := l.expr(n, syntax.KindIsPattern, l.expression(expr), l.pattern(first(named(pat))))
			not := l.expr(n, syntax.KindLogicalNot, inner)
			not.Operator = "!"
			return not
		}
		return l.expr(n, syntax.KindIsPattern, l.expression(expr), l.pattern(pat))

	case "await_expression":
		return l.expr(n, syntax.KindAwait, l.expression(last(named(n))))

	case "declaration_expression":
		out := l.expr(n, syntax.KindDeclarationExpression)
		out.TypeText = l.text(n.ChildByFieldName("type"))
		out.Name = l.text(n.ChildByFieldName("name"))
		if out.Name == "" {
			parts := named(n)
			out.TypeText, out.Name = l.text(first(parts)), l.text(last(parts))
		}
		return out

	case "typeof_expression", "sizeof_expression":
		kind := syntax.KindTypeof
		if t == "sizeof_expression" {
			kind = syntax.KindSizeof
		}
		out := l.expr(n, kind)
		out.TypeText = l.text(first(named(n)))
		return out

	case "default_expression":
		out := l.expr(n, syntax.KindDefault)
		out.TypeText = l.text(first(named(n)))
		return out

	case "checked_expression":
		return l.expr(n, syntax.KindCheckedExpression, l.expression(last(named(n))))

	case "throw_expression":
		return l.expr(n, syntax.KindThrowExpression, l.expression(last(named(n))))

	case "tuple_expression":
		out := l.expr(n, syntax.KindTuple)
		for _, c := range named(n) {
			if c.Type() == "argument" {
				c = last(named(c))
			}
			out.Slots = append(out.Slots, l.expression(c))
		}
		return syntax.Adopt(out)

	case "ref_expression", "makeref_expression":
		return l.expression(last(named(n)))
	}
	return l.opaque(n)
}

// opaque lowers an unmodelled expression to one that evaluates its
// subexpressions and yields an unknown value.
func (l *lowerer) opaque(n *sitter.Node) *syntax.Node {
	out := l.expr(n, syntax.KindOpaqueExpression)
	for _, c := range named(n) {
		switch {
		case isStatement(c.Type()):
			out.Slots = append(out.Slots, l.statement(c))
		case isPatternType(c.Type()):
			out.Slots = append(out.Slots, l.pattern(c))
		default:
			out.Slots = append(out.Slots, l.expression(c))
		}
	}
	return syntax.Adopt(out)
}

func (l *lowerer) binary(n *sitter.Node) *syntax.Node {
	left, right := l.binaryOperands(n)
	op := l.operator(n)
	var kind syntax.Kind
	switch op {
	case "&&":
		kind = syntax.KindLogicalAnd
	case "||":
		kind = syntax.KindLogicalOr
	case "??":
		kind = syntax.KindCoalesce
	case "as", "is":
		kind = syntax.KindAs
		if op == "is" {
			kind = syntax.KindIs
		}
		out := l.expr(n, kind, l.expression(left))
		out.TypeText = l.text(right)
		return out
	default:
		kind = syntax.KindBinary
	}
	out := l.expr(n, kind, l.expression(left), l.expression(right))
	out.Operator = op
	return out
}

func (l *lowerer) binaryOperands(n *sitter.Node) (left, right *sitter.Node) {
	left, right = n.ChildByFieldName("left"), n.ChildByFieldName("right")
	if left == nil || right == nil {
		parts := named(n)
		if len(parts) >= 2 {
			left, right = parts[0], parts[len(parts)-1]
		}
	}
	return left, right
}

// operator returns the operator token of a unary, binary or assignment
// expression.
func (l *lowerer) operator(n *sitter.Node) string {
	if op := n.ChildByFieldName("operator"); op != nil {
		return strings.TrimSpace(l.text(op))
	}
	for _, c := range children(n) {
		if !c.IsNamed() && c.Type() != "(" && c.Type() != ")" {
			return c.Type()
		}
		if c.Type() == "assignment_operator" {
			return strings.TrimSpace(l.text(c))
		}
	}
	return ""
}

func (l *lowerer) simpleName(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	if n.Type() == "generic_name" {
		return l.text(firstOfType(n, "identifier"))
	}
	return l.text(n)
}

// arguments lowers an argument_list or bracketed_argument_list.
func (l *lowerer) arguments(list *sitter.Node) *syntax.Node {
	if list == nil {
		return syntax.New(syntax.KindArgumentList)
	}
	out := l.node(list, syntax.KindArgumentList)
	for _, a := range named(list) {
		if a.Type() != "argument" {
			out.Slots = append(out.Slots, l.node(a, syntax.KindArgument, l.expression(a)))
			continue
		}
		arg := l.node(a, syntax.KindArgument)
		var value *sitter.Node
		for _, c := range children(a) {
			switch {
			case c.Type() == "name_colon":
				arg.Name = l.text(first(named(c)))
			case !c.IsNamed() && (c.Type() == "ref" || c.Type() == "out" || c.Type() == "in"):
				arg.Modifier = c.Type()
			case c.IsNamed():
				value = c
			}
		}
		arg.Slots = []*syntax.Node{l.expression(value)}
		arg.Text = l.text(a)
		out.Slots = append(out.Slots, syntax.Adopt(arg))
	}
	return syntax.Adopt(out)
}

func (l *lowerer) lambdaParameters(params *sitter.Node) *syntax.Node {
	switch {
	case params == nil:
		return syntax.New(syntax.KindList)
	case params.Type() == "parameter_list":
		return l.parameters(params)
	}
	p := l.node(params, syntax.KindParameter)
	p.Name = l.text(params)
	return l.node(params, syntax.KindList, p)
}

// queryOperands collects the expressions of a query. Range variables are
// not modelled; their uses stay unresolved.
func (l *lowerer) queryOperands(n *sitter.Node, out *syntax.Node) {
	for _, c := range named(n) {
		switch {
		case c.Type() == "identifier" && n.Type() != "query_expression":
		case strings.HasSuffix(c.Type(), "_clause") || c.Type() == "query_body" || c.Type() == "query_continuation":
			l.queryOperands(c, out)
		default:
			out.Slots = append(out.Slots, l.expression(c))
		}
	}
}

// Patterns.

func isPatternType(t string) bool {
	return strings.HasSuffix(t, "_pattern") || t == "discard"
}

func (l *lowerer) pattern(n *sitter.Node) *syntax.Node {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "constant_pattern":
		return l.expr(n, syntax.KindConstantPattern, l.expression(first(named(n))))

	case "declaration_pattern":
		out := l.expr(n, syntax.KindDeclarationPattern)
		typ := n.ChildByFieldName("type")
		designation := n.ChildByFieldName("name")
		if typ == nil || designation == nil {
			parts := named(n)
			typ, designation = first(parts), last(parts)
		}
		out.TypeText = l.text(typ)
		out.Name = l.designation(designation)
		if out.Name == "" {
			out.Kind = syntax.KindTypePattern
		}
		return out

	case "var_pattern":
		out := l.expr(n, syntax.KindVarPattern)
		out.Name = l.designation(last(named(n)))
		if out.Name == "" {
			out.Kind = syntax.KindDiscard
		}
		return out

	case "type_pattern":
		out := l.expr(n, syntax.KindTypePattern)
		out.TypeText = out.Text
		return out

	case "discard":
		return l.expr(n, syntax.KindDiscard)

	case "parenthesized_pattern":
		return l.pattern(first(named(n)))
	}

	if isPatternType(n.Type()) {
		out := l.expr(n, syntax.KindRecursivePattern)
		l.subpatterns(n, out)
		return syntax.Adopt(out)
	}
	// Older grammars use a bare expression as a constant pattern.
	return l.expr(n, syntax.KindConstantPattern, l.expression(n))
}

// subpatterns appends the patterns nested in a composite pattern, and a
// variable pattern for its designation.
func (l *lowerer) subpatterns(n *sitter.Node, out *syntax.Node) {
	for _, c := range named(n) {
		switch {
		case isPatternType(c.Type()):
			out.Slots = append(out.Slots, l.pattern(c))
		case c.Type() == "single_variable_designation", c.Type() == "identifier" && n.Type() == "recursive_pattern":
			v := l.expr(c, syntax.KindVarPattern)
			v.Name = l.text(c)
			out.Slots = append(out.Slots, v)
		case c.Type() == "positional_pattern_clause", c.Type() == "property_pattern_clause", c.Type() == "subpattern":
			l.subpatterns(c, out)
		}
	}
}

func (l *lowerer) designation(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "single_variable_designation", "identifier":
		return l.text(n)
	}
	return ""
}
