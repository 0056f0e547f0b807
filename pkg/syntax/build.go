package syntax

// New creates a node of the given kind with the given slots and links the
// slots back to it.
func New(kind Kind, slots ...*Node) *Node {
	n := &Node{Kind: kind, Slots: slots}
	for _, s := range slots {
		if s != nil {
			s.Parent = n
		}
	}
	return n
}

// Adopt sets the parent links of n's slots. Front ends that fill Slots
// directly call it once per node.
func Adopt(n *Node) *Node {
	for _, s := range n.Slots {
		if s != nil {
			s.Parent = n
		}
	}
	return n
}

func named(kind Kind, name string, slots ...*Node) *Node {
	n := New(kind, slots...)
	n.Name = name
	return n
}

func op(kind Kind, operator string, slots ...*Node) *Node {
	n := New(kind, slots...)
	n.Operator = operator
	return n
}

// Ident builds an identifier reference.
func Ident(name string) *Node { return named(KindIdentifier, name) }

// Lit builds a literal with the given source text.
func Lit(text string) *Node {
	n := New(KindLiteral)
	n.Text = text
	return n
}

func Null() *Node  { return New(KindNull) }
func True() *Node  { return New(KindTrue) }
func False() *Node { return New(KindFalse) }
func This() *Node  { return New(KindThis) }

// Predefined builds a predefined type keyword used as an expression, such
// as the receiver in string.IsNullOrEmpty.
func Predefined(name string) *Node { return named(KindPredefinedType, name) }

func Member(expr *Node, name string) *Node { return named(KindMemberAccess, name, expr) }

// Call builds an invocation of target with plain arguments. Arguments that
// are already KindArgument nodes are kept as they are.
func Call(target *Node, args ...*Node) *Node {
	return New(KindInvocation, target, Args(args...))
}

// Args wraps expressions into an argument list.
func Args(args ...*Node) *Node {
	wrapped := make([]*Node, len(args))
	for i, a := range args {
		if a.Kind == KindArgument {
			wrapped[i] = a
			continue
		}
		wrapped[i] = New(KindArgument, a)
	}
	return New(KindArgumentList, wrapped...)
}

// RefArg builds an argument passed with a ref, out or in modifier.
func RefArg(modifier string, expr *Node) *Node {
	n := New(KindArgument, expr)
	n.Modifier = modifier
	return n
}

func Assign(left, right *Node) *Node { return op(KindAssignment, "=", left, right) }

func CompoundAssign(operator string, left, right *Node) *Node {
	return op(KindCompoundAssignment, operator, left, right)
}

func Bin(operator string, left, right *Node) *Node {
	switch operator {
	case "&&":
		return op(KindLogicalAnd, operator, left, right)
	case "||":
		return op(KindLogicalOr, operator, left, right)
	case "??":
		return op(KindCoalesce, operator, left, right)
	}
	return op(KindBinary, operator, left, right)
}

func And(left, right *Node) *Node      { return Bin("&&", left, right) }
func Or(left, right *Node) *Node       { return Bin("||", left, right) }
func Coalesce(left, right *Node) *Node { return Bin("??", left, right) }
func Not(operand *Node) *Node          { return op(KindLogicalNot, "!", operand) }
func Paren(expr *Node) *Node           { return New(KindParenthesized, expr) }

func PostInc(operand *Node) *Node { return op(KindPostfixUnary, "++", operand) }
func PreInc(operand *Node) *Node  { return op(KindPrefixUnary, "++", operand) }

func Cond(cond, whenTrue, whenFalse *Node) *Node {
	return New(KindConditional, cond, whenTrue, whenFalse)
}

// CondAccess builds expr?.whenNotNull, where whenNotNull is rooted at a
// member or element binding.
func CondAccess(expr, whenNotNull *Node) *Node {
	return New(KindConditionalAccess, expr, whenNotNull)
}

func Binding(name string) *Node { return named(KindMemberBinding, name) }

func NewObject(typeText string, args ...*Node) *Node {
	n := New(KindObjectCreation, Args(args...), nil)
	n.TypeText = typeText
	return n
}

// Lambda builds a lambda over the named parameters with the given body.
func Lambda(body *Node, params ...string) *Node {
	ps := make([]*Node, len(params))
	for i, p := range params {
		ps[i] = named(KindParameter, p)
	}
	return New(KindLambda, New(KindList, ps...), body)
}

func IsNull(expr *Node) *Node {
	return New(KindIsPattern, expr, New(KindConstantPattern, Null()))
}

func DeclPattern(typeText, name string) *Node {
	n := named(KindDeclarationPattern, name)
	n.TypeText = typeText
	return n
}

func OutVar(name string) *Node {
	n := named(KindDeclarationExpression, name)
	n.TypeText = "var"
	return RefArg("out", n)
}

// Statements.

func Block(stmts ...*Node) *Node   { return New(KindBlock, stmts...) }
func ExprStmt(expr *Node) *Node    { return New(KindExpressionStatement, expr) }
func List(items ...*Node) *Node    { return New(KindList, items...) }
func Return(expr *Node) *Node      { return New(KindReturn, expr) }
func Throw(expr *Node) *Node       { return New(KindThrow, expr) }
func YieldReturn(expr *Node) *Node { return New(KindYieldReturn, expr) }
func YieldBreak() *Node            { return New(KindYieldBreak) }
func Break() *Node                 { return New(KindBreak) }
func Continue() *Node              { return New(KindContinue) }
func Goto(label string) *Node      { return named(KindGoto, label) }
func GotoCase(value *Node) *Node   { return New(KindGotoCase, value) }
func GotoDefault() *Node           { return New(KindGotoDefault) }

func Labeled(label string, stmt *Node) *Node { return named(KindLabeled, label, stmt) }

// Declarator builds one variable declarator; init may be nil.
func Declarator(name string, init *Node) *Node {
	n := named(KindDeclarator, name, init)
	n.TypeText = "var"
	return n
}

// Var builds a local declaration statement with a single declarator.
func Var(name string, init *Node) *Node {
	return VarTyped("var", name, init)
}

// VarTyped is Var with an explicit declared type.
func VarTyped(typeText, name string, init *Node) *Node {
	d := Declarator(name, init)
	d.TypeText = typeText
	n := New(KindLocalDeclaration, d)
	n.TypeText = typeText
	return n
}

func If(cond, then, els *Node) *Node { return New(KindIf, cond, then, els) }
func While(cond, body *Node) *Node   { return New(KindWhile, cond, body) }
func Do(body, cond *Node) *Node      { return New(KindDo, body, cond) }

// For builds a for statement. init and update are lists of declarators or
// expressions and may be nil.
func For(init []*Node, cond *Node, update []*Node, body *Node) *Node {
	return New(KindFor, New(KindList, init...), cond, New(KindList, update...), body)
}

func Foreach(name string, collection, body *Node) *Node {
	n := named(KindForeach, name, collection, body)
	n.TypeText = "var"
	return n
}

func Lock(expr, body *Node) *Node { return New(KindLock, expr, body) }

// Using builds a using statement; resource is a local declaration, an
// expression or nil.
func Using(resource, body *Node) *Node { return New(KindUsing, resource, body) }

func Fixed(decl, body *Node) *Node { return New(KindFixed, decl, body) }

func Checked(block *Node) *Node {
	return op(KindChecked, "checked", block)
}

func Unsafe(block *Node) *Node { return New(KindUnsafe, block) }

// Switch builds a switch statement over expr.
func Switch(expr *Node, sections ...*Node) *Node {
	return New(KindSwitch, append([]*Node{expr}, sections...)...)
}

// Section builds a switch section from its labels and statements.
func Section(labels []*Node, stmts ...*Node) *Node {
	return New(KindSwitchSection, New(KindList, labels...), New(KindList, stmts...))
}

func Case(value *Node) *Node { return New(KindCaseLabel, value) }
func Default() *Node         { return New(KindDefaultLabel) }

// CasePattern builds a pattern label with an optional when clause.
func CasePattern(pattern, when *Node) *Node {
	return New(KindPatternCaseLabel, pattern, when)
}

// Try builds a try statement; finally may be nil.
func Try(body *Node, catches []*Node, finally *Node) *Node {
	return New(KindTry, body, New(KindList, catches...), finally)
}

// Catch builds a catch clause. typeText and name may be empty; filter may
// be nil.
func Catch(typeText, name string, filter, body *Node) *Node {
	n := named(KindCatch, name, filter, body)
	n.TypeText = typeText
	return n
}

// Param builds a method parameter.
func Param(typeText, name string) *Node {
	n := named(KindParameter, name)
	n.TypeText = typeText
	return n
}

// Method builds a method declaration.
func Method(name string, params []*Node, body *Node) *Node {
	return named(KindMethod, name, New(KindList, params...), body)
}

// LocalFunction builds a local function statement.
func LocalFunction(name string, params []*Node, body *Node) *Node {
	return named(KindLocalFunction, name, New(KindList, params...), body)
}
