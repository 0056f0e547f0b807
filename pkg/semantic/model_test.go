package semantic

import (
	"testing"

	"github.com/panbanda/csflow/pkg/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelBindsParametersAndLocals(t *testing.T) {
	useP := syntax.Ident("p")
	useX := syntax.Ident("x")
	decl := syntax.Var("x", syntax.Lit("1"))
	param := syntax.Param("string", "p")
	method := syntax.Method("M", []*syntax.Node{param}, syntax.Block(
		decl,
		syntax.ExprStmt(syntax.Call(syntax.Ident("Use"), useP, useX)),
	))

	m := NewModel(method)

	p := m.DeclaredSymbol(param)
	require.NotNil(t, p)
	assert.Equal(t, SymbolParameter, p.Kind)
	assert.Same(t, p, m.ReferencedSymbol(useP))

	x := m.DeclaredSymbol(decl.Slot(0))
	require.NotNil(t, x)
	assert.Same(t, x, m.ReferencedSymbol(useX))
	assert.Equal(t, "int", x.TypeText, "var is inferred from the literal initializer")
	assert.Same(t, method, x.Owner)

	assert.Nil(t, m.ReferencedSymbol(syntax.Ident("Use")))
}

func TestModelScopes(t *testing.T) {
	inner := syntax.Ident("i")
	outer := syntax.Ident("i")
	loop := syntax.Foreach("i", syntax.Ident("items"), syntax.Block(syntax.ExprStmt(syntax.Call(syntax.Ident("f"), inner))))
	method := syntax.Method("M", nil, syntax.Block(
		loop,
		syntax.ExprStmt(syntax.Call(syntax.Ident("f"), outer)),
	))

	m := NewModel(method)

	assert.Same(t, m.DeclaredSymbol(loop), m.ReferencedSymbol(inner))
	assert.Nil(t, m.ReferencedSymbol(outer), "the loop variable is not visible after the loop")
}

func TestModelLambdaOwnsItsParameters(t *testing.T) {
	captured := syntax.Ident("x")
	lambdaParam := syntax.Ident("y")
	lambda := syntax.Lambda(syntax.Bin("+", captured, lambdaParam), "y")
	method := syntax.Method("M", nil, syntax.Block(
		syntax.Var("x", syntax.Lit("1")),
		syntax.Var("f", lambda),
	))

	m := NewModel(method)

	x := m.ReferencedSymbol(captured)
	require.NotNil(t, x)
	assert.Same(t, method, x.Owner)

	y := m.ReferencedSymbol(lambdaParam)
	require.NotNil(t, y)
	assert.Same(t, lambda, y.Owner)

	tracked := m.Tracked(method)
	names := make([]string, len(tracked))
	for i, s := range tracked {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"x", "f"}, names)
}

func TestTrackedExcludesRefParameters(t *testing.T) {
	refParam := syntax.Param("int", "r")
	refParam.Modifier = "ref"
	outParam := syntax.Param("int", "o")
	outParam.Modifier = "out"
	inParam := syntax.Param("int", "i")
	inParam.Modifier = "in"
	plain := syntax.Param("int", "v")
	method := syntax.Method("M", []*syntax.Node{refParam, outParam, inParam, plain}, syntax.Block())

	m := NewModel(method)

	var names []string
	for _, s := range m.Tracked(method) {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"o", "v"}, names)
	assert.Equal(t, RefOut, m.DeclaredSymbol(outParam).RefKind)
}

func TestPatternAndOutVariablesLeakIntoEnclosingBlock(t *testing.T) {
	pattern := syntax.DeclPattern("string", "s")
	outArg := syntax.OutVar("n")
	useS := syntax.Ident("s")
	useN := syntax.Ident("n")
	method := syntax.Method("M", []*syntax.Node{syntax.Param("object", "o")}, syntax.Block(
		syntax.If(syntax.Not(syntax.Paren(syntax.New(syntax.KindIsPattern, syntax.Ident("o"), pattern))), syntax.Return(nil), nil),
		syntax.ExprStmt(syntax.Call(syntax.Ident("Parse"), outArg)),
		syntax.ExprStmt(syntax.Call(syntax.Ident("Use"), useS, useN)),
	))

	m := NewModel(method)

	assert.Same(t, m.DeclaredSymbol(pattern), m.ReferencedSymbol(useS))
	assert.Same(t, m.DeclaredSymbol(outArg.Slot(0)), m.ReferencedSymbol(useN))
}

func TestMethodResolution(t *testing.T) {
	guarded := syntax.Param("object", "value")
	guarded.Attributes = []string{"ValidatedNotNull"}
	guard := syntax.Method("NotNull", []*syntax.Node{syntax.Param("string", "name"), guarded}, syntax.Block())

	call := syntax.Call(syntax.Member(syntax.Ident("Guard"), "NotNull"), syntax.Lit(`"x"`), syntax.Ident("x"))
	eq := syntax.Call(syntax.Member(syntax.Ident("a"), "Equals"), syntax.Ident("b"))
	nameof := syntax.Call(syntax.Ident("nameof"), syntax.Ident("x"))
	unit := syntax.New(syntax.KindCompilationUnit, guard, syntax.Method("M", nil, syntax.Block(
		syntax.ExprStmt(call), syntax.ExprStmt(eq), syntax.ExprStmt(nameof),
	)))

	m := NewModel(unit)

	info := m.Method(call)
	require.NotNil(t, info)
	assert.Equal(t, "NotNull", info.Name)
	assert.Equal(t, "Guard", info.Receiver)
	assert.Same(t, guard, info.Decl)
	require.Len(t, info.Params, 2)
	assert.True(t, info.Params[1].HasAttribute("ValidatedNotNullAttribute"))
	assert.False(t, info.Params[0].HasAttribute("ValidatedNotNull"))

	eqInfo := m.Method(eq)
	assert.Equal(t, "Equals", eqInfo.Name)
	assert.Equal(t, "a", eqInfo.Receiver)
	assert.Equal(t, 1, eqInfo.Arity)
	assert.Nil(t, eqInfo.Decl)

	nameofInfo := m.Method(nameof)
	assert.Equal(t, "nameof", nameofInfo.Name)
	assert.Empty(t, nameofInfo.Receiver)

	assert.Nil(t, m.Method(syntax.Ident("x")))
}

func TestMethodStatic(t *testing.T) {
	tests := []struct {
		name  string
		setup []*syntax.Node
		call  *syntax.Node
		want  bool
	}{
		{
			name: "qualified by declared type",
			call: syntax.Call(syntax.Member(syntax.Ident("Util"), "Equals"), syntax.Ident("o")),
			want: true,
		},
		{
			name: "qualified by predefined type",
			call: syntax.Call(syntax.Member(syntax.Predefined("int"), "Parse"), syntax.Ident("s")),
			want: true,
		},
		{
			name: "unqualified static declaration",
			call: syntax.Call(syntax.Ident("Equals"), syntax.Ident("o")),
			want: true,
		},
		{
			name: "qualified by parameter",
			call: syntax.Call(syntax.Member(syntax.Ident("o"), "Equals"), syntax.Ident("s")),
		},
		{
			name:  "local shadowing type name",
			setup: []*syntax.Node{syntax.Var("Util", syntax.NewObject("object"))},
			call:  syntax.Call(syntax.Member(syntax.Ident("Util"), "Equals"), syntax.Ident("o")),
		},
		{
			name: "unknown receiver",
			call: syntax.Call(syntax.Member(syntax.Ident("Other"), "Equals"), syntax.Ident("o")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			equals := syntax.Method("Equals", []*syntax.Node{syntax.Param("object", "value")}, syntax.Block())
			equals.Modifier = "static"
			util := syntax.New(syntax.KindType, equals)
			util.Name = "Util"

			body := append(tt.setup, syntax.ExprStmt(tt.call))
			decl := syntax.Method("M", []*syntax.Node{syntax.Param("object", "o"), syntax.Param("string", "s")},
				syntax.Block(body...))
			m := NewModel(syntax.New(syntax.KindCompilationUnit, util, decl))

			info := m.Method(tt.call)
			require.NotNil(t, info)
			assert.Equal(t, tt.want, info.Static)
		})
	}
}

func TestTypeOfAndIsValueType(t *testing.T) {
	structDecl := &syntax.Node{Kind: syntax.KindType, Name: "Point", Modifier: "struct"}
	unit := syntax.New(syntax.KindCompilationUnit, structDecl)
	m := NewModel(unit)

	tests := []struct {
		name  string
		node  *syntax.Node
		want  string
		value bool
	}{
		{"int literal", syntax.Lit("42"), "int", true},
		{"double literal", syntax.Lit("1.5"), "double", true},
		{"string literal", syntax.Lit(`"s"`), "string", false},
		{"char literal", syntax.Lit("'c'"), "char", true},
		{"bool", syntax.True(), "bool", true},
		{"comparison", syntax.Bin("==", syntax.Ident("a"), syntax.Null()), "bool", true},
		{"creation", syntax.NewObject("Point"), "Point", true},
		{"class creation", syntax.NewObject("List<int>"), "List<int>", false},
		{"unknown", syntax.Ident("field"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.TypeOf(tt.node)
			assert.Equal(t, tt.want, got.Name)
			assert.Equal(t, tt.value, m.IsValueType(got))
		})
	}

	assert.False(t, m.IsValueType(Type{Name: "int?"}))
	assert.True(t, m.IsValueType(Type{Name: "System.Int32"}))
}
