package csharp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/csflow/pkg/syntax"
)

const widget = `using System;

namespace Shop
{
    public class Widget
    {
        private string name;

        public Widget(string name)
        {
            this.name = name;
        }

        public int Size => name.Length;

        public bool Check(string value)
        {
            if (value == null)
            {
                return false;
            }
            foreach (var c in value)
            {
                Console.WriteLine(c);
            }
            return value?.Length > 0 && !string.IsNullOrEmpty(value);
        }

        public class Part
        {
            public void Run() { }
        }
    }
}
`

func find(root *syntax.Node, kind syntax.Kind) []*syntax.Node {
	var out []*syntax.Node
	syntax.Inspect(root, func(n *syntax.Node) bool {
		if n.Kind == kind {
			out = append(out, n)
		}
		return true
	})
	return out
}

func TestMethodsAreQualified(t *testing.T) {
	f, err := ParseString(widget)
	require.NoError(t, err)
	assert.False(t, f.HasErrors)

	var names []string
	for _, m := range f.Methods() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"Widget.Widget", "Widget.Size.get", "Widget.Check", "Widget.Part.Run"}, names)

	m, ok := f.Method("Check")
	require.True(t, ok)
	assert.Equal(t, "Widget.Check", m.Name)
	require.Len(t, m.Node.Slot(0).Children(), 1)
	param := m.Node.Slot(0).Slot(0)
	assert.Equal(t, "value", param.Name)
	assert.Equal(t, "string", param.TypeText)

	_, ok = f.Method("Missing")
	assert.False(t, ok)
}

func TestStaticModifier(t *testing.T) {
	f, err := ParseString(`class Util
{
    public static bool Equals(object value) => value == null;
    public bool Same(object value) => Equals(value);
}
`)
	require.NoError(t, err)

	equals, ok := f.Method("Equals")
	require.True(t, ok)
	assert.Equal(t, "static", equals.Node.Modifier)

	same, ok := f.Method("Same")
	require.True(t, ok)
	assert.Empty(t, same.Node.Modifier)
}

func TestLowersStatementsAndExpressions(t *testing.T) {
	f, err := ParseString(widget)
	require.NoError(t, err)
	m, ok := f.Method("Check")
	require.True(t, ok)

	body := m.Node.Slot(1)
	require.Equal(t, syntax.KindBlock, body.Kind)
	kinds := make([]syntax.Kind, 0, len(body.Slots))
	for _, s := range body.Slots {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []syntax.Kind{syntax.KindIf, syntax.KindForeach, syntax.KindReturn}, kinds)

	cond := syntax.StripParens(body.Slot(0).Slot(0))
	require.Equal(t, syntax.KindBinary, cond.Kind)
	assert.Equal(t, "==", cond.Operator)
	assert.Equal(t, syntax.KindIdentifier, cond.Slot(0).Kind)
	assert.Equal(t, syntax.KindNull, cond.Slot(1).Kind)

	loop := body.Slot(1)
	assert.Equal(t, "c", loop.Name)

	assert.NotEmpty(t, find(body, syntax.KindLogicalAnd))
	assert.NotEmpty(t, find(body, syntax.KindConditionalAccess))
	assert.NotEmpty(t, find(body, syntax.KindLogicalNot))
	assert.NotEmpty(t, find(body, syntax.KindPredefinedType))
	assert.Len(t, find(body, syntax.KindInvocation), 2)
}

func TestPatternsAndOutArguments(t *testing.T) {
	f, err := ParseString(`
class C
{
    void M(object o, string s)
    {
        if (o is not null && int.TryParse(s, out var n) && o is string text)
        {
            Use(n, text);
        }
    }
}`)
	require.NoError(t, err)
	m, ok := f.Method("M")
	require.True(t, ok)

	patterns := find(m.Node, syntax.KindIsPattern)
	require.Len(t, patterns, 2)
	assert.Equal(t, syntax.KindLogicalNot, patterns[0].Parent.Kind)
	assert.Equal(t, syntax.KindConstantPattern, patterns[0].Slot(1).Kind)
	assert.Equal(t, syntax.KindNull, patterns[0].Slot(1).Slot(0).Kind)

	decl := patterns[1].Slot(1)
	assert.Equal(t, syntax.KindDeclarationPattern, decl.Kind)
	assert.Equal(t, "text", decl.Name)

	outs := find(m.Node, syntax.KindDeclarationExpression)
	require.Len(t, outs, 1)
	assert.Equal(t, "n", outs[0].Name)
	assert.Equal(t, "out", outs[0].Parent.Modifier)
}

func TestUnknownExpressionsStayBalanced(t *testing.T) {
	f, err := ParseString(`
class C
{
    int M(int x) => x switch { 1 => 2, _ => 3 };
}`)
	require.NoError(t, err)
	m, ok := f.Method("M")
	require.True(t, ok)
	assert.Equal(t, syntax.KindOpaqueExpression, m.Node.Slot(1).Kind)
	assert.True(t, m.Node.Slot(1).Kind.IsExpression())
}

func TestTopLevelStatements(t *testing.T) {
	f, err := ParseString("var x = 1;\nSystem.Console.WriteLine(x);\n")
	require.NoError(t, err)

	m, ok := f.Method("<top-level>")
	require.True(t, ok)
	assert.Len(t, m.Node.Slot(1).Slots, 2)
}

func TestParseFileRejectsOtherLanguages(t *testing.T) {
	p := New()
	defer p.Close()

	_, err := p.ParseFile(context.Background(), "main.go")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	path := filepath.Join(t.TempDir(), "A.cs")
	require.NoError(t, os.WriteFile(path, []byte("class A { }"), 0o600))
	f, err := p.ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path)
	assert.Empty(t, f.Methods())
}

func TestIsSource(t *testing.T) {
	assert.True(t, IsSource("a/B.cs"))
	assert.True(t, IsSource("B.CS"))
	assert.False(t, IsSource("B.csx"))
	assert.False(t, IsSource("B.go"))
}
