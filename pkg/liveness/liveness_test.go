package liveness

import (
	"sync"
	"testing"

	"github.com/panbanda/csflow/pkg/cfg"
	"github.com/panbanda/csflow/pkg/semantic"
	"github.com/panbanda/csflow/pkg/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	graph  *cfg.Graph
	model  *semantic.Model
	result *Result
}

func analyze(t *testing.T, params []*syntax.Node, stmts ...*syntax.Node) fixture {
	t.Helper()
	method := syntax.Method("M", params, syntax.Block(stmts...))
	g, err := cfg.Build(method)
	require.NoError(t, err)
	m := semantic.NewModel(method)
	return fixture{graph: g, model: m, result: Analyze(g, m, m.Tracked(method))}
}

func use(args ...*syntax.Node) *syntax.Node {
	return syntax.ExprStmt(syntax.Call(syntax.Ident("Use"), args...))
}

func names(symbols []*semantic.Symbol) []string {
	var out []string
	for _, s := range symbols {
		out = append(out, s.Name)
	}
	return out
}

func blockOf(t *testing.T, g *cfg.Graph, kind cfg.Kind) *cfg.Block {
	t.Helper()
	for _, b := range g.Blocks {
		if b.Kind == kind {
			return b
		}
	}
	t.Fatalf("no %s block", kind)
	return nil
}

func TestWriteBeforeReadIsNotGen(t *testing.T) {
	f := analyze(t, nil,
		syntax.Var("x", syntax.Lit("10")),
		syntax.Var("y", syntax.Ident("x")),
		use(syntax.Ident("y")),
	)

	entry := f.graph.Entry
	assert.Empty(t, f.result.Gen(entry))
	assert.Equal(t, []string{"x", "y"}, names(f.result.Kill(entry)))
	assert.Empty(t, f.result.LiveIn(entry))
}

func TestReadBeforeWriteIsGen(t *testing.T) {
	p := syntax.Param("int", "p")
	f := analyze(t, []*syntax.Node{p},
		use(syntax.Ident("p")),
		syntax.ExprStmt(syntax.Assign(syntax.Ident("p"), syntax.Lit("10"))),
	)

	entry := f.graph.Entry
	assert.Equal(t, []string{"p"}, names(f.result.Gen(entry)))
	assert.Equal(t, []string{"p"}, names(f.result.Kill(entry)))
	assert.True(t, f.result.IsLiveIn(entry, f.model.DeclaredSymbol(p)))
}

func TestLoopCarriesLiveness(t *testing.T) {
	f := analyze(t, nil,
		syntax.Var("i", syntax.Lit("0")),
		syntax.While(syntax.Bin("<", syntax.Ident("i"), syntax.Lit("10")),
			syntax.Block(syntax.ExprStmt(syntax.PostInc(syntax.Ident("i"))))),
	)

	entry := f.graph.Entry
	branch := blockOf(t, f.graph, cfg.KindBinaryBranch)
	body := branch.TrueSuccessor()

	assert.Empty(t, f.result.LiveIn(entry))
	assert.Equal(t, []string{"i"}, names(f.result.LiveOut(entry)))
	assert.Equal(t, []string{"i"}, names(f.result.LiveIn(branch)))
	assert.Equal(t, []string{"i"}, names(f.result.LiveIn(body)))
	assert.Equal(t, []string{"i"}, names(f.result.LiveOut(body)))
	assert.Empty(t, f.result.LiveOut(branch.FalseSuccessor()))
	assert.GreaterOrEqual(t, f.result.Passes(), 2)
}

func TestClosureCapturesEverywhere(t *testing.T) {
	f := analyze(t, nil,
		syntax.Var("x", syntax.Lit("1")),
		syntax.If(syntax.Ident("flag"), use(), nil),
		syntax.Var("f", syntax.Lambda(syntax.Ident("x"))),
	)

	assert.Equal(t, []string{"x"}, names(f.result.Captured()))
	for _, b := range f.graph.Blocks {
		assert.Contains(t, names(f.result.LiveIn(b)), "x", "live-in of %s", b)
		assert.Contains(t, names(f.result.LiveOut(b)), "x", "live-out of %s", b)
	}
}

func TestOutArgumentKills(t *testing.T) {
	f := analyze(t, nil,
		syntax.VarTyped("int", "v", nil),
		syntax.ExprStmt(syntax.Call(syntax.Ident("Parse"), syntax.RefArg("out", syntax.Ident("v")))),
		use(syntax.Ident("v")),
	)

	entry := f.graph.Entry
	assert.Empty(t, f.result.Gen(entry))
	assert.Equal(t, []string{"v"}, names(f.result.Kill(entry)))
}

func TestOutVariableDeclarationKills(t *testing.T) {
	f := analyze(t, nil,
		syntax.ExprStmt(syntax.Call(syntax.Ident("Parse"), syntax.OutVar("n"))),
		use(syntax.Ident("n")),
	)

	assert.Empty(t, f.result.Gen(f.graph.Entry))
	assert.Equal(t, []string{"n"}, names(f.result.Kill(f.graph.Entry)))
}

func TestForeachBranchKillsLoopVariable(t *testing.T) {
	f := analyze(t, nil,
		syntax.Foreach("item", syntax.Ident("items"), syntax.Block(use(syntax.Ident("item")))),
	)

	branch := blockOf(t, f.graph, cfg.KindBinaryBranch)
	body := branch.TrueSuccessor()

	assert.Equal(t, []string{"item"}, names(f.result.Kill(branch)))
	assert.Empty(t, f.result.LiveIn(branch))
	assert.Equal(t, []string{"item"}, names(f.result.LiveIn(body)))
}

func TestUsingEndKeepsResourceLive(t *testing.T) {
	f := analyze(t, nil,
		syntax.Using(syntax.Var("s", syntax.NewObject("R")), syntax.Block(use())),
	)

	using := blockOf(t, f.graph, cfg.KindUsing)
	end := blockOf(t, f.graph, cfg.KindUsingEnd)

	assert.Equal(t, []string{"s"}, names(f.result.Gen(end)))
	assert.Equal(t, []string{"s"}, names(f.result.Kill(using)))
	assert.Equal(t, []string{"s"}, names(f.result.LiveOut(using)))
	assert.Empty(t, f.result.LiveIn(using))
}

func TestUntrackedEntitiesAreIgnored(t *testing.T) {
	r := syntax.Param("int", "r")
	r.Modifier = "ref"
	f := analyze(t, []*syntax.Node{r},
		use(syntax.Ident("r"), syntax.Ident("field")),
	)

	assert.Empty(t, f.result.Gen(f.graph.Entry))
	assert.False(t, f.result.IsLiveIn(f.graph.Entry, f.model.DeclaredSymbol(r)))
}

func TestPatternDesignationKills(t *testing.T) {
	o := syntax.Param("object", "o")
	f := analyze(t, []*syntax.Node{o},
		syntax.ExprStmt(syntax.Assign(syntax.Ident("b"),
			syntax.New(syntax.KindIsPattern, syntax.Ident("o"), syntax.DeclPattern("string", "s")))),
		use(syntax.Ident("s")),
	)

	entry := f.graph.Entry
	assert.Equal(t, []string{"o"}, names(f.result.Gen(entry)))
	assert.Equal(t, []string{"s"}, names(f.result.Kill(entry)))
}

func TestWalkBackwardReportsLivenessAfterEachInstruction(t *testing.T) {
	f := analyze(t, nil,
		syntax.Var("x", syntax.Lit("1")),
		syntax.ExprStmt(syntax.Assign(syntax.Ident("x"), syntax.Lit("2"))),
		use(syntax.Ident("x")),
	)

	var x *semantic.Symbol
	for _, s := range f.model.Symbols() {
		if s.Name == "x" {
			x = s
		}
	}
	require.NotNil(t, x)

	liveAfter := make(map[syntax.Kind]bool)
	f.result.WalkBackward(f.graph.Entry, func(n *syntax.Node, live func(*semantic.Symbol) bool) {
		if n.Is(syntax.KindDeclarator, syntax.KindAssignment) {
			liveAfter[n.Kind] = live(x)
		}
	})
	assert.False(t, liveAfter[syntax.KindDeclarator], "the initial value is overwritten before use")
	assert.True(t, liveAfter[syntax.KindAssignment])
}

func TestConcurrentWalksAgree(t *testing.T) {
	f := analyze(t, nil,
		syntax.Var("x", syntax.Lit("1")),
		syntax.Var("y", syntax.Lit("2")),
		syntax.ExprStmt(syntax.Assign(syntax.Ident("x"), syntax.Lit("3"))),
		syntax.Var("g", syntax.Lambda(syntax.Ident("y"))),
		use(syntax.Ident("x")),
	)

	var x *semantic.Symbol
	for _, s := range f.model.Symbols() {
		if s.Name == "x" {
			x = s
		}
	}
	require.NotNil(t, x)

	walk := func() []bool {
		var out []bool
		f.result.WalkBackward(f.graph.Entry, func(_ *syntax.Node, live func(*semantic.Symbol) bool) {
			out = append(out, live(x))
		})
		return out
	}
	want := walk()
	require.NotEmpty(t, want)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				assert.Equal(t, want, walk())
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"y"}, names(f.result.Captured()))
}
