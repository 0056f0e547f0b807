package analyzer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/csflow/pkg/syntax/csharp"
)

const loops = `
-- Counter.cs --
public class Counter
{
    public int Sum(int n)
    {
        int total = 0;
        for (int i = 0; i < n; i++)
        {
            total += i;
        }
        return total;
    }

    public void Touch() { }
}
`

func inspect(t *testing.T, method string) *Detail {
	t.Helper()
	root, _ := extract(t, loops)
	s := New()
	t.Cleanup(s.Close)
	d, err := s.Inspect(context.Background(), filepath.Join(root, "Counter.cs"), method)
	require.NoError(t, err)
	return d
}

func TestInspect(t *testing.T) {
	d := inspect(t, "")
	assert.Equal(t, "Counter.Sum", d.Name, "the first method is selected")
	assert.NotNil(t, d.Graph)
	assert.NotEmpty(t, d.Scope)

	m := d.Method()
	assert.Equal(t, d.Name, m.Name)
	assert.Same(t, d.Graph, m.Graph)
}

func TestInspectMissingMethod(t *testing.T) {
	root, _ := extract(t, loops)
	s := New()
	defer s.Close()

	_, err := s.Inspect(context.Background(), filepath.Join(root, "Counter.cs"), "Counter.Nope")
	assert.ErrorIs(t, err, ErrMethodNotFound)

	f, err := csharp.ParseString("class Empty { }\n")
	require.NoError(t, err)
	_, err = InspectFile(f, "")
	assert.ErrorIs(t, err, ErrMethodNotFound)
}

func TestCFGView(t *testing.T) {
	d := inspect(t, "Counter.Sum")
	v := CFGView(d)

	assert.Equal(t, "Counter.Sum", v.Method)
	assert.Len(t, v.Blocks, len(d.Graph.Blocks))
	assert.Equal(t, d.Graph.Edges(), v.Edges)
	assert.Equal(t, 2, v.Cyclomatic)
	require.Len(t, v.Loops, 1)

	var branches int
	for _, b := range v.Blocks {
		if b.Kind == "BinaryBranch" {
			branches++
			assert.Equal(t, "i < n", b.Branch)
			assert.Len(t, b.Successors, 2)
		}
		if b.ID == v.Exit {
			assert.Empty(t, b.Successors)
			assert.Empty(t, b.Branch)
		}
	}
	assert.Equal(t, 1, branches)

	straight := CFGView(inspect(t, "Counter.Touch"))
	assert.Empty(t, straight.Loops)
	assert.Equal(t, 1, straight.Cyclomatic)
}

func TestLivenessView(t *testing.T) {
	d := inspect(t, "Counter.Sum")
	v := LivenessView(d)

	require.Len(t, v.Blocks, len(d.Graph.Blocks))
	assert.Positive(t, v.Passes)
	assert.Empty(t, v.Captured)
	assert.NotNil(t, v.Captured)

	entry := v.Blocks[d.Graph.Entry.ID]
	assert.Contains(t, entry.LiveIn, "n")
	assert.NotContains(t, entry.LiveIn, "total", "total is assigned before it is read")
	for _, b := range v.Blocks {
		assert.IsIncreasing(t, append([]string{""}, b.LiveIn...), "names are sorted")
	}
}

func TestExplorationView(t *testing.T) {
	s := New()
	defer s.Close()
	d := inspect(t, "Counter.Sum")

	res, err := s.Explore(d, 0)
	require.NoError(t, err)
	v := ExplorationView(d, res)
	assert.False(t, v.Exceeded)
	assert.Positive(t, v.Steps)
	for _, b := range v.Blocks {
		if b.Kind == "BinaryBranch" {
			assert.Equal(t, "both", b.Outcome)
		}
	}

	res, err = s.Explore(d, 1)
	require.NoError(t, err)
	v = ExplorationView(d, res)
	assert.True(t, v.Exceeded)
	assert.Equal(t, 1, v.Steps)
}
