package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/panbanda/csflow/internal/output"
	"github.com/panbanda/csflow/pkg/models"
)

const project = `
-- Orders.cs --
public class Orders
{
    public int Total(bool express)
    {
        string label = null;
        if (express)
        {
            label = "fast";
        }
        return label.Length;
    }
}
`

func extract(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range txtar.Parse([]byte(project)).Files {
		require.NoError(t, os.WriteFile(filepath.Join(root, f.Name), f.Data, 0o644))
	}
	return root
}

func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	_, err := NewServer("test").Connect(ctx, serverTransport)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func callText(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text, res.IsError
}

func TestServerCreation(t *testing.T) {
	s := NewServer("")
	require.NotNil(t, s.server)
	assert.Equal(t, "dev", s.version)
}

func TestListTools(t *testing.T) {
	cs := connect(t)
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
	assert.ElementsMatch(t, []string{"analyze_flow", "build_cfg", "liveness"}, names)
}

func TestAnalyzeFlowTool(t *testing.T) {
	root := extract(t)
	cs := connect(t)

	text, isErr := callText(t, cs, "analyze_flow", map[string]any{
		"paths":  []string{filepath.Join(root, "Orders.cs")},
		"format": "json",
	})
	require.False(t, isErr, text)

	var a models.FlowAnalysis
	require.NoError(t, json.Unmarshal([]byte(text), &a))
	require.Len(t, a.Findings(), 1)
	assert.Equal(t, models.RuleNullDereference, a.Findings()[0].Rule)
	assert.NoError(t, output.ValidateJSON([]byte(text)))

	text, isErr = callText(t, cs, "analyze_flow", map[string]any{
		"paths": []string{filepath.Join(root, "Orders.cs")},
	})
	require.False(t, isErr, text)
	assert.Contains(t, text, "null-dereference", "toon is the default")
}

func TestAnalyzeFlowToolErrors(t *testing.T) {
	cs := connect(t)

	text, isErr := callText(t, cs, "analyze_flow", map[string]any{"paths": []string{t.TempDir()}})
	assert.True(t, isErr)
	assert.Contains(t, text, "no C# source files found")

	text, isErr = callText(t, cs, "analyze_flow", map[string]any{"paths": []string{filepath.Join(t.TempDir(), "missing")}})
	assert.True(t, isErr)
	assert.Contains(t, text, "Error: ")
}

func TestBuildCFGTool(t *testing.T) {
	root := extract(t)
	cs := connect(t)

	text, isErr := callText(t, cs, "build_cfg", map[string]any{
		"file":   filepath.Join(root, "Orders.cs"),
		"method": "Orders.Total",
		"format": "json",
	})
	require.False(t, isErr, text)

	var v models.CFGView
	require.NoError(t, json.Unmarshal([]byte(text), &v))
	assert.Equal(t, "Orders.Total", v.Method)
	assert.Equal(t, 2, v.Cyclomatic)
	assert.Equal(t, v.Blocks[len(v.Blocks)-1].ID, v.Exit)

	text, isErr = callText(t, cs, "build_cfg", map[string]any{
		"file":   filepath.Join(root, "Orders.cs"),
		"method": "Orders.Missing",
	})
	assert.True(t, isErr)
	assert.Contains(t, text, "method not found")
}

func TestLivenessTool(t *testing.T) {
	root := extract(t)
	cs := connect(t)

	text, isErr := callText(t, cs, "liveness", map[string]any{
		"file":   filepath.Join(root, "Orders.cs"),
		"format": "json",
	})
	require.False(t, isErr, text)

	var v models.LivenessView
	require.NoError(t, json.Unmarshal([]byte(text), &v))
	assert.Equal(t, "Orders.Total", v.Method)
	require.NotEmpty(t, v.Blocks)
	assert.Contains(t, v.Blocks[0].LiveIn, "express")
}

func TestGetFormat(t *testing.T) {
	tests := []struct {
		in   string
		want output.Format
	}{
		{"", output.FormatTOON},
		{"toon", output.FormatTOON},
		{"json", output.FormatJSON},
		{"md", output.FormatMarkdown},
		{"markdown", output.FormatMarkdown},
		{"text", output.FormatTOON},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, getFormat(tt.in))
		})
	}
}

func TestFormatOutput(t *testing.T) {
	data := map[string]int{"blocks": 3}

	md, err := formatOutput(data, output.FormatMarkdown)
	require.NoError(t, err)
	assert.Equal(t, "```\nblocks: 3\n```", md)

	js, err := formatOutput(data, output.FormatJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `{"blocks": 3}`, js)
}

func TestGetPaths(t *testing.T) {
	assert.Equal(t, []string{"."}, getPaths(AnalyzeInput{}))
	assert.Equal(t, []string{"a", "b"}, getPaths(AnalyzeInput{Paths: []string{"a", "b"}}))
}

func TestPrompts(t *testing.T) {
	defs, err := loadPrompts()
	require.NoError(t, err)
	require.NotEmpty(t, defs)
	for _, def := range defs {
		assert.NotEmpty(t, def.Description, def.Name)
		assert.NotEmpty(t, def.Body, def.Name)
		assert.NotContains(t, def.Body, "---\n", "frontmatter is stripped from %s", def.Name)
	}

	cs := connect(t)
	list, err := cs.ListPrompts(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, list.Prompts, len(defs))

	res, err := cs.GetPrompt(context.Background(), &mcp.GetPromptParams{
		Name:      "explain-method",
		Arguments: map[string]string{"file": "src/Orders.cs"},
	})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text := res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "`src/Orders.cs`")
	assert.Contains(t, text, "the first method in the file")
	assert.NotContains(t, text, "{{")

	_, err = cs.GetPrompt(context.Background(), &mcp.GetPromptParams{Name: "explain-method"})
	assert.Error(t, err, "file is required")
}

func TestSubstituteArg(t *testing.T) {
	tests := []struct {
		name string
		text string
		args map[string]string
		want string
	}{
		{"provided", "in {{paths}}", map[string]string{"paths": "src"}, "in src"},
		{"missing", "in {{paths}}", nil, "in ."},
		{"empty", "in {{paths}}", map[string]string{"paths": ""}, "in ."},
		{"no placeholder", "nothing here", map[string]string{"paths": "src"}, "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, substituteArg(tt.text, "paths", tt.args, "."))
		})
	}
}

func TestParseFrontmatter(t *testing.T) {
	fm, body, err := parseFrontmatter([]byte("---\ndescription: d\narguments:\n  - name: x\n    required: true\n---\n\nbody\n"))
	require.NoError(t, err)
	assert.Equal(t, "d", fm.Description)
	require.Len(t, fm.Arguments, 1)
	assert.True(t, fm.Arguments[0].Required)
	assert.Equal(t, "body\n", body)

	_, body, err = parseFrontmatter([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, "plain", body)

	_, _, err = parseFrontmatter([]byte("---\n: [\n---\nbody"))
	assert.Error(t, err)
}

func TestGenerateManifest(t *testing.T) {
	data, err := GenerateManifest("1.2.3")
	require.NoError(t, err)

	var m Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "1.2.3", m.Version)
	assert.Equal(t, "io.github.panbanda/csflow", m.Name)
	require.Len(t, m.Packages, 1)
	assert.Equal(t, "ghcr.io/panbanda/csflow:1.2.3", m.Packages[0].Identifier)
	assert.Equal(t, []Argument{{Type: "positional", Value: "mcp"}}, m.Packages[0].PackageArguments)
	assert.Equal(t, "CSFLOW_CONFIG", m.Packages[0].EnvironmentVariables[0].Name)

	data, err = GenerateManifest("")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": "0.0.0"`)

	data, err = GenerateManifest("dev")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"identifier": "ghcr.io/panbanda/csflow:0.0.0"`)
}
