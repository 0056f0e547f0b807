package mcpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/csflow/internal/analyzer"
	"github.com/panbanda/csflow/internal/fileproc"
	"github.com/panbanda/csflow/internal/output"
	"github.com/panbanda/csflow/internal/scanner"
	"github.com/panbanda/csflow/pkg/models"
)

// AnalyzeInput is the input of analyze_flow.
type AnalyzeInput struct {
	Paths  []string `json:"paths,omitempty" jsonschema:"Files or directories to analyze. Defaults to the current directory."`
	Format string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// MethodInput selects one method of one file.
type MethodInput struct {
	File   string `json:"file" jsonschema:"Path to a C# source file."`
	Method string `json:"method,omitempty" jsonschema:"Method name such as Orders.Total. Defaults to the first method in the file."`
	Format string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// flowResult is an analysis with the files that could not be analyzed.
type flowResult struct {
	Files   []models.FileFlow  `json:"files" toon:"files"`
	Summary models.FlowSummary `json:"summary" toon:"summary"`
	Errors  []string           `json:"errors" toon:"errors"`
}

func getPaths(input AnalyzeInput) []string {
	if len(input.Paths) == 0 {
		return []string{"."}
	}
	return input.Paths
}

func getFormat(format string) output.Format {
	switch format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func formatOutput(data any, format output.Format) (string, error) {
	switch format {
	case output.FormatJSON:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	case output.FormatMarkdown:
		out, err := output.MarshalTOON(data)
		if err != nil {
			return "", err
		}
		return "```\n" + out + "\n```", nil
	default:
		return output.MarshalTOON(data)
	}
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + msg}},
		IsError: true,
	}, nil, nil
}

func (s *Server) session() *analyzer.Session {
	return analyzer.New(
		analyzer.WithConfig(s.config),
		analyzer.WithLogger(s.logger),
		analyzer.WithVersion(s.version),
	)
}

func (s *Server) handleAnalyzeFlow(ctx context.Context, _ *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, any, error) {
	files, err := scanner.NewScanner(s.config).Scan(getPaths(input))
	if err != nil {
		return toolError(err.Error())
	}
	if len(files) == 0 {
		return toolError("no C# source files found")
	}

	sess := s.session()
	defer sess.Close()

	analysis, err := sess.Analyze(ctx, files)
	if err != nil {
		// Files that failed are listed next to the ones that succeeded.
		var perrs *fileproc.ProcessingErrors
		if analysis == nil || !errors.As(err, &perrs) {
			return toolError(err.Error())
		}
		return toolResult(flowResult{
			Files:   analysis.Files,
			Summary: analysis.Summary,
			Errors:  perrs.Messages(),
		}, getFormat(input.Format))
	}
	return toolResult(analysis, getFormat(input.Format))
}

func (s *Server) handleBuildCFG(ctx context.Context, _ *mcp.CallToolRequest, input MethodInput) (*mcp.CallToolResult, any, error) {
	if input.File == "" {
		return toolError("file is required")
	}
	sess := s.session()
	defer sess.Close()

	d, err := sess.Inspect(ctx, input.File, input.Method)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(analyzer.CFGView(d), getFormat(input.Format))
}

func (s *Server) handleLiveness(ctx context.Context, _ *mcp.CallToolRequest, input MethodInput) (*mcp.CallToolResult, any, error) {
	if input.File == "" {
		return toolError("file is required")
	}
	sess := s.session()
	defer sess.Close()

	d, err := sess.Inspect(ctx, input.File, input.Method)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(analyzer.LivenessView(d), getFormat(input.Format))
}
