// Package mcpserver exposes csflow analyses as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/csflow/pkg/config"
)

// Server wraps the MCP server and registers the csflow tools and prompts.
type Server struct {
	server  *mcp.Server
	config  *config.Config
	logger  *slog.Logger
	version string
}

// Option configures a Server.
type Option func(*Server)

// WithConfig sets the analysis settings used by every tool call.
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

// WithLogger sets the logger handed to analysis sessions.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new MCP server with all csflow tools registered.
func NewServer(version string, opts ...Option) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{
		config:  config.DefaultConfig(),
		logger:  slog.Default(),
		version: version,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = mcp.NewServer(&mcp.Implementation{Name: "csflow", Version: version}, nil)
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run serves over stdio until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_flow",
		Description: describeAnalyzeFlow(),
	}, s.handleAnalyzeFlow)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "build_cfg",
		Description: describeBuildCFG(),
	}, s.handleBuildCFG)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "liveness",
		Description: describeLiveness(),
	}, s.handleLiveness)
}
