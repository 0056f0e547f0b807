// Package analyzer runs the flow pipeline over C# files: parse, build a
// control-flow graph per method, compute liveness, explore symbolically and
// collect findings.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/panbanda/csflow/internal/cache"
	"github.com/panbanda/csflow/internal/fileproc"
	"github.com/panbanda/csflow/internal/findings"
	"github.com/panbanda/csflow/internal/scanner"
	"github.com/panbanda/csflow/pkg/cfg"
	"github.com/panbanda/csflow/pkg/config"
	"github.com/panbanda/csflow/pkg/liveness"
	"github.com/panbanda/csflow/pkg/models"
	"github.com/panbanda/csflow/pkg/semantic"
	"github.com/panbanda/csflow/pkg/symex"
	"github.com/panbanda/csflow/pkg/syntax/csharp"
)

// FileAnalyzer is implemented by analyzers that process a set of files.
type FileAnalyzer[T any] interface {
	// Analyze processes files and returns the combined result. Progress is
	// reported through a Tracker carried by ctx.
	Analyze(ctx context.Context, files []string) (T, error)

	// Close releases any resources held by the analyzer.
	Close()
}

var _ FileAnalyzer[*models.FlowAnalysis] = (*Session)(nil)

// Version is the default tool version mixed into result cache keys.
var Version = "dev"

// Session analyzes files under one configuration. It owns the generated
// file cache, so a Session must be closed when the run is over. A Session is
// safe for concurrent use as long as every goroutine brings its own parser.
type Session struct {
	config    *config.Config
	rules     []findings.Rule
	results   *cache.Cache
	generated *cache.GeneratedCache
	logger    *slog.Logger
	version   string
}

// Option is a functional option for configuring a Session.
type Option func(*Session)

// WithConfig sets the configuration; the default is config.DefaultConfig().
func WithConfig(cfg *config.Config) Option {
	return func(s *Session) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

// WithResultCache enables the on-disk result cache.
func WithResultCache(c *cache.Cache) Option {
	return func(s *Session) { s.results = c }
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithVersion sets the tool version used in result cache keys.
func WithVersion(v string) Option {
	return func(s *Session) { s.version = v }
}

// New creates a Session.
func New(opts ...Option) *Session {
	s := &Session{
		config:    config.DefaultConfig(),
		generated: cache.NewGeneratedCache(),
		logger:    slog.Default(),
		version:   Version,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rules = findings.Select(s.config.Rules())
	return s
}

// Close tears down the generated file cache.
func (s *Session) Close() {
	s.generated.Close()
}

// Config returns the session configuration.
func (s *Session) Config() *config.Config { return s.config }

// Analyze analyzes files in parallel. Files that fail are left out of the
// result and reported together in the returned *fileproc.ProcessingErrors;
// the analysis is returned even then.
func (s *Session) Analyze(ctx context.Context, files []string) (*models.FlowAnalysis, error) {
	files, skipped := scanner.FilterBySize(files, s.config.Analysis.MaxFileSize)
	if skipped > 0 {
		s.logger.Debug("skipped large files", "count", skipped, "max_size", s.config.Analysis.MaxFileSize)
	}

	var onProgress fileproc.ProgressFunc
	if t := TrackerFromContext(ctx); t != nil {
		t.Add(len(files))
		onProgress = t.Tick
	}

	results, errs := fileproc.MapFiles(ctx, files, s.config.Analysis.Workers,
		func(psr *csharp.Parser, path string) (models.FileFlow, error) {
			ff, err := s.AnalyzeFile(ctx, psr, path)
			if err != nil {
				return models.FileFlow{}, err
			}
			return *ff, nil
		}, onProgress)

	analysis := models.NewFlowAnalysis(results)
	if errs != nil {
		return analysis, errs
	}
	return analysis, nil
}

// AnalyzeFile reads and analyzes one file.
func (s *Session) AnalyzeFile(ctx context.Context, psr *csharp.Parser, path string) (*models.FileFlow, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return s.AnalyzeSource(ctx, psr, path, source)
}

// AnalyzeSource analyzes source as the contents of path.
func (s *Session) AnalyzeSource(ctx context.Context, psr *csharp.Parser, path string, source []byte) (*models.FileFlow, error) {
	if !csharp.IsSource(path) {
		return nil, fmt.Errorf("%w: %s", csharp.ErrUnsupportedLanguage, path)
	}

	var key string
	if s.results != nil && s.results.Enabled() {
		key = cache.Key(path, source, s.version, s.settings())
		if ff, ok := s.results.Get(key); ok {
			return ff, nil
		}
	}

	file, err := psr.Parse(ctx, source, path)
	if err != nil {
		return nil, err
	}
	ff, err := s.analyzeParsed(file)
	if err != nil {
		return nil, err
	}

	if key != "" {
		if err := s.results.Set(key, ff); err != nil {
			s.logger.Warn("failed to cache result", "path", path, "error", err)
		}
	}
	return ff, nil
}

// settings is the cache key component for everything in the config that
// can change a file result.
func (s *Session) settings() string {
	return fmt.Sprintf("%s patterns=%q", s.config.Fingerprint(), s.config.Generated.Patterns)
}

// IsGenerated reports whether file is generated code, memoized per path for
// the session.
func (s *Session) IsGenerated(file *csharp.File) bool {
	return s.generated.IsGenerated(file.Path, func() bool {
		return file.IsGenerated(s.config.Generated.Patterns...)
	})
}

func (s *Session) analyzeParsed(file *csharp.File) (*models.FileFlow, error) {
	ff := &models.FileFlow{
		Path:      file.Path,
		HasErrors: file.HasErrors,
	}
	if file.HasErrors {
		s.logger.Warn("file has syntax errors, analyzing the recovered tree", "path", file.Path)
	}

	ff.Generated = s.IsGenerated(file)
	if ff.Generated && !s.config.Generated.AnalyzeGenerated {
		s.logger.Debug("Skipping auto generated file", "path", file.Path)
		ff.Skipped = true
		return ff, nil
	}

	model := semantic.NewModel(file.Root)
	for _, m := range file.Methods() {
		summary, found, err := s.analyzeMethod(file.Path, model, m)
		if err != nil {
			return nil, err
		}
		ff.Methods = append(ff.Methods, summary)
		ff.Findings = append(ff.Findings, found...)
	}
	models.SortFindings(ff.Findings)
	return ff, nil
}

func (s *Session) analyzeMethod(path string, model *semantic.Model, m csharp.Method) (models.MethodSummary, []models.Finding, error) {
	summary := models.MethodSummary{Name: m.Name, Line: uint32(m.Node.Span.StartLine)}

	d, err := newDetail(path, model, m)
	if err != nil {
		return summary, nil, err
	}
	summary.Blocks = len(d.Graph.Blocks)
	summary.Cyclomatic = d.Graph.Cyclomatic()

	found, res, err := findings.Run(d.Method(), s.rules, s.exploreOptions(d)...)
	if err != nil {
		return summary, nil, fmt.Errorf("%s: %s: %w", path, m.Name, err)
	}
	summary.Steps = res.Steps
	summary.States = res.States
	summary.Exceeded = res.Exceeded
	return summary, found, nil
}

func (s *Session) exploreOptions(d *Detail) []symex.Option {
	a := s.config.Analysis
	opts := []symex.Option{
		symex.WithMaxSteps(a.MaxSteps),
		symex.WithMaxStates(a.MaxStates),
		symex.WithMaxLoopVisits(a.MaxLoopVisits),
		symex.WithLogger(s.logger),
	}
	if a.PruneDeadBindings {
		opts = append(opts, symex.WithLiveness(d.Live))
	}
	return opts
}

// ErrMethodNotFound is returned when a named method is not in the file.
var ErrMethodNotFound = errors.New("method not found")

// Detail is the graph, bindings and liveness of one method.
type Detail struct {
	File   string
	Name   string
	Graph  *cfg.Graph
	Model  *semantic.Model
	Scope  []*semantic.Symbol
	Live   *liveness.Result
	method csharp.Method
}

func newDetail(path string, model *semantic.Model, m csharp.Method) (*Detail, error) {
	g, err := cfg.Build(m.Node)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", path, m.Name, err)
	}
	scope := model.Tracked(m.Node)
	return &Detail{
		File:   path,
		Name:   m.Name,
		Graph:  g,
		Model:  model,
		Scope:  scope,
		Live:   liveness.Analyze(g, model, scope),
		method: m,
	}, nil
}

// Method returns d in the form the rules consume.
func (d *Detail) Method() *findings.Method {
	return &findings.Method{
		File:  d.File,
		Name:  d.Name,
		Node:  d.method.Node,
		Graph: d.Graph,
		Model: d.Model,
		Scope: d.Scope,
		Live:  d.Live,
	}
}

// Inspect parses path and prepares the named method for the graph views.
// An empty name selects the first method in the file.
func (s *Session) Inspect(ctx context.Context, path, method string) (*Detail, error) {
	psr := csharp.New()
	defer psr.Close()

	file, err := psr.ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return InspectFile(file, method)
}

// InspectFile prepares the named method of a parsed file.
func InspectFile(file *csharp.File, method string) (*Detail, error) {
	var m csharp.Method
	if method == "" {
		methods := file.Methods()
		if len(methods) == 0 {
			return nil, fmt.Errorf("%w: %s has no method bodies", ErrMethodNotFound, file.Path)
		}
		m = methods[0]
	} else {
		var ok bool
		if m, ok = file.Method(method); !ok {
			return nil, fmt.Errorf("%w: %s in %s", ErrMethodNotFound, method, file.Path)
		}
	}
	return newDetail(file.Path, semantic.NewModel(file.Root), m)
}

// Explore runs the symbolic execution of d with the session budgets. A
// positive maxSteps overrides the configured step budget.
func (s *Session) Explore(d *Detail, maxSteps int) (*symex.Result, error) {
	opts := append(s.exploreOptions(d), symex.WithScope(d.Scope), symex.WithName(d.Name))
	if maxSteps > 0 {
		opts = append(opts, symex.WithMaxSteps(maxSteps))
	}
	return symex.Explore(d.Graph, d.Model, opts...)
}
