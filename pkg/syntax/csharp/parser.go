// Package csharp parses C# source with tree-sitter and lowers the concrete
// tree into the normalized syntax tree of package syntax.
package csharp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"

	"github.com/panbanda/csflow/pkg/syntax"
)

// ErrUnsupportedLanguage is returned for files that are not C# sources.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Parser wraps a tree-sitter parser configured for C#. A Parser is not safe
// for concurrent use; give each worker its own.
type Parser struct {
	parser *sitter.Parser
}

// File is one parsed and lowered source file.
type File struct {
	Path   string
	Source []byte
	Root   *syntax.Node
	// HasErrors is set when tree-sitter recovered from syntax errors.
	HasErrors bool
	// Header is the comment trivia before the first declaration.
	Header string
	// Attributes are the assembly, module and type attribute names.
	Attributes []string
}

// New creates a parser.
func New() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(csharp.GetLanguage())
	return &Parser{parser: p}
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// IsSource reports whether path names a C# source file.
func IsSource(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".cs")
}

// ParseFile reads and parses a source file.
func (p *Parser) ParseFile(ctx context.Context, path string) (*File, error) {
	if !IsSource(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, path)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.Parse(ctx, source, path)
}

// Parse parses source and lowers it.
func (p *Parser) Parse(ctx context.Context, source []byte, path string) (*File, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	l := &lowerer{src: source}
	f := &File{
		Path:      path,
		Source:    source,
		Root:      l.compilationUnit(root),
		HasErrors: root.HasError(),
		Header:    header(root, source),
	}
	f.Attributes = l.attributes
	return f, nil
}

// ParseString is a convenience for tests and tools that hold source text.
func ParseString(source string) (*File, error) {
	p := New()
	defer p.Close()
	return p.Parse(context.Background(), []byte(source), "")
}

// header returns the comments that precede the first non-comment node.
func header(root *sitter.Node, src []byte) string {
	var b strings.Builder
	for i := range int(root.ChildCount()) {
		c := root.Child(i)
		if c.Type() != "comment" {
			break
		}
		b.WriteString(c.Content(src))
		b.WriteByte('\n')
	}
	return b.String()
}

// Method is one analyzable body: a method, constructor, destructor,
// operator or accessor, or the top-level statements of the file.
type Method struct {
	// Name is qualified by the enclosing type names, for example
	// "Outer.Inner.Run" or "Widget.Size.get".
	Name string
	Node *syntax.Node
}

// Methods returns the analyzable bodies of the file in source order. Local
// functions, lambdas and anonymous methods are part of their enclosing body.
func (f *File) Methods() []Method {
	var out []Method
	var walk func(n *syntax.Node, prefix string)
	walk = func(n *syntax.Node, prefix string) {
		for _, c := range n.Children() {
			switch c.Kind {
			case syntax.KindType:
				walk(c, qualify(prefix, c.Name))
			case syntax.KindMethod:
				if c.Slot(1) != nil {
					out = append(out, Method{Name: qualify(prefix, c.Name), Node: c})
				}
			}
		}
	}
	walk(f.Root, "")
	return out
}

// Method returns the first body whose name or qualified name is name.
func (f *File) Method(name string) (Method, bool) {
	for _, m := range f.Methods() {
		if m.Name == name || m.Node.Name == name || strings.HasSuffix(m.Name, "."+name) {
			return m, true
		}
	}
	return Method{}, false
}

func qualify(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
