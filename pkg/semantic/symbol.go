// Package semantic answers name and type questions about a syntax tree.
//
// The model is syntactic: it binds identifiers to declarations through
// lexical scopes and approximates types from declarations and literals.
// It never resolves overloads and never type-checks.
package semantic

import (
	"strings"

	"github.com/panbanda/csflow/pkg/syntax"
)

// SymbolKind classifies declared entities.
type SymbolKind int

const (
	SymbolLocal SymbolKind = iota
	SymbolParameter
	SymbolLocalFunction
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolLocal:
		return "local"
	case SymbolParameter:
		return "parameter"
	case SymbolLocalFunction:
		return "local function"
	default:
		return "unknown"
	}
}

// RefKind is the by-reference passing mode of a parameter.
type RefKind int

const (
	RefNone RefKind = iota
	RefRef
	RefOut
	RefIn
)

// ParseRefKind maps a parameter modifier to its RefKind.
func ParseRefKind(modifier string) RefKind {
	switch modifier {
	case "ref":
		return RefRef
	case "out":
		return RefOut
	case "in":
		return RefIn
	default:
		return RefNone
	}
}

// Symbol is a declared entity. Two references denote the same entity only
// when they resolve to the same *Symbol.
type Symbol struct {
	ID         int
	Name       string
	Kind       SymbolKind
	RefKind    RefKind
	TypeText   string
	Attributes []string
	Decl       *syntax.Node
	// Owner is the innermost method, local function, lambda or anonymous
	// method that declares the symbol.
	Owner *syntax.Node
}

func (s *Symbol) String() string {
	if s == nil {
		return "<nil>"
	}
	return s.Name
}

// HasAttribute reports whether the symbol carries the named attribute, with
// or without the Attribute suffix and namespace qualification.
func (s *Symbol) HasAttribute(name string) bool {
	want := strings.TrimSuffix(name, "Attribute")
	for _, a := range s.Attributes {
		if i := strings.LastIndexByte(a, '.'); i >= 0 {
			a = a[i+1:]
		}
		if strings.TrimSuffix(a, "Attribute") == want {
			return true
		}
	}
	return false
}

// Type is the textual approximation of a static type. The zero Type is
// unknown.
type Type struct {
	Name string
}

// Known reports whether anything is known about the type.
func (t Type) Known() bool { return t.Name != "" && t.Name != "var" }

// Nullable reports whether the type is written with a trailing '?'.
func (t Type) Nullable() bool { return strings.HasSuffix(t.Name, "?") }

// MethodInfo describes the target of an invocation as far as it can be
// determined syntactically.
type MethodInfo struct {
	Name string
	// Receiver is the source text of the qualifying expression, empty for
	// unqualified calls.
	Receiver string
	Arity    int
	// Decl is the declaration when the method is declared in the same tree.
	Decl   *syntax.Node
	Params []*Symbol
	// Static is set for calls qualified by a type name and for unqualified
	// calls to a static method declared in the tree.
	Static bool
}

// ReceiverIsType reports whether the call is qualified by one of the given
// type names.
func (m *MethodInfo) ReceiverIsType(names ...string) bool {
	for _, n := range names {
		if m.Receiver == n {
			return true
		}
	}
	return false
}

// Oracle is the symbol-resolution contract the analyses consume.
type Oracle interface {
	DeclaredSymbol(n *syntax.Node) *Symbol
	ReferencedSymbol(n *syntax.Node) *Symbol
	TypeOf(n *syntax.Node) Type
	IsValueType(t Type) bool
	Attributes(s *Symbol) []string
	Method(invocation *syntax.Node) *MethodInfo
}
