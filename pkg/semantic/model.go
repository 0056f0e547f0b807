package semantic

import (
	"strings"

	"github.com/panbanda/csflow/pkg/syntax"
)

// Model is a syntactic implementation of Oracle for one tree.
type Model struct {
	declared   map[*syntax.Node]*Symbol
	referenced map[*syntax.Node]*Symbol
	symbols    []*Symbol
	methods    map[string][]*syntax.Node
	valueTypes map[string]bool
	typeNames  map[string]bool
}

var _ Oracle = (*Model)(nil)

// NewModel binds every identifier under root. root is usually a compilation
// unit but any subtree works; references to names declared outside it stay
// unresolved.
func NewModel(root *syntax.Node) *Model {
	m := &Model{
		declared:   make(map[*syntax.Node]*Symbol),
		referenced: make(map[*syntax.Node]*Symbol),
		methods:    make(map[string][]*syntax.Node),
		valueTypes: make(map[string]bool),
		typeNames:  make(map[string]bool),
	}
	syntax.Inspect(root, func(n *syntax.Node) bool {
		switch n.Kind {
		case syntax.KindMethod, syntax.KindLocalFunction:
			m.methods[n.Name] = append(m.methods[n.Name], n)
		case syntax.KindType:
			m.typeNames[n.Name] = true
			if n.Modifier == "struct" || n.Modifier == "enum" {
				m.valueTypes[n.Name] = true
			}
		}
		return true
	})
	b := &binder{m: m, scope: newScope(nil)}
	b.bind(root)
	return m
}

// Symbols returns every declared symbol in declaration order.
func (m *Model) Symbols() []*Symbol { return m.symbols }

// DeclaredSymbol returns the entity declared by n: a parameter, declarator,
// foreach statement, catch clause, pattern designation, out variable or
// local function.
func (m *Model) DeclaredSymbol(n *syntax.Node) *Symbol { return m.declared[n] }

// ReferencedSymbol returns the entity an identifier refers to, or nil when
// it names something outside the tracked declarations (a field, a type, a
// method).
func (m *Model) ReferencedSymbol(n *syntax.Node) *Symbol { return m.referenced[n] }

// Attributes returns the attribute names written on the declaration.
func (m *Model) Attributes(s *Symbol) []string {
	if s == nil {
		return nil
	}
	return s.Attributes
}

// Tracked returns the entities of owner that liveness tracks: its locals,
// value parameters and out parameters. ref and in parameters are excluded
// because writes through them are visible to the caller.
func (m *Model) Tracked(owner *syntax.Node) []*Symbol {
	var out []*Symbol
	for _, s := range m.symbols {
		if s.Owner != owner || s.Kind == SymbolLocalFunction {
			continue
		}
		if s.Kind == SymbolParameter && (s.RefKind == RefRef || s.RefKind == RefIn) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Method resolves the target of an invocation.
func (m *Model) Method(inv *syntax.Node) *MethodInfo {
	if inv == nil || inv.Kind != syntax.KindInvocation {
		return nil
	}
	info := &MethodInfo{Arity: len(inv.Slot(1).Children())}
	switch target := syntax.StripParens(inv.Slot(0)); {
	case target == nil:
		return nil
	case target.Kind == syntax.KindIdentifier:
		info.Name = target.Name
	case target.Kind == syntax.KindMemberAccess:
		info.Name = target.Name
		info.Receiver = target.Slot(0).String()
		info.Static = m.namesType(target.Slot(0))
	case target.Kind == syntax.KindMemberBinding:
		info.Name = target.Name
		if ca := syntax.Ancestor(target, syntax.KindConditionalAccess); ca != nil {
			info.Receiver = ca.Slot(0).String()
		}
	default:
		return info
	}
	for _, decl := range m.methods[info.Name] {
		params := decl.Slot(0).Children()
		if len(params) != info.Arity {
			continue
		}
		info.Decl = decl
		for _, p := range params {
			info.Params = append(info.Params, m.declared[p])
		}
		break
	}
	if info.Receiver == "" && info.Decl != nil {
		info.Static = info.Decl.Modifier == "static"
	}
	return info
}

// namesType reports whether a member access receiver is a type rather than
// an instance: a predefined type keyword or an unbound identifier naming a
// type declared in the tree.
func (m *Model) namesType(n *syntax.Node) bool {
	n = syntax.StripParens(n)
	switch {
	case n == nil:
		return false
	case n.Kind == syntax.KindPredefinedType:
		return true
	case n.Kind == syntax.KindIdentifier:
		return m.referenced[n] == nil && m.typeNames[n.Name]
	}
	return false
}

// TypeOf approximates the static type of an expression.
func (m *Model) TypeOf(n *syntax.Node) Type {
	n = syntax.StripParens(n)
	if n == nil {
		return Type{}
	}
	switch n.Kind {
	case syntax.KindIdentifier:
		if s := m.referenced[n]; s != nil {
			return Type{Name: s.TypeText}
		}
	case syntax.KindTrue, syntax.KindFalse, syntax.KindLogicalNot, syntax.KindLogicalAnd,
		syntax.KindLogicalOr, syntax.KindIs, syntax.KindIsPattern:
		return Type{Name: "bool"}
	case syntax.KindBinary:
		switch n.Operator {
		case "==", "!=", "<", ">", "<=", ">=":
			return Type{Name: "bool"}
		}
	case syntax.KindLiteral:
		return Type{Name: literalType(n.String())}
	case syntax.KindInterpolatedString:
		return Type{Name: "string"}
	case syntax.KindObjectCreation, syntax.KindCast, syntax.KindAs, syntax.KindDeclarationExpression,
		syntax.KindArrayCreation:
		return Type{Name: n.TypeText}
	case syntax.KindDefault:
		return Type{Name: n.TypeText}
	}
	return Type{}
}

var predefinedValueTypes = map[string]bool{
	"bool": true, "byte": true, "sbyte": true, "short": true, "ushort": true,
	"int": true, "uint": true, "long": true, "ulong": true, "char": true,
	"float": true, "double": true, "decimal": true, "nint": true, "nuint": true,
	"Boolean": true, "Byte": true, "SByte": true, "Int16": true, "UInt16": true,
	"Int32": true, "UInt32": true, "Int64": true, "UInt64": true, "Char": true,
	"Single": true, "Double": true, "Decimal": true, "DateTime": true,
	"DateTimeOffset": true, "TimeSpan": true, "Guid": true,
}

// IsValueType reports whether values of t can never be null. Nullable value
// types are not value types in this sense.
func (m *Model) IsValueType(t Type) bool {
	if !t.Known() || t.Nullable() {
		return false
	}
	name := strings.TrimPrefix(t.Name, "System.")
	return predefinedValueTypes[name] || m.valueTypes[name]
}

func literalType(text string) string {
	switch {
	case text == "":
		return ""
	case strings.HasPrefix(text, "\""), strings.HasPrefix(text, "@"), strings.HasPrefix(text, "$"):
		return "string"
	case strings.HasPrefix(text, "'"):
		return "char"
	case text[0] >= '0' && text[0] <= '9':
		lower := strings.ToLower(text)
		switch {
		case strings.HasPrefix(lower, "0x"), strings.HasPrefix(lower, "0b"):
			return "int"
		case strings.HasSuffix(lower, "m"):
			return "decimal"
		case strings.HasSuffix(lower, "f"):
			return "float"
		case strings.HasSuffix(lower, "d"), strings.ContainsAny(lower, ".e"):
			return "double"
		case strings.HasSuffix(lower, "l"):
			return "long"
		}
		return "int"
	}
	return ""
}
