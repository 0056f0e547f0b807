package semantic

import "github.com/panbanda/csflow/pkg/syntax"

type scope struct {
	parent *scope
	names  map[string]*Symbol
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: make(map[string]*Symbol)}
}

func (s *scope) lookup(name string) *Symbol {
	for c := s; c != nil; c = c.parent {
		if sym, ok := c.names[name]; ok {
			return sym
		}
	}
	return nil
}

type binder struct {
	m     *Model
	scope *scope
	owner *syntax.Node
}

func (b *binder) push() { b.scope = newScope(b.scope) }
func (b *binder) pop()  { b.scope = b.scope.parent }

func (b *binder) declare(decl *syntax.Node, name string, kind SymbolKind) *Symbol {
	if name == "" || name == "_" {
		return nil
	}
	sym := &Symbol{
		ID:         len(b.m.symbols),
		Name:       name,
		Kind:       kind,
		TypeText:   decl.TypeText,
		Attributes: decl.Attributes,
		Decl:       decl,
		Owner:      b.owner,
	}
	if kind == SymbolParameter {
		sym.RefKind = ParseRefKind(decl.Modifier)
	}
	b.m.symbols = append(b.m.symbols, sym)
	b.m.declared[decl] = sym
	b.scope.names[name] = sym
	return sym
}

func (b *binder) bindChildren(n *syntax.Node) {
	for _, s := range n.Slots {
		if s != nil {
			b.bind(s)
		}
	}
}

func (b *binder) bind(n *syntax.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case syntax.KindMethod, syntax.KindLambda, syntax.KindAnonymousMethod, syntax.KindLocalFunction:
		b.bindFunction(n)

	case syntax.KindBlock, syntax.KindSwitch, syntax.KindFor, syntax.KindUsing, syntax.KindFixed:
		b.push()
		b.predeclareLocalFunctions(n)
		b.bindChildren(n)
		b.pop()

	case syntax.KindSwitchSection:
		// Statements of a section sit directly in the switch block scope.
		b.predeclareLocalFunctions(n.Slot(1))
		b.bindChildren(n)

	case syntax.KindDeclarator:
		b.bind(n.Slot(0))
		if sym := b.declare(n, n.Name, SymbolLocal); sym != nil && (sym.TypeText == "" || sym.TypeText == "var") {
			if t := b.m.TypeOf(n.Slot(0)); t.Known() {
				sym.TypeText = t.Name
			}
		}

	case syntax.KindForeach:
		b.bind(n.Slot(0))
		b.push()
		b.declare(n, n.Name, SymbolLocal)
		b.bind(n.Slot(1))
		b.pop()

	case syntax.KindCatch:
		b.push()
		b.declare(n, n.Name, SymbolLocal)
		b.bindChildren(n)
		b.pop()

	case syntax.KindDeclarationPattern, syntax.KindVarPattern, syntax.KindDeclarationExpression:
		b.declare(n, n.Name, SymbolLocal)

	case syntax.KindIdentifier:
		if sym := b.scope.lookup(n.Name); sym != nil {
			b.m.referenced[n] = sym
		}

	default:
		b.bindChildren(n)
	}
}

func (b *binder) bindFunction(n *syntax.Node) {
	outer := b.owner
	b.owner = n
	b.push()
	for _, p := range n.Slot(0).Children() {
		if p.Kind == syntax.KindParameter {
			b.declare(p, p.Name, SymbolParameter)
		}
	}
	b.bind(n.Slot(1))
	b.pop()
	b.owner = outer
}

// predeclareLocalFunctions makes local functions visible in the whole
// enclosing block, ahead of their declaration.
func (b *binder) predeclareLocalFunctions(container *syntax.Node) {
	for _, s := range container.Children() {
		if s.Kind == syntax.KindLocalFunction {
			b.declare(s, s.Name, SymbolLocalFunction)
		}
	}
}
