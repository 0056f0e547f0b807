package syntax

import "strings"

// render writes an approximate C# rendering of n. It is used for nodes that
// were built in memory and carry no source text.
func render(b *strings.Builder, n *Node) {
	if n == nil {
		return
	}
	if n.Text != "" {
		b.WriteString(n.Text)
		return
	}
	switch n.Kind {
	case KindIdentifier, KindPredefinedType, KindMemberBinding, KindVarPattern:
		b.WriteString(n.Name)
	case KindThis:
		b.WriteString("this")
	case KindBase:
		b.WriteString("base")
	case KindNull:
		b.WriteString("null")
	case KindTrue:
		b.WriteString("true")
	case KindFalse:
		b.WriteString("false")
	case KindDiscard:
		b.WriteString("_")
	case KindAssignment, KindCompoundAssignment, KindBinary, KindLogicalAnd, KindLogicalOr, KindCoalesce:
		render(b, n.Slot(0))
		b.WriteString(" " + n.Operator + " ")
		render(b, n.Slot(1))
	case KindLogicalNot, KindPrefixUnary:
		b.WriteString(n.Operator)
		render(b, n.Slot(0))
	case KindPostfixUnary:
		render(b, n.Slot(0))
		b.WriteString(n.Operator)
	case KindParenthesized:
		b.WriteString("(")
		render(b, n.Slot(0))
		b.WriteString(")")
	case KindMemberAccess:
		render(b, n.Slot(0))
		b.WriteString("." + n.Name)
	case KindElementAccess:
		render(b, n.Slot(0))
		renderList(b, n.Slot(1), "[", "]")
	case KindElementBinding:
		renderList(b, n.Slot(0), "[", "]")
	case KindConditionalAccess:
		render(b, n.Slot(0))
		b.WriteString("?")
		if w := n.Slot(1); w != nil && leftmost(w).Kind == KindMemberBinding {
			b.WriteString(".")
		}
		render(b, n.Slot(1))
	case KindInvocation:
		render(b, n.Slot(0))
		renderList(b, n.Slot(1), "(", ")")
	case KindArgument:
		if n.Name != "" {
			b.WriteString(n.Name + ": ")
		}
		if n.Modifier != "" {
			b.WriteString(n.Modifier + " ")
		}
		render(b, n.Slot(0))
	case KindArgumentList:
		renderList(b, n, "(", ")")
	case KindConditional:
		render(b, n.Slot(0))
		b.WriteString(" ? ")
		render(b, n.Slot(1))
		b.WriteString(" : ")
		render(b, n.Slot(2))
	case KindObjectCreation:
		b.WriteString("new " + n.TypeText)
		renderList(b, n.Slot(0), "(", ")")
		if n.Slot(1) != nil {
			b.WriteString(" ")
			render(b, n.Slot(1))
		}
	case KindInitializer:
		renderList(b, n, "{ ", " }")
	case KindCast:
		b.WriteString("(" + n.TypeText + ")")
		render(b, n.Slot(0))
	case KindAs:
		render(b, n.Slot(0))
		b.WriteString(" as " + n.TypeText)
	case KindIs:
		render(b, n.Slot(0))
		b.WriteString(" is " + n.TypeText)
	case KindIsPattern:
		render(b, n.Slot(0))
		b.WriteString(" is ")
		render(b, n.Slot(1))
	case KindConstantPattern:
		render(b, n.Slot(0))
	case KindDeclarationPattern, KindDeclarationExpression:
		b.WriteString(n.TypeText + " " + n.Name)
	case KindTypePattern, KindTypeExpr:
		b.WriteString(n.TypeText)
	case KindAwait:
		b.WriteString("await ")
		render(b, n.Slot(0))
	case KindTypeof:
		b.WriteString("typeof(" + n.TypeText + ")")
	case KindSizeof:
		b.WriteString("sizeof(" + n.TypeText + ")")
	case KindDefault:
		if n.TypeText == "" {
			b.WriteString("default")
		} else {
			b.WriteString("default(" + n.TypeText + ")")
		}
	case KindLambda:
		params := n.Slot(0).Children()
		if len(params) == 1 {
			b.WriteString(params[0].Name)
		} else {
			b.WriteString("(")
			for i, p := range params {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(p.Name)
			}
			b.WriteString(")")
		}
		b.WriteString(" => ")
		render(b, n.Slot(1))
	case KindDeclarator:
		b.WriteString(n.Name)
		if n.Slot(0) != nil {
			b.WriteString(" = ")
			render(b, n.Slot(0))
		}
	case KindCaseLabel:
		b.WriteString("case ")
		render(b, n.Slot(0))
		b.WriteString(":")
	case KindPatternCaseLabel:
		b.WriteString("case ")
		render(b, n.Slot(0))
		if n.Slot(1) != nil {
			b.WriteString(" when ")
			render(b, n.Slot(1))
		}
		b.WriteString(":")
	case KindDefaultLabel:
		b.WriteString("default:")
	case KindThrowExpression:
		b.WriteString("throw ")
		render(b, n.Slot(0))
	default:
		b.WriteString(n.Kind.String())
		if n.Name != "" {
			b.WriteString(" " + n.Name)
		}
	}
}

func renderList(b *strings.Builder, list *Node, open, close string) {
	b.WriteString(open)
	for i, item := range list.Children() {
		if i > 0 {
			b.WriteString(", ")
		}
		render(b, item)
	}
	b.WriteString(close)
}

// leftmost follows the first slot of postfix chains down to their root.
func leftmost(n *Node) *Node {
	for {
		switch n.Kind {
		case KindInvocation, KindMemberAccess, KindElementAccess:
			if next := n.Slot(0); next != nil {
				n = next
				continue
			}
		}
		return n
	}
}
