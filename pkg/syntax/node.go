// Package syntax defines the normalized C# syntax tree consumed by the
// control-flow and dataflow analyses.
//
// Nodes are produced by a front end (see package csharp) or assembled
// directly with the constructors in build.go. Each kind has a fixed slot
// layout; optional parts are nil slots so positions stay stable.
package syntax

import (
	"strconv"
	"strings"
)

// Kind identifies the syntactic construct a Node represents.
type Kind int

const (
	KindOther Kind = iota

	// Declarations.
	KindCompilationUnit
	KindType      // Name; slots: members...
	KindMethod    // Name, Modifier "static"; slots: [params, body]
	KindParameter // Name, TypeText, Modifier, Attributes
	KindLocalFunction
	KindList

	// Statements.
	KindBlock
	KindEmpty
	KindExpressionStatement // [expr]
	KindLocalDeclaration    // TypeText; slots: declarators...
	KindDeclarator          // Name, TypeText; [init?]
	KindIf                  // [cond, then, else?]
	KindWhile               // [cond, body]
	KindDo                  // [body, cond]
	KindFor                 // [init list, cond?, update list, body]
	KindForeach             // Name, TypeText; [collection, body]
	KindSwitch              // [expr, sections...]
	KindSwitchSection       // [labels list, statements list]
	KindCaseLabel           // [value]
	KindPatternCaseLabel    // [pattern, when?]
	KindDefaultLabel
	KindTry      // [body, catches list, finally?]
	KindCatch    // TypeText, Name; [filter?, body]
	KindLock     // [expr, body]
	KindUsing    // [resource?, body]
	KindFixed    // [declaration, body]
	KindChecked  // Operator "checked" or "unchecked"; [block]
	KindUnsafe   // [block]
	KindLabeled  // Name; [statement]
	KindGoto     // Name
	KindGotoCase // [value]
	KindGotoDefault
	KindReturn // [expr?]
	KindThrow  // [expr?]
	KindYieldReturn
	KindYieldBreak
	KindBreak
	KindContinue

	// Expressions.
	KindIdentifier // Name
	KindThis
	KindBase
	KindNull
	KindTrue
	KindFalse
	KindLiteral // Text
	KindInterpolatedString
	KindPredefinedType // Name
	KindAssignment     // [left, right]
	KindCompoundAssignment
	KindLogicalAnd
	KindLogicalOr
	KindCoalesce
	KindConditionalAccess // [expr, when-not-null]
	KindMemberBinding     // Name
	KindElementBinding    // [args]
	KindConditional       // [cond, whenTrue, whenFalse]
	KindBinary            // Operator; [left, right]
	KindLogicalNot        // [operand]
	KindPrefixUnary       // Operator; [operand]
	KindPostfixUnary      // Operator; [operand]
	KindParenthesized     // [expr]
	KindInvocation        // [target, args]
	KindArgumentList
	KindArgument      // Modifier, Name; [expr]
	KindMemberAccess  // Name; [expr]
	KindElementAccess // [expr, args]
	KindObjectCreation
	KindAnonymousObject
	KindArrayCreation
	KindInitializer
	KindLambda // [params, body]
	KindAnonymousMethod
	KindQuery
	KindCast // TypeText; [expr]
	KindAs   // TypeText; [expr]
	KindIs   // TypeText; [expr]
	KindIsPattern
	KindAwait
	KindDeclarationExpression // Name, TypeText
	KindTypeof
	KindSizeof
	KindDefault
	KindCheckedExpression
	KindThrowExpression
	KindTuple
	// KindOpaqueExpression is an expression the front end does not model.
	// Its slots are the subexpressions it evaluates.
	KindOpaqueExpression
	KindTypeExpr // a type used in expression position

	// Patterns.
	KindDeclarationPattern // TypeText, Name
	KindConstantPattern    // [expr]
	KindVarPattern         // Name
	KindTypePattern        // TypeText
	KindDiscard
	KindRecursivePattern

	kindCount
)

var kindNames = [...]string{
	KindOther:                 "Other",
	KindCompilationUnit:       "CompilationUnit",
	KindType:                  "TypeDeclaration",
	KindMethod:                "Method",
	KindParameter:             "Parameter",
	KindLocalFunction:         "LocalFunction",
	KindList:                  "List",
	KindBlock:                 "Block",
	KindEmpty:                 "Empty",
	KindExpressionStatement:   "ExpressionStatement",
	KindLocalDeclaration:      "LocalDeclaration",
	KindDeclarator:            "Declarator",
	KindIf:                    "If",
	KindWhile:                 "While",
	KindDo:                    "Do",
	KindFor:                   "For",
	KindForeach:               "Foreach",
	KindSwitch:                "Switch",
	KindSwitchSection:         "SwitchSection",
	KindCaseLabel:             "CaseLabel",
	KindPatternCaseLabel:      "PatternCaseLabel",
	KindDefaultLabel:          "DefaultLabel",
	KindTry:                   "Try",
	KindCatch:                 "Catch",
	KindLock:                  "Lock",
	KindUsing:                 "Using",
	KindFixed:                 "Fixed",
	KindChecked:               "Checked",
	KindUnsafe:                "Unsafe",
	KindLabeled:               "Labeled",
	KindGoto:                  "Goto",
	KindGotoCase:              "GotoCase",
	KindGotoDefault:           "GotoDefault",
	KindReturn:                "Return",
	KindThrow:                 "Throw",
	KindYieldReturn:           "YieldReturn",
	KindYieldBreak:            "YieldBreak",
	KindBreak:                 "Break",
	KindContinue:              "Continue",
	KindIdentifier:            "Identifier",
	KindThis:                  "This",
	KindBase:                  "Base",
	KindNull:                  "Null",
	KindTrue:                  "True",
	KindFalse:                 "False",
	KindLiteral:               "Literal",
	KindInterpolatedString:    "InterpolatedString",
	KindPredefinedType:        "PredefinedType",
	KindAssignment:            "Assignment",
	KindCompoundAssignment:    "CompoundAssignment",
	KindLogicalAnd:            "LogicalAnd",
	KindLogicalOr:             "LogicalOr",
	KindCoalesce:              "Coalesce",
	KindConditionalAccess:     "ConditionalAccess",
	KindMemberBinding:         "MemberBinding",
	KindElementBinding:        "ElementBinding",
	KindConditional:           "Conditional",
	KindBinary:                "Binary",
	KindLogicalNot:            "LogicalNot",
	KindPrefixUnary:           "PrefixUnary",
	KindPostfixUnary:          "PostfixUnary",
	KindParenthesized:         "Parenthesized",
	KindInvocation:            "Invocation",
	KindArgumentList:          "ArgumentList",
	KindArgument:              "Argument",
	KindMemberAccess:          "MemberAccess",
	KindElementAccess:         "ElementAccess",
	KindObjectCreation:        "ObjectCreation",
	KindAnonymousObject:       "AnonymousObject",
	KindArrayCreation:         "ArrayCreation",
	KindInitializer:           "Initializer",
	KindLambda:                "Lambda",
	KindAnonymousMethod:       "AnonymousMethod",
	KindQuery:                 "Query",
	KindCast:                  "Cast",
	KindAs:                    "As",
	KindIs:                    "Is",
	KindIsPattern:             "IsPattern",
	KindAwait:                 "Await",
	KindDeclarationExpression: "DeclarationExpression",
	KindTypeof:                "Typeof",
	KindSizeof:                "Sizeof",
	KindDefault:               "Default",
	KindCheckedExpression:     "CheckedExpression",
	KindThrowExpression:       "ThrowExpression",
	KindTuple:                 "Tuple",
	KindOpaqueExpression:      "OpaqueExpression",
	KindTypeExpr:              "TypeExpression",
	KindDeclarationPattern:    "DeclarationPattern",
	KindConstantPattern:       "ConstantPattern",
	KindVarPattern:            "VarPattern",
	KindTypePattern:           "TypePattern",
	KindDiscard:               "Discard",
	KindRecursivePattern:      "RecursivePattern",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// IsExpression reports whether nodes of this kind produce a value.
func (k Kind) IsExpression() bool {
	return k >= KindIdentifier && k <= KindTypeExpr
}

// IsPattern reports whether k is a pattern kind.
func (k Kind) IsPattern() bool {
	return k >= KindDeclarationPattern && k < kindCount
}

// Span locates a node in its source file. Lines and columns are 1-based.
type Span struct {
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`
}

// Node is one syntax node. Nodes are never mutated once a tree is handed to
// an analysis.
type Node struct {
	Kind       Kind
	Name       string
	Operator   string
	Modifier   string
	TypeText   string
	Attributes []string
	Text       string
	Span       Span
	Parent     *Node
	Slots      []*Node
}

// Slot returns the i-th slot or nil when it is absent or out of range.
func (n *Node) Slot(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Slots) {
		return nil
	}
	return n.Slots[i]
}

// Children returns the present slots in order.
func (n *Node) Children() []*Node {
	if n == nil {
		return nil
	}
	out := make([]*Node, 0, len(n.Slots))
	for _, s := range n.Slots {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Is reports whether n is non-nil and of one of the given kinds.
func (n *Node) Is(kinds ...Kind) bool {
	if n == nil {
		return false
	}
	for _, k := range kinds {
		if n.Kind == k {
			return true
		}
	}
	return false
}

// String returns the source text when known, otherwise a rendering of the
// node.
func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	if n.Text != "" {
		return n.Text
	}
	var b strings.Builder
	render(&b, n)
	return b.String()
}

// StripParens returns the innermost expression under any parentheses.
func StripParens(n *Node) *Node {
	for n != nil && n.Kind == KindParenthesized {
		n = n.Slot(0)
	}
	return n
}

// ParentSkippingParens returns the first ancestor that is not a
// parenthesized expression.
func ParentSkippingParens(n *Node) *Node {
	p := n.Parent
	for p != nil && p.Kind == KindParenthesized {
		p = p.Parent
	}
	return p
}

// Inspect walks the tree rooted at n in depth-first pre-order. If f returns
// false the children of that node are skipped.
func Inspect(n *Node, f func(*Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, s := range n.Slots {
		if s != nil {
			Inspect(s, f)
		}
	}
}

// Ancestor returns the nearest ancestor of n with one of the given kinds.
func Ancestor(n *Node, kinds ...Kind) *Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Is(kinds...) {
			return p
		}
	}
	return nil
}

// Contains reports whether descendant lies within root (or is root).
func Contains(root, descendant *Node) bool {
	for n := descendant; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}
