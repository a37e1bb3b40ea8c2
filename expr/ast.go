package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags every node so evaluators can dispatch without reflection.
type Kind int

const (
	KindAccessThis Kind = iota
	KindAccessScope
	KindAccessMember
	KindAccessKeyed
	KindCallScope
	KindCallMember
	KindCallFunction
	KindBinary
	KindUnary
	KindConditional
	KindAssign
	KindLiteralPrimitive
	KindLiteralArray
	KindLiteralObject
	KindTemplate
	KindValueConverter
)

var kindNames = [...]string{
	KindAccessThis:       "AccessThis",
	KindAccessScope:      "AccessScope",
	KindAccessMember:     "AccessMember",
	KindAccessKeyed:      "AccessKeyed",
	KindCallScope:        "CallScope",
	KindCallMember:       "CallMember",
	KindCallFunction:     "CallFunction",
	KindBinary:           "Binary",
	KindUnary:            "Unary",
	KindConditional:      "Conditional",
	KindAssign:           "Assign",
	KindLiteralPrimitive: "LiteralPrimitive",
	KindLiteralArray:     "LiteralArray",
	KindLiteralObject:    "LiteralObject",
	KindTemplate:         "Template",
	KindValueConverter:   "ValueConverter",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Node is one node of a pre-parsed binding expression.
type Node interface {
	Kind() Kind
	String() string
}

// AccessThis is $this, or $parent when Ancestor is 1.
type AccessThis struct {
	Ancestor int
}

type AccessScope struct {
	Name     string
	Ancestor int
}

type AccessMember struct {
	Object   Node
	Name     string
	Optional bool
}

type AccessKeyed struct {
	Object   Node
	Key      Node
	Optional bool
}

type CallScope struct {
	Name     string
	Args     []Node
	Ancestor int
	Optional bool
}

type CallMember struct {
	Object   Node
	Name     string
	Args     []Node
	Optional bool
}

type CallFunction struct {
	Func     Node
	Args     []Node
	Optional bool
}

type Binary struct {
	Op    string
	Left  Node
	Right Node
}

type Unary struct {
	Op      string
	Operand Node
}

type Conditional struct {
	Condition Node
	Yes       Node
	No        Node
}

type AssignExpression struct {
	Target Node
	Value  Node
}

type LiteralPrimitive struct {
	Value any
}

type LiteralArray struct {
	Elements []Node
}

type LiteralObject struct {
	Keys   []string
	Values []Node
}

// Template is an interpolation: Cooked[0] Exprs[0] Cooked[1] ... with one
// more cooked string than expressions.
type Template struct {
	Cooked []string
	Exprs  []Node
}

type ValueConverterExpression struct {
	Expr Node
	Name string
	Args []Node
}

func (*AccessThis) Kind() Kind               { return KindAccessThis }
func (*AccessScope) Kind() Kind              { return KindAccessScope }
func (*AccessMember) Kind() Kind             { return KindAccessMember }
func (*AccessKeyed) Kind() Kind              { return KindAccessKeyed }
func (*CallScope) Kind() Kind                { return KindCallScope }
func (*CallMember) Kind() Kind               { return KindCallMember }
func (*CallFunction) Kind() Kind             { return KindCallFunction }
func (*Binary) Kind() Kind                   { return KindBinary }
func (*Unary) Kind() Kind                    { return KindUnary }
func (*Conditional) Kind() Kind              { return KindConditional }
func (*AssignExpression) Kind() Kind         { return KindAssign }
func (*LiteralPrimitive) Kind() Kind         { return KindLiteralPrimitive }
func (*LiteralArray) Kind() Kind             { return KindLiteralArray }
func (*LiteralObject) Kind() Kind            { return KindLiteralObject }
func (*Template) Kind() Kind                 { return KindTemplate }
func (*ValueConverterExpression) Kind() Kind { return KindValueConverter }

func ancestorPrefix(n int) string {
	return strings.Repeat("$parent.", n)
}

func (n *AccessThis) String() string {
	if n.Ancestor == 0 {
		return "$this"
	}
	return strings.TrimSuffix(ancestorPrefix(n.Ancestor), ".")
}

func (n *AccessScope) String() string { return ancestorPrefix(n.Ancestor) + n.Name }

func (n *AccessMember) String() string {
	if n.Optional {
		return n.Object.String() + "?." + n.Name
	}
	return n.Object.String() + "." + n.Name
}

func (n *AccessKeyed) String() string {
	if n.Optional {
		return n.Object.String() + "?.[" + n.Key.String() + "]"
	}
	return n.Object.String() + "[" + n.Key.String() + "]"
}

func (n *CallScope) String() string {
	return ancestorPrefix(n.Ancestor) + n.Name + optionalCall(n.Optional) + "(" + joinNodes(n.Args, ", ") + ")"
}

func (n *CallMember) String() string {
	return n.Object.String() + "." + n.Name + optionalCall(n.Optional) + "(" + joinNodes(n.Args, ", ") + ")"
}

func (n *CallFunction) String() string {
	return n.Func.String() + optionalCall(n.Optional) + "(" + joinNodes(n.Args, ", ") + ")"
}

func (n *Binary) String() string {
	return "(" + n.Left.String() + " " + n.Op + " " + n.Right.String() + ")"
}

func (n *Unary) String() string { return n.Op + n.Operand.String() }

func (n *Conditional) String() string {
	return n.Condition.String() + " ? " + n.Yes.String() + " : " + n.No.String()
}

func (n *AssignExpression) String() string { return n.Target.String() + " = " + n.Value.String() }

func (n *LiteralPrimitive) String() string {
	switch v := n.Value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	default:
		return fmt.Sprint(v)
	}
}

func (n *LiteralArray) String() string { return "[" + joinNodes(n.Elements, ", ") + "]" }

func (n *LiteralObject) String() string {
	parts := make([]string, len(n.Keys))
	for i, k := range n.Keys {
		parts[i] = k + ": " + n.Values[i].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (n *Template) String() string {
	var sb strings.Builder
	sb.WriteByte('`')
	for i, c := range n.Cooked {
		sb.WriteString(c)
		if i < len(n.Exprs) {
			sb.WriteString("${")
			sb.WriteString(n.Exprs[i].String())
			sb.WriteByte('}')
		}
	}
	sb.WriteByte('`')
	return sb.String()
}

func (n *ValueConverterExpression) String() string {
	var sb strings.Builder
	sb.WriteString(n.Expr.String())
	sb.WriteString(" | ")
	sb.WriteString(n.Name)
	for _, a := range n.Args {
		sb.WriteByte(':')
		sb.WriteString(a.String())
	}
	return sb.String()
}

func optionalCall(optional bool) string {
	if optional {
		return "?."
	}
	return ""
}

func joinNodes(nodes []Node, sep string) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, sep)
}
