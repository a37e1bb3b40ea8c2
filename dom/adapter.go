package dom

import (
	"github.com/delaneyj/bindparty/expr"
)

// Adapter is the capability bindings use to reach the view. The runtime
// never touches nodes directly.
type Adapter interface {
	GetProperty(n *Node, name string) any
	SetProperty(n *Node, name string, v any) error
	GetAttribute(n *Node, name string) (string, bool)
	// SetAttribute removes the attribute for nil and false, writes an empty
	// value for true and the string form of anything else.
	SetAttribute(n *Node, name string, v any) error
	AddEventListener(n *Node, event string, fn func(ev any)) func()
}

// MemoryAdapter writes straight into the node tree and counts writes.
type MemoryAdapter struct {
	writes uint64
}

var _ Adapter = (*MemoryAdapter)(nil)

func NewMemoryAdapter() *MemoryAdapter { return &MemoryAdapter{} }

// Writes is the number of property and attribute writes so far.
func (a *MemoryAdapter) Writes() uint64 { return a.writes }

func (a *MemoryAdapter) GetProperty(n *Node, name string) any {
	if name == "textContent" {
		return n.TextContent()
	}
	v, _ := n.Property(name)
	return v
}

func (a *MemoryAdapter) SetProperty(n *Node, name string, v any) error {
	a.writes++
	if name == "textContent" {
		n.SetTextContent(expr.ToString(v))
		return nil
	}
	n.SetProperty(name, v)
	return nil
}

func (a *MemoryAdapter) GetAttribute(n *Node, name string) (string, bool) {
	return n.Attribute(name)
}

func (a *MemoryAdapter) SetAttribute(n *Node, name string, v any) error {
	a.writes++
	switch v := v.(type) {
	case nil:
		n.RemoveAttribute(name)
	case bool:
		if v {
			n.SetAttribute(name, "")
		} else {
			n.RemoveAttribute(name)
		}
	default:
		n.SetAttribute(name, expr.ToString(v))
	}
	return nil
}

func (a *MemoryAdapter) AddEventListener(n *Node, event string, fn func(ev any)) func() {
	return n.AddEventListener(event, fn)
}
