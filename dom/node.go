// Package dom is an in-memory node tree standing in for a browser
// document. Bindings write to it through an Adapter, and it renders to
// HTML for demos and benchmark verification.
package dom

import (
	"slices"
	"sort"
)

// Event is the payload listeners receive from Dispatch.
type Event struct {
	Type   string
	Target *Node
	Detail any
}

type listener struct {
	fn func(ev any)
}

// Node is an element or, when Tag is empty, a text node.
type Node struct {
	Tag  string
	text string

	props     map[string]any
	attrs     map[string]string
	children  []*Node
	parent    *Node
	listeners map[string][]*listener
}

func NewElement(tag string) *Node {
	return &Node{Tag: tag}
}

func NewText(text string) *Node {
	return &Node{text: text}
}

func (n *Node) IsText() bool      { return n.Tag == "" }
func (n *Node) Parent() *Node     { return n.parent }
func (n *Node) Children() []*Node { return n.children }
func (n *Node) FirstChild() *Node {
	if len(n.children) == 0 {
		return nil
	}
	return n.children[0]
}

// AppendChild moves c under n and returns c.
func (n *Node) AppendChild(c *Node) *Node {
	if c.parent != nil {
		c.parent.RemoveChild(c)
	}
	c.parent = n
	n.children = append(n.children, c)
	return c
}

func (n *Node) RemoveChild(c *Node) bool {
	i := slices.Index(n.children, c)
	if i < 0 {
		return false
	}
	n.children = slices.Delete(n.children, i, i+1)
	c.parent = nil
	return true
}

// Append is AppendChild for several children, returning n for chaining.
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

// TextContent concatenates the text of n and its descendants.
func (n *Node) TextContent() string {
	if n.IsText() {
		return n.text
	}
	var out []byte
	n.walk(func(d *Node) {
		if d.IsText() {
			out = append(out, d.text...)
		}
	})
	return string(out)
}

// SetTextContent replaces the children of an element with one text node,
// or the data of a text node.
func (n *Node) SetTextContent(s string) {
	if n.IsText() {
		n.text = s
		return
	}
	for _, c := range n.children {
		c.parent = nil
	}
	n.children = nil
	n.AppendChild(NewText(s))
}

func (n *Node) Property(name string) (any, bool) {
	v, ok := n.props[name]
	return v, ok
}

func (n *Node) SetProperty(name string, v any) {
	if n.props == nil {
		n.props = map[string]any{}
	}
	n.props[name] = v
}

func (n *Node) Attribute(name string) (string, bool) {
	v, ok := n.attrs[name]
	return v, ok
}

func (n *Node) SetAttribute(name, value string) {
	if n.attrs == nil {
		n.attrs = map[string]string{}
	}
	n.attrs[name] = value
}

func (n *Node) RemoveAttribute(name string) {
	delete(n.attrs, name)
}

// AttributeNames returns the attribute names in sorted order.
func (n *Node) AttributeNames() []string {
	names := make([]string, 0, len(n.attrs))
	for k := range n.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// AddEventListener registers fn and returns a func removing it.
func (n *Node) AddEventListener(event string, fn func(ev any)) func() {
	if n.listeners == nil {
		n.listeners = map[string][]*listener{}
	}
	l := &listener{fn: fn}
	n.listeners[event] = append(n.listeners[event], l)
	return func() {
		list := n.listeners[event]
		if i := slices.Index(list, l); i >= 0 {
			n.listeners[event] = slices.Delete(list, i, i+1)
		}
	}
}

func (n *Node) ListenerCount(event string) int { return len(n.listeners[event]) }

// Dispatch calls the listeners for event on n with an *Event and returns
// how many ran. Listeners added during dispatch wait for the next one.
func (n *Node) Dispatch(event string, detail any) int {
	list := slices.Clone(n.listeners[event])
	ev := &Event{Type: event, Target: n, Detail: detail}
	for _, l := range list {
		l.fn(ev)
	}
	return len(list)
}

// Input simulates a user editing a form control: it sets the value
// property and dispatches input.
func (n *Node) Input(value any) {
	n.SetProperty("value", value)
	n.Dispatch("input", value)
}

// Toggle simulates clicking a checkbox.
func (n *Node) Toggle() {
	checked, _ := n.props["checked"].(bool)
	n.SetProperty("checked", !checked)
	n.Dispatch("change", !checked)
}

// Find returns the first node in document order, n included, for which
// match reports true.
func (n *Node) Find(match func(*Node) bool) *Node {
	var found *Node
	n.walk(func(d *Node) {
		if found == nil && match(d) {
			found = d
		}
	})
	return found
}

// ByID finds the element whose id attribute is id.
func (n *Node) ByID(id string) *Node {
	return n.Find(func(d *Node) bool {
		v, ok := d.attrs["id"]
		return ok && v == id
	})
}

func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.walk(fn)
	}
}
