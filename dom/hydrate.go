package dom

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/delaneyj/bindparty/binding"
	"github.com/delaneyj/bindparty/expr"
	"github.com/delaneyj/bindparty/lifecycle"
	"github.com/delaneyj/bindparty/observation"
)

// Hydrator turns attribute commands on a node into bindings.
type Hydrator struct {
	Adapter    Adapter
	Locator    *observation.Locator
	Recognizer *binding.CommandRecognizer
	Options    []binding.Option
}

func NewHydrator(a Adapter, l *observation.Locator, r *binding.CommandRecognizer, opts ...binding.Option) *Hydrator {
	if r == nil {
		r = binding.NewCommandRecognizer()
	}
	return &Hydrator{Adapter: a, Locator: l, Recognizer: r, Options: opts}
}

// Hydrate creates one binding per attribute, in attribute name order.
// Names with a binding command bind the target they name; any other name
// becomes a to-view binding of that attribute.
func (h *Hydrator) Hydrate(n *Node, attrs map[string]expr.Node) ([]lifecycle.Bindable, error) {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]lifecycle.Bindable, 0, len(names))
	for _, name := range names {
		b, err := h.bindingFor(n, name, attrs[name])
		if err != nil {
			return nil, fmt.Errorf("hydrating <%s %s>: %w", n.Tag, name, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (h *Hydrator) bindingFor(n *Node, attr string, ast expr.Node) (lifecycle.Bindable, error) {
	m, err := h.Recognizer.Recognize(attr)
	if errors.Is(err, binding.ErrNoPatternMatch) {
		t := &AttributeTarget{Adapter: h.Adapter, Node: n, Name: attr}
		return binding.New(ast, t, binding.ToView, h.Locator, h.Options...), nil
	}
	if err != nil {
		return nil, err
	}

	target := m.Target()
	if m.Command == binding.CommandTrigger {
		return binding.NewListener(ast, EventTarget(h.Adapter, n), target, h.Locator, h.Options...), nil
	}
	mode, ok := binding.ModeFor(m.Command, DefaultMode(n, target))
	if !ok {
		return nil, fmt.Errorf("unknown binding command %q", m.Command)
	}
	if isAttribute(target) {
		if mode == binding.FromView || mode == binding.TwoWay {
			return nil, fmt.Errorf("attribute %q cannot be bound %s", target, mode)
		}
		t := &AttributeTarget{Adapter: h.Adapter, Node: n, Name: target}
		return binding.New(ast, t, mode, h.Locator, h.Options...), nil
	}
	prop := propertyName(target)
	var t binding.Target = &PropertyTarget{Adapter: h.Adapter, Node: n, Name: prop}
	if mode == binding.FromView || mode == binding.TwoWay {
		t = NewValueTarget(h.Adapter, n, prop)
	}
	return binding.New(ast, t, mode, h.Locator, h.Options...), nil
}

// DefaultMode is the mode of a plain bind command: two-way for the value
// of form controls and the checked state of inputs, to-view otherwise.
func DefaultMode(n *Node, target string) binding.Mode {
	switch {
	case target == "value" && (n.Tag == "input" || n.Tag == "textarea" || n.Tag == "select"):
		return binding.TwoWay
	case target == "checked" && n.Tag == "input":
		return binding.TwoWay
	}
	return binding.ToView
}

func isAttribute(name string) bool {
	return name == "class" || name == "style" || name == "id" ||
		strings.HasPrefix(name, "data-") || strings.HasPrefix(name, "aria-")
}

// propertyName maps kebab-case attribute targets to property names, so
// text-content binds textContent.
func propertyName(target string) string {
	parts := strings.Split(target, "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
