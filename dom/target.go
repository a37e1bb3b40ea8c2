package dom

import (
	"github.com/delaneyj/bindparty/binding"
	"github.com/delaneyj/bindparty/observation"
)

// PropertyTarget binds to a node property.
type PropertyTarget struct {
	Adapter Adapter
	Node    *Node
	Name    string
}

var _ binding.Target = (*PropertyTarget)(nil)

func (t *PropertyTarget) GetValue() any        { return t.Adapter.GetProperty(t.Node, t.Name) }
func (t *PropertyTarget) SetValue(v any) error { return t.Adapter.SetProperty(t.Node, t.Name, v) }

// AttributeTarget binds to a node attribute.
type AttributeTarget struct {
	Adapter Adapter
	Node    *Node
	Name    string
}

var _ binding.Target = (*AttributeTarget)(nil)

func (t *AttributeTarget) GetValue() any {
	v, ok := t.Adapter.GetAttribute(t.Node, t.Name)
	if !ok {
		return nil
	}
	return v
}

func (t *AttributeTarget) SetValue(v any) error { return t.Adapter.SetAttribute(t.Node, t.Name, v) }

// ValueTarget is a form control property that reports user edits. It
// listens to its events only while it has subscribers.
type ValueTarget struct {
	PropertyTarget
	Events []string

	subs   []observation.Subscriber
	remove []func()
	last   any
}

var _ binding.TargetObserver = (*ValueTarget)(nil)

// NewValueTarget observes name on n, listening to input and change unless
// other events are given.
func NewValueTarget(a Adapter, n *Node, name string, events ...string) *ValueTarget {
	if len(events) == 0 {
		events = []string{"input", "change"}
	}
	return &ValueTarget{
		PropertyTarget: PropertyTarget{Adapter: a, Node: n, Name: name},
		Events:         events,
	}
}

func (t *ValueTarget) SetValue(v any) error {
	t.last = v
	return t.PropertyTarget.SetValue(v)
}

func (t *ValueTarget) Subscribe(s observation.Subscriber) {
	for _, sub := range t.subs {
		if sub == s {
			return
		}
	}
	t.subs = append(t.subs, s)
	if len(t.subs) > 1 {
		return
	}
	t.last = t.GetValue()
	for _, ev := range t.Events {
		t.remove = append(t.remove, t.Adapter.AddEventListener(t.Node, ev, t.handleEvent))
	}
}

func (t *ValueTarget) Unsubscribe(s observation.Subscriber) {
	for i, sub := range t.subs {
		if sub != s {
			continue
		}
		t.subs = append(t.subs[:i], t.subs[i+1:]...)
		if len(t.subs) == 0 {
			for _, rm := range t.remove {
				rm()
			}
			t.remove = nil
		}
		return
	}
}

func (t *ValueTarget) SubscriberCount() int { return len(t.subs) }

func (t *ValueTarget) handleEvent(any) {
	v := t.GetValue()
	if observation.SameValue(v, t.last) {
		return
	}
	old := t.last
	t.last = v
	for _, s := range append([]observation.Subscriber(nil), t.subs...) {
		s.HandleChange(v, old)
	}
}

type eventTarget struct {
	adapter Adapter
	node    *Node
}

func (e eventTarget) AddEventListener(event string, fn func(ev any)) func() {
	return e.adapter.AddEventListener(e.node, event, fn)
}

// EventTarget exposes n's events through a to listener bindings.
func EventTarget(a Adapter, n *Node) binding.EventTarget {
	return eventTarget{adapter: a, node: n}
}
