package binding

import (
	"github.com/delaneyj/bindparty/expr"
	"github.com/delaneyj/bindparty/observation"
	"github.com/delaneyj/bindparty/scope"
)

// EventTarget dispatches named events to listeners.
type EventTarget interface {
	AddEventListener(event string, fn func(ev any)) (remove func())
}

// ListenerBinding evaluates its expression each time the event fires. The
// event payload is visible to the expression as the local $event.
type ListenerBinding struct {
	ast     expr.Node
	target  EventTarget
	event   string
	locator *observation.Locator
	opts    options

	scope  *scope.Scope
	remove func()
	calls  int
}

// NewListener reads and writes properties through locator, so computed
// properties behave as they do in a Binding.
func NewListener(ast expr.Node, target EventTarget, event string, locator *observation.Locator, opts ...Option) *ListenerBinding {
	return &ListenerBinding{
		ast:     ast,
		target:  target,
		event:   event,
		locator: locator,
		opts:    buildOptions(opts),
	}
}

func (l *ListenerBinding) String() string { return l.event + ".trigger=" + l.ast.String() }
func (l *ListenerBinding) Event() string  { return l.event }
func (l *ListenerBinding) IsBound() bool  { return l.scope != nil }
func (l *ListenerBinding) Calls() int     { return l.calls }

func (l *ListenerBinding) Bind(s *scope.Scope) error {
	if s == nil {
		return scope.ErrNilScope
	}
	if l.scope == s {
		return nil
	}
	l.Unbind()
	l.scope = s
	l.remove = l.target.AddEventListener(l.event, l.handle)
	return nil
}

func (l *ListenerBinding) Unbind() {
	if l.remove != nil {
		l.remove()
		l.remove = nil
	}
	l.scope = nil
}

func (l *ListenerBinding) handle(ev any) {
	if l.scope == nil {
		return
	}
	l.calls++
	s := l.scope.WithLocals(map[string]any{"$event": ev})
	if _, err := expr.Evaluate(l.ast, s, l); err != nil {
		l.opts.reporter.Report(l, err)
	}
}

// ValueConverter implements expr.Resources.
func (l *ListenerBinding) ValueConverter(name string) (expr.ValueConverter, bool) {
	return l.opts.ValueConverter(name)
}

func (l *ListenerBinding) GetProperty(obj any, key string) any {
	if l.locator == nil {
		return observation.GetProperty(obj, key)
	}
	return l.locator.GetValue(obj, key)
}

func (l *ListenerBinding) SetProperty(obj any, key string, v any) error {
	if l.locator == nil {
		return observation.SetProperty(obj, key, v)
	}
	return l.locator.SetValue(obj, key, v)
}
