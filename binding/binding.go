// Package binding connects expressions over a scope to targets.
//
// A Binding evaluates its expression with dependency tracking, subscribes to
// every observer the evaluation touched and, when any of them changes,
// re-evaluates and queues one render task that writes the target. Source
// updates from the target flow back through expr.Assign.
package binding

import (
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/delaneyj/bindparty/expr"
	"github.com/delaneyj/bindparty/observation"
	"github.com/delaneyj/bindparty/scheduler"
	"github.com/delaneyj/bindparty/scope"
)

// Target is the view side of a binding.
type Target interface {
	GetValue() any
	SetValue(v any) error
}

// TargetObserver is a Target that reports changes made on the view side.
// FromView and TwoWay bindings subscribe to it.
type TargetObserver interface {
	Target
	Subscribe(s observation.Subscriber)
	Unsubscribe(s observation.Subscriber)
}

type Binding struct {
	ast     expr.Node
	target  Target
	mode    Mode
	locator *observation.Locator
	sched   *scheduler.Scheduler
	opts    options
	logger  *slog.Logger

	scope *scope.Scope
	state State

	observers   mapset.Set[observation.Observer]
	collections mapset.Set[observation.CollectionObserver]
	listener    *targetListener

	value     any
	pushed    any
	hasPushed bool

	render       *scheduler.Task
	pendingValue any

	evaluations int
}

var (
	_ observation.Subscriber           = (*Binding)(nil)
	_ observation.CollectionSubscriber = (*Binding)(nil)
	_ expr.Connector                   = (*Binding)(nil)
	_ expr.PropertyAccess              = (*Binding)(nil)
)

func New(ast expr.Node, target Target, mode Mode, locator *observation.Locator, opts ...Option) *Binding {
	o := buildOptions(opts)
	b := &Binding{
		ast:         ast,
		target:      target,
		mode:        mode,
		locator:     locator,
		sched:       locator.Scheduler(),
		opts:        o,
		logger:      o.logger,
		observers:   mapset.NewThreadUnsafeSet[observation.Observer](),
		collections: mapset.NewThreadUnsafeSet[observation.CollectionObserver](),
	}
	b.listener = &targetListener{b: b}
	return b
}

func (b *Binding) String() string      { return b.ast.String() }
func (b *Binding) Expr() expr.Node     { return b.ast }
func (b *Binding) Target() Target      { return b.target }
func (b *Binding) Mode() Mode          { return b.mode }
func (b *Binding) State() State        { return b.state }
func (b *Binding) IsBound() bool       { return b.state != Unbound }
func (b *Binding) Scope() *scope.Scope { return b.scope }

// Value is the result of the last successful evaluation.
func (b *Binding) Value() any { return b.value }

// Evaluations counts forward evaluations since creation.
func (b *Binding) Evaluations() int { return b.evaluations }

// ObserverCount is the number of property and collection observers the
// last evaluation connected.
func (b *Binding) ObserverCount() int {
	return b.observers.Cardinality() + b.collections.Cardinality()
}

// Bind evaluates against s and writes the target synchronously. Binding
// again to the same scope is a no-op; a different scope rebinds.
func (b *Binding) Bind(s *scope.Scope) error {
	if s == nil {
		return scope.ErrNilScope
	}
	if b.state != Unbound {
		if b.scope == s {
			return nil
		}
		b.Unbind()
	}
	b.scope = s
	b.state = Bound

	switch {
	case b.mode == OneTime:
		b.evaluations++
		v, err := expr.Evaluate(b.ast, s, b)
		if err != nil {
			b.opts.reporter.Report(b, err)
			break
		}
		b.value = v
		b.writeTarget(v)
	case b.mode.toView():
		if v, ok := b.refresh(); ok {
			b.writeTarget(v)
		}
	}

	if b.mode.fromView() {
		if to, ok := b.target.(TargetObserver); ok {
			to.Subscribe(b.listener)
		}
	}
	b.logger.Debug("binding bound", "expr", b.String(), "mode", b.mode.String())
	return nil
}

// Unbind severs every subscription. A render task already queued stays
// queued and does nothing once it sees the binding unbound.
func (b *Binding) Unbind() {
	if b.state == Unbound {
		return
	}
	b.state = Unbound
	b.disconnect()
	if to, ok := b.target.(TargetObserver); ok && b.mode.fromView() {
		to.Unsubscribe(b.listener)
	}
	b.scope = nil
	b.logger.Debug("binding unbound", "expr", b.String())
}

// HandleChange re-evaluates after one of the connected observers changed.
func (b *Binding) HandleChange(_, _ any) { b.onSourceChange() }

func (b *Binding) HandleCollectionChange([]observation.ChangeRecord) { b.onSourceChange() }

func (b *Binding) onSourceChange() {
	if b.state != Bound || !b.mode.toView() {
		return
	}
	v, ok := b.refresh()
	if !ok {
		return
	}
	b.queueRender(v)
}

// refresh replaces the connected set with the dependencies of a fresh
// evaluation. On error the partially connected set is kept so a later fix
// to the source still triggers a new evaluation.
func (b *Binding) refresh() (any, bool) {
	b.disconnect()
	b.state = Evaluating
	defer func() {
		if b.state == Evaluating {
			b.state = Bound
		}
	}()
	b.evaluations++
	v, err := expr.Connect(b.ast, b.scope, b)
	if err != nil {
		b.opts.reporter.Report(b, err)
		return nil, false
	}
	b.value = v
	return v, true
}

func (b *Binding) disconnect() {
	b.observers.Each(func(o observation.Observer) bool {
		o.Unsubscribe(b)
		return false
	})
	b.observers.Clear()
	b.collections.Each(func(c observation.CollectionObserver) bool {
		c.UnsubscribeCollection(b)
		return false
	})
	b.collections.Clear()
}

func (b *Binding) queueRender(v any) {
	if b.render != nil && b.render.Status() == scheduler.TaskPending {
		b.pendingValue = v
		return
	}
	if b.hasPushed && observation.SameValue(v, b.pushed) {
		return
	}
	b.pendingValue = v
	b.render = b.sched.QueueRenderTask(b.flushRender)
}

func (b *Binding) flushRender() {
	b.render = nil
	v := b.pendingValue
	b.pendingValue = nil
	if b.state == Unbound {
		return
	}
	if b.hasPushed && observation.SameValue(v, b.pushed) {
		return
	}
	b.writeTarget(v)
}

func (b *Binding) writeTarget(v any) {
	b.pushed, b.hasPushed = v, true
	if err := b.target.SetValue(v); err != nil {
		b.opts.reporter.Report(b, err)
	}
}

// UpdateSource assigns a view-side value into the source. The source's own
// observers then drive the forward cycle; the target already shows v, so it
// is not written back unless a converter normalizes it.
func (b *Binding) UpdateSource(v any) error {
	if b.state == Unbound {
		return ErrNotBound
	}
	if !b.mode.fromView() {
		return ErrNotTwoWay
	}
	if err := expr.Assign(b.ast, b.scope, v, b); err != nil {
		b.opts.reporter.Report(b, err)
		return err
	}
	b.pushed, b.hasPushed = v, true
	return nil
}

// Observe implements expr.Connector.
func (b *Binding) Observe(obj any, key string) {
	o, err := b.locator.GetObserver(obj, key)
	if err != nil {
		return
	}
	if b.observers.Add(o) {
		o.Subscribe(b)
	}
}

// ObserveCollection implements expr.Connector.
func (b *Binding) ObserveCollection(coll any) {
	c, err := b.locator.GetCollectionObserver(coll)
	if err != nil {
		return
	}
	if b.collections.Add(c) {
		c.SubscribeCollection(b)
	}
}

// ValueConverter implements expr.Resources.
func (b *Binding) ValueConverter(name string) (expr.ValueConverter, bool) {
	return b.opts.ValueConverter(name)
}

// GetProperty implements expr.PropertyAccess through the locator, so
// computed properties read as their derived values.
func (b *Binding) GetProperty(obj any, key string) any {
	return b.locator.GetValue(obj, key)
}

func (b *Binding) SetProperty(obj any, key string, v any) error {
	return b.locator.SetValue(obj, key, v)
}

type targetListener struct{ b *Binding }

func (l *targetListener) HandleChange(newValue, _ any) {
	if l.b.state != Bound {
		return
	}
	l.b.UpdateSource(newValue)
}
