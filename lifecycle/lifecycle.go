// Package lifecycle coordinates bind, attach, detach, unbind and dispose
// for a tree of component controllers and the bindings they own.
package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/delaneyj/bindparty/observation"
	"github.com/delaneyj/bindparty/scheduler"
	"github.com/delaneyj/bindparty/scope"
)

type State int

const (
	Created State = iota
	Bound
	Attached
	Detached
	Unbound
	Disposed
)

var stateNames = [...]string{
	Created:  "created",
	Bound:    "bound",
	Attached: "attached",
	Detached: "detached",
	Unbound:  "unbound",
	Disposed: "disposed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

var ErrDisposed = errors.New("lifecycle: controller disposed")

// TransitionError is returned for a transition the current state does not
// allow.
type TransitionError struct {
	Controller string
	From, To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("lifecycle: %s cannot go from %s to %s", e.Controller, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	if e.From == Disposed {
		return ErrDisposed
	}
	return nil
}

// Bindable is implemented by binding.Binding and binding.ListenerBinding.
type Bindable interface {
	Bind(s *scope.Scope) error
	Unbind()
}

type Hook func(c *Controller)

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithViewModel gives the controller its own binding context. Children
// with a view model get a child scope; children without one share their
// parent's scope.
func WithViewModel(vm any) Option {
	return func(c *Controller) { c.viewModel = vm }
}

// Controller owns the bindings and child controllers of one component
// instance. Like the scheduler it is driven from a single goroutine.
type Controller struct {
	name      string
	viewModel any
	locator   *observation.Locator
	logger    *slog.Logger

	state    State
	scope    *scope.Scope
	parent   *Controller
	bindings []Bindable
	children []*Controller
	cleanups []func()

	onBound, onAttached, onDetached, onUnbound []Hook
}

func New(name string, locator *observation.Locator, opts ...Option) *Controller {
	c := &Controller{
		name:    name,
		locator: locator,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Name() string                    { return c.name }
func (c *Controller) State() State                    { return c.state }
func (c *Controller) Scope() *scope.Scope             { return c.scope }
func (c *Controller) Parent() *Controller             { return c.parent }
func (c *Controller) Children() []*Controller         { return c.children }
func (c *Controller) Bindings() []Bindable            { return c.bindings }
func (c *Controller) ViewModel() any                  { return c.viewModel }
func (c *Controller) Scheduler() *scheduler.Scheduler { return c.locator.Scheduler() }

func (c *Controller) OnBound(h Hook)    { c.onBound = append(c.onBound, h) }
func (c *Controller) OnAttached(h Hook) { c.onAttached = append(c.onAttached, h) }
func (c *Controller) OnDetached(h Hook) { c.onDetached = append(c.onDetached, h) }
func (c *Controller) OnUnbound(h Hook)  { c.onUnbound = append(c.onUnbound, h) }

// OnDispose registers a cleanup run once on Dispose, in registration order.
func (c *Controller) OnDispose(fn func()) { c.cleanups = append(c.cleanups, fn) }

// AddBinding adds a binding, binding it right away when the controller is
// already bound.
func (c *Controller) AddBinding(b Bindable) error {
	if c.state == Disposed {
		return ErrDisposed
	}
	c.bindings = append(c.bindings, b)
	if c.isBound() {
		return b.Bind(c.scope)
	}
	return nil
}

// AddChild attaches a child controller and brings it to this controller's
// state.
func (c *Controller) AddChild(child *Controller) error {
	if c.state == Disposed {
		return ErrDisposed
	}
	if child.parent != nil {
		return fmt.Errorf("lifecycle: %s already has parent %s", child.name, child.parent.name)
	}
	child.parent = c
	c.children = append(c.children, child)
	if !c.isBound() {
		return nil
	}
	if err := child.Bind(c.childScope(child)); err != nil {
		return err
	}
	if c.state == Attached {
		return child.Attach()
	}
	return nil
}

func (c *Controller) isBound() bool {
	return c.state == Bound || c.state == Attached || c.state == Detached
}

func (c *Controller) childScope(child *Controller) *scope.Scope {
	if child.viewModel == nil {
		return c.scope
	}
	return scope.FromParent(c.scope, child.viewModel)
}

// Bind binds every binding, then every child, then runs the bound hooks.
// A nil scope binds to the controller's own view model. Binding errors are
// joined; the controller still ends up bound.
func (c *Controller) Bind(s *scope.Scope) error {
	if c.state != Created && c.state != Unbound {
		return c.illegal(Bound)
	}
	if s == nil {
		s = scope.New(c.viewModel)
	}
	c.scope = s

	var errs []error
	for _, b := range c.bindings {
		if err := b.Bind(s); err != nil {
			errs = append(errs, err)
		}
	}
	for _, child := range c.children {
		if err := child.Bind(c.childScope(child)); err != nil {
			errs = append(errs, err)
		}
	}
	c.transition(Bound)
	runHooks(c, c.onBound)
	return errors.Join(errs...)
}

// Attach attaches children first, then runs this controller's attached
// hooks. Render tasks queued by the initial bind are not flushed here.
func (c *Controller) Attach() error {
	if c.state != Bound && c.state != Detached {
		return c.illegal(Attached)
	}
	for _, child := range c.children {
		if err := child.Attach(); err != nil {
			return err
		}
	}
	c.transition(Attached)
	runHooks(c, c.onAttached)
	return nil
}

// Detach leaves bindings connected; queued target writes still flush.
func (c *Controller) Detach() error {
	if c.state != Attached {
		return c.illegal(Detached)
	}
	for _, child := range c.children {
		if err := child.Detach(); err != nil {
			return err
		}
	}
	c.transition(Detached)
	runHooks(c, c.onDetached)
	return nil
}

// Unbind severs every binding of the tree. An attached controller is
// detached first.
func (c *Controller) Unbind() error {
	var errs []error
	switch c.state {
	case Attached:
		if err := c.Detach(); err != nil {
			errs = append(errs, err)
		}
	case Bound, Detached:
	default:
		return c.illegal(Unbound)
	}
	for _, child := range c.children {
		if err := child.Unbind(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, b := range c.bindings {
		b.Unbind()
	}
	c.scope = nil
	c.transition(Unbound)
	runHooks(c, c.onUnbound)
	return errors.Join(errs...)
}

// Dispose unbinds if needed, disposes children, runs the cleanups and
// prunes observers nobody subscribes to any more.
func (c *Controller) Dispose() error {
	if c.state == Disposed {
		return nil
	}
	var errs []error
	if c.isBound() {
		if err := c.Unbind(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, child := range c.children {
		if err := child.Dispose(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, fn := range c.cleanups {
		fn()
	}
	c.cleanups = nil
	c.bindings = nil
	c.children = nil
	c.transition(Disposed)
	if c.parent == nil && c.locator != nil {
		if n := c.locator.Prune(); n > 0 {
			c.logger.Debug("pruned observers", "controller", c.name, "count", n)
		}
	}
	return errors.Join(errs...)
}

// Settled returns a channel closed once the microtask and render queues
// are both empty. Call it from the goroutine driving the scheduler.
func (c *Controller) Settled() <-chan struct{} {
	return c.Scheduler().YieldQueues(scheduler.MicroTask, scheduler.Render)
}

func (c *Controller) transition(to State) {
	c.logger.Debug("lifecycle transition", "controller", c.name, "from", c.state.String(), "to", to.String())
	c.state = to
}

func (c *Controller) illegal(to State) error {
	return &TransitionError{Controller: c.name, From: c.state, To: to}
}

func runHooks(c *Controller, hooks []Hook) {
	for _, h := range hooks {
		h(c)
	}
}
