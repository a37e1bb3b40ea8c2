// Package scope resolves names for binding expressions.
//
// A Scope pairs a binding context (usually a view model) with an override
// context that holds locals and links to the parent scope. Scopes never
// change after creation; a new activation creates a new Scope. Name lookup
// stays at one level: reaching a parent takes an explicit ancestor count.
package scope

import (
	"errors"
	"fmt"

	"github.com/delaneyj/bindparty/observation"
)

var (
	ErrAncestorOutOfRange = errors.New("scope: ancestor out of range")
	ErrNilScope           = errors.New("scope: nil scope")
)

// OverrideContext holds the locals of one level and links to the level
// above it.
type OverrideContext struct {
	BindingContext any
	Parent         *OverrideContext
	Locals         *observation.Object
}

type Scope struct {
	BindingContext  any
	OverrideContext *OverrideContext
}

// New creates a root scope for bc.
func New(bc any) *Scope {
	return &Scope{
		BindingContext:  bc,
		OverrideContext: &OverrideContext{BindingContext: bc, Locals: observation.NewObject(nil)},
	}
}

// FromParent creates a child scope for bc below parent.
func FromParent(parent *Scope, bc any) *Scope {
	s := New(bc)
	if parent != nil {
		s.OverrideContext.Parent = parent.OverrideContext
	}
	return s
}

// WithLocals returns a scope at the same level, over the same binding
// context and parent, with locals added on top of the current ones.
func (s *Scope) WithLocals(locals map[string]any) *Scope {
	merged := s.OverrideContext.Locals.ToMap()
	for k, v := range locals {
		merged[k] = v
	}
	return &Scope{
		BindingContext: s.BindingContext,
		OverrideContext: &OverrideContext{
			BindingContext: s.BindingContext,
			Parent:         s.OverrideContext.Parent,
			Locals:         observation.NewObject(merged),
		},
	}
}

// Parent returns the scope one level up, or nil at the root.
func (s *Scope) Parent() *Scope {
	if s == nil || s.OverrideContext.Parent == nil {
		return nil
	}
	p := s.OverrideContext.Parent
	return &Scope{BindingContext: p.BindingContext, OverrideContext: p}
}

func (s *Scope) level(ancestor int) (*OverrideContext, error) {
	if s == nil {
		return nil, ErrNilScope
	}
	oc := s.OverrideContext
	for i := 0; i < ancestor; i++ {
		if oc.Parent == nil {
			return nil, fmt.Errorf("%w: %d levels up, only %d above", ErrAncestorOutOfRange, ancestor, i)
		}
		oc = oc.Parent
	}
	return oc, nil
}

// ContextFor returns the object that owns name ancestor levels up: the
// locals of that level when they define name, its binding context
// otherwise.
func (s *Scope) ContextFor(name string, ancestor int) (any, error) {
	oc, err := s.level(ancestor)
	if err != nil {
		return nil, err
	}
	if oc.Locals != nil && oc.Locals.Has(name) {
		return oc.Locals, nil
	}
	return oc.BindingContext, nil
}

// This returns the binding context ancestor levels up ($this, $parent).
func (s *Scope) This(ancestor int) (any, error) {
	oc, err := s.level(ancestor)
	if err != nil {
		return nil, err
	}
	return oc.BindingContext, nil
}

// Local reads a local of this level.
func (s *Scope) Local(name string) (any, bool) {
	if s == nil || s.OverrideContext.Locals == nil || !s.OverrideContext.Locals.Has(name) {
		return nil, false
	}
	return s.OverrideContext.Locals.Get(name), true
}

// Depth counts the levels above this scope.
func (s *Scope) Depth() int {
	n := 0
	for oc := s.OverrideContext.Parent; oc != nil; oc = oc.Parent {
		n++
	}
	return n
}
