package observation

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"unsafe"

	"github.com/delaneyj/bindparty/scheduler"
)

var ErrNilTarget = errors.New("observation: cannot observe a property of nil")

// ObserverAdapter lets callers supply observers for their own types. The
// first adapter that reports ok wins.
type ObserverAdapter interface {
	GetObserver(l *Locator, obj any, key string) (obs Observer, ok bool)
}

// AdapterFunc adapts a function to ObserverAdapter.
type AdapterFunc func(l *Locator, obj any, key string) (Observer, bool)

func (f AdapterFunc) GetObserver(l *Locator, obj any, key string) (Observer, bool) {
	return f(l, obj, key)
}

type identity struct {
	typ reflect.Type
	ptr unsafe.Pointer
	key string
}

// Locator hands out observers, creating each one on first request and
// returning the same instance for the same (object, key) afterwards.
//
// Dispatch order: collection length/size, computed registrations,
// adapters, Object properties (SetterObserver), then dirty checking for
// anything else addressable. Values that cannot change in place get a
// PrimitiveObserver.
type Locator struct {
	sched    *scheduler.Scheduler
	logger   *slog.Logger
	dirty    *DirtyChecker
	graph    *propagation
	adapters []ObserverAdapter

	computedByType   map[reflect.Type]map[string]*computedDef
	computedByObject map[*Object]map[string]*computedDef
	observers        map[identity]Observer
}

type LocatorOption func(*Locator)

func WithLogger(l *slog.Logger) LocatorOption {
	return func(loc *Locator) {
		if l != nil {
			loc.logger = l
		}
	}
}

func WithDirtyCheckPolicy(p DirtyCheckPolicy) LocatorOption {
	return func(loc *Locator) {
		loc.dirty.logger = loc.logger
		loc.dirty.SetPolicy(p)
	}
}

func WithAdapter(a ObserverAdapter) LocatorOption {
	return func(loc *Locator) { loc.AddAdapter(a) }
}

func NewLocator(sched *scheduler.Scheduler, opts ...LocatorOption) *Locator {
	l := &Locator{
		sched:            sched,
		logger:           slog.Default(),
		computedByType:   map[reflect.Type]map[string]*computedDef{},
		computedByObject: map[*Object]map[string]*computedDef{},
		observers:        map[identity]Observer{},
	}
	l.dirty = NewDirtyChecker(sched, DefaultDirtyCheckPolicy(), nil)
	l.graph = newPropagation(sched)
	for _, opt := range opts {
		opt(l)
	}
	l.dirty.logger = l.logger
	return l
}

func (l *Locator) Scheduler() *scheduler.Scheduler { return l.sched }
func (l *Locator) DirtyChecker() *DirtyChecker     { return l.dirty }
func (l *Locator) Logger() *slog.Logger            { return l.logger }

func (l *Locator) AddAdapter(a ObserverAdapter) {
	if a != nil {
		l.adapters = append(l.adapters, a)
	}
}

// RegisterComputed declares key on every value of sample's type (or, for
// an *Object sample, on that object only) as derived by get from deps.
func (l *Locator) RegisterComputed(sample any, key string, get ComputedGetter, deps ...string) {
	l.registerComputed(sample, key, &computedDef{get: get, deps: deps})
}

// RegisterComputedSetter is RegisterComputed for a property that can also
// be written.
func (l *Locator) RegisterComputedSetter(sample any, key string, get ComputedGetter, set func(obj, v any) error, deps ...string) {
	l.registerComputed(sample, key, &computedDef{get: get, set: set, deps: deps})
}

func (l *Locator) registerComputed(sample any, key string, def *computedDef) {
	if o, ok := sample.(*Object); ok {
		if l.computedByObject[o] == nil {
			l.computedByObject[o] = map[string]*computedDef{}
		}
		l.computedByObject[o][key] = def
		return
	}
	t := reflect.TypeOf(sample)
	if l.computedByType[t] == nil {
		l.computedByType[t] = map[string]*computedDef{}
	}
	l.computedByType[t][key] = def
}

func (l *Locator) computedFor(obj any, key string) *computedDef {
	if o, ok := obj.(*Object); ok {
		if def := l.computedByObject[o][key]; def != nil {
			return def
		}
	}
	return l.computedByType[reflect.TypeOf(obj)][key]
}

// GetObserver returns the observer for key on obj.
func (l *Locator) GetObserver(obj any, key string) (Observer, error) {
	if obj == nil {
		return nil, fmt.Errorf("%w: %q", ErrNilTarget, key)
	}

	switch o := obj.(type) {
	case *Array:
		if key == "length" {
			return observeArray(o, l.sched).LengthObserver(), nil
		}
	case *Map:
		if key == "size" {
			return observeMap(o, l.sched).LengthObserver(), nil
		}
	case *Set:
		if key == "size" {
			return observeSet(o, l.sched).LengthObserver(), nil
		}
	}

	id, addressable := identityOf(obj, key)
	if addressable {
		if obs, ok := l.observers[id]; ok {
			return obs, nil
		}
	}

	if def := l.computedFor(obj, key); def != nil {
		obs := &ComputedObserver{locator: l, obj: obj, key: key, def: def}
		if addressable {
			l.observers[id] = obs
		}
		return obs, nil
	}

	for _, a := range l.adapters {
		if obs, ok := a.GetObserver(l, obj, key); ok && obs != nil {
			if addressable {
				l.observers[id] = obs
			}
			return obs, nil
		}
	}

	if o, ok := obj.(*Object); ok {
		return l.setterObserver(o, key), nil
	}

	if !addressable {
		return NewPrimitiveObserver(obj, key), nil
	}

	l.logger.Debug("observing through dirty checking",
		"type", fmt.Sprintf("%T", obj),
		"key", key,
	)
	obs := &DirtyCheckProperty{checker: l.dirty, obj: obj, key: key}
	l.observers[id] = obs
	return obs, nil
}

func (l *Locator) setterObserver(o *Object, key string) *SetterObserver {
	return o.observer(key, l.sched)
}

// GetAccessor returns something that reads and writes key on obj without
// installing an observer.
func (l *Locator) GetAccessor(obj any, key string) Accessor {
	if id, ok := identityOf(obj, key); ok {
		if acc, ok := l.observers[id].(Accessor); ok {
			return acc
		}
	}
	if def := l.computedFor(obj, key); def != nil && def.set != nil {
		return &ComputedObserver{locator: l, obj: obj, key: key, def: def}
	}
	return &propertyAccessor{obj: obj, key: key}
}

// GetValue reads key on obj, honoring computed properties registered on
// the locator.
func (l *Locator) GetValue(obj any, key string) any {
	if obj == nil {
		return nil
	}
	if id, ok := identityOf(obj, key); ok {
		if obs, ok := l.observers[id].(*ComputedObserver); ok {
			return obs.GetValue()
		}
	}
	if def := l.computedFor(obj, key); def != nil {
		return def.get(obj)
	}
	return GetProperty(obj, key)
}

// SetValue writes key on obj. Computed properties go through their setter
// and are ErrReadOnly without one.
func (l *Locator) SetValue(obj any, key string, v any) error {
	if obj != nil {
		if def := l.computedFor(obj, key); def != nil {
			if def.set == nil {
				return ErrReadOnly
			}
			return def.set(obj, v)
		}
	}
	return SetProperty(obj, key, v)
}

// GetCollectionObserver returns the observer of an Array, Map or Set,
// installing it on first use.
func (l *Locator) GetCollectionObserver(coll any) (CollectionObserver, error) {
	switch c := coll.(type) {
	case *Array:
		return observeArray(c, l.sched), nil
	case *Map:
		return observeMap(c, l.sched), nil
	case *Set:
		return observeSet(c, l.sched), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrNotCollection, coll)
}

// Prune forgets memoized observers nobody subscribes to any more.
func (l *Locator) Prune() int {
	n := 0
	for id, obs := range l.observers {
		if obs.SubscriberCount() == 0 {
			delete(l.observers, id)
			n++
		}
	}
	return n
}

// Len is the number of memoized observers.
func (l *Locator) Len() int { return len(l.observers) }

func identityOf(obj any, key string) (identity, bool) {
	rv := reflect.ValueOf(obj)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map:
		if rv.IsNil() {
			return identity{}, false
		}
		return identity{typ: rv.Type(), ptr: rv.UnsafePointer(), key: key}, true
	}
	return identity{}, false
}
