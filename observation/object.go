package observation

import (
	"slices"
	"sort"

	"github.com/delaneyj/bindparty/scheduler"
)

// Object is an observable string-keyed property bag. Until a property is
// observed, reads and writes go straight to the bag. The first observation
// of a key installs a SetterObserver that from then on sees every write,
// whichever code path makes it. Each scheduler observing the key gets its
// own SetterObserver.
type Object struct {
	keys      []string
	values    map[string]any
	observers map[string][]*SetterObserver
}

// NewObject copies props into a new Object. Initial keys are sorted so
// iteration order does not depend on Go map order.
func NewObject(props map[string]any) *Object {
	o := &Object{
		values: make(map[string]any, len(props)),
	}
	for k, v := range props {
		o.keys = append(o.keys, k)
		o.values[k] = v
	}
	sort.Strings(o.keys)
	return o
}

func (o *Object) Get(key string) any {
	return o.values[key]
}

func (o *Object) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// Set writes a property, notifying through its SetterObservers if any are
// installed.
func (o *Object) Set(key string, v any) {
	observers := o.observers[key]
	if len(observers) == 0 {
		o.store(key, v)
		return
	}
	old, had := o.values[key], o.Has(key)
	if SameValue(old, v) && had {
		return
	}
	o.store(key, v)
	for _, obs := range observers {
		obs.changed(old)
	}
}

// Delete removes a property. An observed property reads as nil afterwards
// and its subscribers see the change.
func (o *Object) Delete(key string) {
	if !o.Has(key) {
		return
	}
	o.Set(key, nil)
	delete(o.values, key)
	if i := slices.Index(o.keys, key); i >= 0 {
		o.keys = slices.Delete(o.keys, i, i+1)
	}
}

// Keys returns the property names in insertion order.
func (o *Object) Keys() []string {
	return slices.Clone(o.keys)
}

func (o *Object) Len() int { return len(o.keys) }

// ToMap returns a shallow copy of the properties.
func (o *Object) ToMap() map[string]any {
	m := make(map[string]any, len(o.values))
	for k, v := range o.values {
		m[k] = v
	}
	return m
}

func (o *Object) store(key string, v any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// observer returns the SetterObserver for key on sched, installing it on
// first request.
func (o *Object) observer(key string, sched *scheduler.Scheduler) *SetterObserver {
	for _, obs := range o.observers[key] {
		if obs.sched == sched {
			return obs
		}
	}
	if o.observers == nil {
		o.observers = map[string][]*SetterObserver{}
	}
	obs := newSetterObserver(o, key, sched)
	o.observers[key] = append(o.observers[key], obs)
	return obs
}
