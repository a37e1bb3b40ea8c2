package observation

import "strings"

// ComputedGetter derives a value from the object it is registered on.
type ComputedGetter func(obj any) any

type computedDef struct {
	get  ComputedGetter
	set  func(obj, v any) error
	deps []string
}

// ComputedObserver recomputes a derived property whenever one of its
// declared dependencies changes, and notifies when the result differs. A
// dependency written "items[]" tracks the contents of the collection held
// in items, not just the property itself.
//
// Dependency notifications only mark the observer; the locator's
// propagation pass recomputes it at most once per pass, after its own
// computed dependencies have settled.
type ComputedObserver struct {
	locator *Locator
	obj     any
	key     string
	def     *computedDef

	subs      subscribers
	deps      []Observer
	colls     []CollectionObserver
	value     any
	listening bool
	flags     computedFlags
}

var _ PropertyObserver = (*ComputedObserver)(nil)

func (o *ComputedObserver) GetValue() any {
	if o.listening {
		if o.flags&(fDirty|fPending) != 0 {
			o.update()
		}
		return o.value
	}
	return o.def.get(o.obj)
}

func (o *ComputedObserver) SetValue(v any) error {
	if o.def.set == nil {
		return ErrReadOnly
	}
	return o.def.set(o.obj, v)
}

func (o *ComputedObserver) Subscribe(s Subscriber) {
	if o.subs.add(s) && o.subs.len() == 1 {
		o.listen()
	}
}

func (o *ComputedObserver) Unsubscribe(s Subscriber) {
	if o.subs.remove(s) && o.subs.len() == 0 {
		o.stop()
	}
}

func (o *ComputedObserver) SubscriberCount() int { return o.subs.len() }

func (o *ComputedObserver) HandleChange(any, any) { o.locator.graph.propagate(o) }

func (o *ComputedObserver) HandleCollectionChange([]ChangeRecord) { o.locator.graph.propagate(o) }

func (o *ComputedObserver) listen() {
	o.listening = true
	o.value = o.def.get(o.obj)
	for _, dep := range o.def.deps {
		name, collection := strings.CutSuffix(dep, "[]")
		obs, err := o.locator.GetObserver(o.obj, name)
		if err != nil {
			continue
		}
		obs.Subscribe(o)
		o.deps = append(o.deps, obs)
		if !collection {
			continue
		}
		if coll, err := o.locator.GetCollectionObserver(obs.GetValue()); err == nil {
			coll.SubscribeCollection(o)
			o.colls = append(o.colls, coll)
		}
	}
}

func (o *ComputedObserver) stop() {
	for _, d := range o.deps {
		d.Unsubscribe(o)
	}
	for _, c := range o.colls {
		c.UnsubscribeCollection(o)
	}
	o.deps, o.colls = nil, nil
	o.listening = false
	o.flags &^= fDirty | fPending
}

func (o *ComputedObserver) recompute() {
	// a collection dependency may now hold a different collection
	if len(o.colls) > 0 {
		o.stop()
		old := o.value
		o.listen()
		o.notifyIfChanged(old)
		return
	}
	old := o.value
	o.value = o.def.get(o.obj)
	o.notifyIfChanged(old)
}

func (o *ComputedObserver) notifyIfChanged(old any) {
	if SameValue(o.value, old) {
		return
	}
	o.subs.notify(o.value, old)
}
