package observation

import "github.com/delaneyj/bindparty/scheduler"

// SetterObserver intercepts writes to one Object property. A write is
// applied immediately; subscribers hear about it once per turn, from a
// microtask, with the final value and the value before the first write of
// the turn. Writes that end where they started notify nobody.
type SetterObserver struct {
	obj   *Object
	key   string
	sched *scheduler.Scheduler
	subs  subscribers

	queued   bool
	original any
}

var _ PropertyObserver = (*SetterObserver)(nil)

func newSetterObserver(obj *Object, key string, sched *scheduler.Scheduler) *SetterObserver {
	return &SetterObserver{obj: obj, key: key, sched: sched}
}

func (o *SetterObserver) Object() *Object { return o.obj }
func (o *SetterObserver) Key() string     { return o.key }

func (o *SetterObserver) GetValue() any {
	return o.obj.values[o.key]
}

func (o *SetterObserver) SetValue(v any) error {
	o.obj.Set(o.key, v)
	return nil
}

func (o *SetterObserver) Subscribe(s Subscriber)   { o.subs.add(s) }
func (o *SetterObserver) Unsubscribe(s Subscriber) { o.subs.remove(s) }
func (o *SetterObserver) SubscriberCount() int     { return o.subs.len() }

// changed records a write the Object already applied.
func (o *SetterObserver) changed(old any) {
	if o.subs.len() == 0 || o.queued {
		return
	}
	o.queued = true
	o.original = old
	o.sched.QueueMicroTask(o.flush)
}

func (o *SetterObserver) flush() {
	o.queued = false
	original := o.original
	o.original = nil
	current := o.GetValue()
	if SameValue(current, original) {
		return
	}
	o.subs.notify(current, original)
}
