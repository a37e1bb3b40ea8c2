package observation

import "github.com/delaneyj/bindparty/scheduler"

// collectionObserver coalesces the records of one turn and hands them to
// collection subscribers in a single call from a microtask.
type collectionObserver struct {
	sched   *scheduler.Scheduler
	subs    collectionSubscribers
	records []ChangeRecord
	queued  bool
	length  *CollectionLengthObserver
}

func (o *collectionObserver) SubscribeCollection(s CollectionSubscriber) { o.subs.add(s) }
func (o *collectionObserver) UnsubscribeCollection(s CollectionSubscriber) {
	o.subs.remove(s)
}
func (o *collectionObserver) SubscriberCount() int { return o.subs.len() }

// Pending returns the records collected so far in this turn.
func (o *collectionObserver) Pending() []ChangeRecord { return o.records }

func (o *collectionObserver) record(r ChangeRecord) {
	if o.subs.len() == 0 {
		return
	}
	o.records = append(o.records, r)
	if o.queued {
		return
	}
	o.queued = true
	o.sched.QueueMicroTask(o.flush)
}

func (o *collectionObserver) flush() {
	o.queued = false
	records := o.records
	o.records = nil
	if len(records) == 0 {
		return
	}
	o.subs.notify(records)
}

type ArrayObserver struct {
	collectionObserver
	array *Array
}

func (o *ArrayObserver) Collection() any { return o.array }

func (o *ArrayObserver) LengthObserver() *CollectionLengthObserver {
	if o.length == nil {
		o.length = newLengthObserver(o, o.array.Len, func(v any) error {
			return setArrayLength(o.array, v)
		})
	}
	return o.length
}

type MapObserver struct {
	collectionObserver
	m *Map
}

func (o *MapObserver) Collection() any { return o.m }

func (o *MapObserver) LengthObserver() *CollectionLengthObserver {
	if o.length == nil {
		o.length = newLengthObserver(o, o.m.Len, nil)
	}
	return o.length
}

type SetObserver struct {
	collectionObserver
	set *Set
}

func (o *SetObserver) Collection() any { return o.set }

func (o *SetObserver) LengthObserver() *CollectionLengthObserver {
	if o.length == nil {
		o.length = newLengthObserver(o, o.set.Len, nil)
	}
	return o.length
}

var (
	_ CollectionObserver = (*ArrayObserver)(nil)
	_ CollectionObserver = (*MapObserver)(nil)
	_ CollectionObserver = (*SetObserver)(nil)
)

// Collections keep one observer per scheduler, so every locator hears
// about a mutation on its own scheduler.

func observeArray(a *Array, sched *scheduler.Scheduler) *ArrayObserver {
	for _, obs := range a.observers {
		if obs.sched == sched {
			return obs
		}
	}
	obs := &ArrayObserver{collectionObserver: collectionObserver{sched: sched}, array: a}
	a.observers = append(a.observers, obs)
	return obs
}

func observeMap(m *Map, sched *scheduler.Scheduler) *MapObserver {
	for _, obs := range m.observers {
		if obs.sched == sched {
			return obs
		}
	}
	obs := &MapObserver{collectionObserver: collectionObserver{sched: sched}, m: m}
	m.observers = append(m.observers, obs)
	return obs
}

func observeSet(s *Set, sched *scheduler.Scheduler) *SetObserver {
	for _, obs := range s.observers {
		if obs.sched == sched {
			return obs
		}
	}
	obs := &SetObserver{collectionObserver: collectionObserver{sched: sched}, set: s}
	s.observers = append(s.observers, obs)
	return obs
}

// CollectionLengthObserver observes the length of an array or the size
// of a map or set. It listens to its collection only while it has
// subscribers.
type CollectionLengthObserver struct {
	coll    CollectionObserver
	lenFn   func() int
	setLen  func(v any) error
	subs    subscribers
	current int
}

var _ PropertyObserver = (*CollectionLengthObserver)(nil)

func newLengthObserver(coll CollectionObserver, lenFn func() int, setLen func(any) error) *CollectionLengthObserver {
	return &CollectionLengthObserver{coll: coll, lenFn: lenFn, setLen: setLen}
}

func (o *CollectionLengthObserver) GetValue() any { return o.lenFn() }

// SetValue truncates or pads an array. Map and set sizes are read-only.
func (o *CollectionLengthObserver) SetValue(v any) error {
	if o.setLen == nil {
		return ErrReadOnly
	}
	return o.setLen(v)
}

func (o *CollectionLengthObserver) Subscribe(s Subscriber) {
	if o.subs.add(s) && o.subs.len() == 1 {
		o.current = o.lenFn()
		o.coll.SubscribeCollection(o)
	}
}

func (o *CollectionLengthObserver) Unsubscribe(s Subscriber) {
	if o.subs.remove(s) && o.subs.len() == 0 {
		o.coll.UnsubscribeCollection(o)
	}
}

func (o *CollectionLengthObserver) SubscriberCount() int { return o.subs.len() }

func (o *CollectionLengthObserver) HandleCollectionChange([]ChangeRecord) {
	n := o.lenFn()
	if n == o.current {
		return
	}
	old := o.current
	o.current = n
	o.subs.notify(n, old)
}
