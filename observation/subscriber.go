package observation

// Subscriber receives property change notifications.
type Subscriber interface {
	HandleChange(newValue, oldValue any)
}

// CollectionSubscriber receives the coalesced records of one turn.
type CollectionSubscriber interface {
	HandleCollectionChange(records []ChangeRecord)
}

// SubscriberFunc adapts a plain function to Subscriber. Funcs are not
// comparable, so wrap it in a pointer before subscribing.
type SubscriberFunc func(newValue, oldValue any)

func (f *SubscriberFunc) HandleChange(newValue, oldValue any) { (*f)(newValue, oldValue) }

// Observer tracks one observed value and its subscribers.
type Observer interface {
	GetValue() any
	Subscribe(s Subscriber)
	Unsubscribe(s Subscriber)
	SubscriberCount() int
}

// Accessor reads and writes one property without observing it.
type Accessor interface {
	GetValue() any
	SetValue(v any) error
}

// PropertyObserver is an Observer that can also write its property.
type PropertyObserver interface {
	Observer
	SetValue(v any) error
}

// CollectionObserver tracks the mutations of an observable collection.
type CollectionObserver interface {
	Collection() any
	SubscribeCollection(s CollectionSubscriber)
	UnsubscribeCollection(s CollectionSubscriber)
	SubscriberCount() int
	LengthObserver() *CollectionLengthObserver
}

type subscribers struct {
	subs []Subscriber
}

func (l *subscribers) add(s Subscriber) bool {
	if s == nil {
		return false
	}
	for _, existing := range l.subs {
		if existing == s {
			return false
		}
	}
	l.subs = append(l.subs, s)
	return true
}

func (l *subscribers) remove(s Subscriber) bool {
	for i, existing := range l.subs {
		if existing == s {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			return true
		}
	}
	return false
}

func (l *subscribers) len() int { return len(l.subs) }

// notify works on a copy so handlers may subscribe or unsubscribe.
func (l *subscribers) notify(newValue, oldValue any) {
	if len(l.subs) == 0 {
		return
	}
	subs := make([]Subscriber, len(l.subs))
	copy(subs, l.subs)
	for _, s := range subs {
		s.HandleChange(newValue, oldValue)
	}
}

type collectionSubscribers struct {
	subs []CollectionSubscriber
}

func (l *collectionSubscribers) add(s CollectionSubscriber) bool {
	if s == nil {
		return false
	}
	for _, existing := range l.subs {
		if existing == s {
			return false
		}
	}
	l.subs = append(l.subs, s)
	return true
}

func (l *collectionSubscribers) remove(s CollectionSubscriber) bool {
	for i, existing := range l.subs {
		if existing == s {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			return true
		}
	}
	return false
}

func (l *collectionSubscribers) len() int { return len(l.subs) }

func (l *collectionSubscribers) notify(records []ChangeRecord) {
	subs := make([]CollectionSubscriber, len(l.subs))
	copy(subs, l.subs)
	for _, s := range subs {
		s.HandleCollectionChange(records)
	}
}
