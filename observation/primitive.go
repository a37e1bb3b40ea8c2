package observation

// PrimitiveObserver stands in for properties of values that cannot change
// in place, such as strings, numbers, booleans or struct values. It reads
// through to the value and never notifies.
type PrimitiveObserver struct {
	obj any
	key string
}

var _ PropertyObserver = (*PrimitiveObserver)(nil)

func NewPrimitiveObserver(obj any, key string) *PrimitiveObserver {
	return &PrimitiveObserver{obj: obj, key: key}
}

func (o *PrimitiveObserver) GetValue() any          { return GetProperty(o.obj, o.key) }
func (o *PrimitiveObserver) SetValue(any) error     { return ErrReadOnly }
func (o *PrimitiveObserver) Subscribe(Subscriber)   {}
func (o *PrimitiveObserver) Unsubscribe(Subscriber) {}
func (o *PrimitiveObserver) SubscriberCount() int   { return 0 }

// propertyAccessor reads and writes without observing.
type propertyAccessor struct {
	obj any
	key string
}

func (a *propertyAccessor) GetValue() any        { return GetProperty(a.obj, a.key) }
func (a *propertyAccessor) SetValue(v any) error { return SetProperty(a.obj, a.key, v) }
