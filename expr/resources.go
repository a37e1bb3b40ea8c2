package expr

// ValueConverter transforms values between the model and the view.
type ValueConverter interface {
	ToView(value any, args ...any) (any, error)
	FromView(value any, args ...any) (any, error)
}

// ConverterFuncs builds a ValueConverter from functions. A nil direction
// passes values through.
type ConverterFuncs struct {
	To   func(value any, args ...any) (any, error)
	From func(value any, args ...any) (any, error)
}

func (c ConverterFuncs) ToView(value any, args ...any) (any, error) {
	if c.To == nil {
		return value, nil
	}
	return c.To(value, args...)
}

func (c ConverterFuncs) FromView(value any, args ...any) (any, error) {
	if c.From == nil {
		return value, nil
	}
	return c.From(value, args...)
}

// Resources resolves named resources used by expressions.
type Resources interface {
	ValueConverter(name string) (ValueConverter, bool)
}

// Converters is a Resources backed by a map.
type Converters map[string]ValueConverter

func (c Converters) ValueConverter(name string) (ValueConverter, bool) {
	vc, ok := c[name]
	return vc, ok
}

// Connector is what Connect reports dependencies to while evaluating.
type Connector interface {
	Resources
	Observe(obj any, key string)
	ObserveCollection(coll any)
}

// PropertyAccess is an optional Resources extension that takes over
// property reads and writes, for example to honor computed properties
// registered with an observer locator.
type PropertyAccess interface {
	GetProperty(obj any, key string) any
	SetProperty(obj any, key string, v any) error
}
