package expr

import (
	"fmt"
	"reflect"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// invoke calls fn with args, converting numbers to the parameter types. A
// trailing error result is returned as the call's error; a function with
// no results yields nil.
func invoke(fn any, args []any) (any, error) {
	switch f := fn.(type) {
	case func(...any) any:
		return f(args...), nil
	case func(...any) (any, error):
		return f(args...)
	case func() any:
		return f(), nil
	}

	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, fmt.Errorf("%w: %T", ErrNotAFunction, fn)
	}
	t := rv.Type()

	in := make([]reflect.Value, 0, len(args))
	for i, a := range args {
		var pt reflect.Type
		switch {
		case t.IsVariadic() && i >= t.NumIn()-1:
			pt = t.In(t.NumIn() - 1).Elem()
		case i < t.NumIn():
			pt = t.In(i)
		default:
			continue
		}
		v, err := coerce(a, pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in = append(in, v)
	}
	for i := len(in); i < t.NumIn(); i++ {
		if t.IsVariadic() && i == t.NumIn()-1 {
			break
		}
		in = append(in, reflect.Zero(t.In(i)))
	}

	out := rv.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if t.Out(0) == errorType {
			return nil, asError(out[0])
		}
		return out[0].Interface(), nil
	default:
		if t.Out(len(out)-1) == errorType {
			return out[0].Interface(), asError(out[len(out)-1])
		}
		return out[0].Interface(), nil
	}
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

func coerce(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(a)
	switch {
	case v.Type().AssignableTo(t):
		return v, nil
	case v.Type().ConvertibleTo(t) && isNumeric(v.Kind()) && isNumeric(t.Kind()):
		return v.Convert(t), nil
	case t.Kind() == reflect.String && v.Kind() == reflect.String:
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: cannot use %T as %s", ErrInvalidOperand, a, t)
}

func isNumeric(k reflect.Kind) bool {
	return (k >= reflect.Int && k <= reflect.Uint64) || k == reflect.Float32 || k == reflect.Float64
}
