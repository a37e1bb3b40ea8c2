package observation

import (
	"fmt"
	"reflect"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// GetProperty reads key from obj. It understands the observable wrappers
// and their methods, string-keyed Go maps, slices and arrays (index and
// "length"), struct fields and methods by exact or capitalized name, and
// the "length" of a string. Anything unresolved reads as nil.
func GetProperty(obj any, key string) any {
	switch o := obj.(type) {
	case nil:
		return nil
	case *Object:
		return o.Get(key)
	case *Array:
		if key == "length" {
			return o.Len()
		}
		if i, err := strconv.Atoi(key); err == nil {
			return o.At(i)
		}
	case *Map:
		if key == "size" {
			return o.Len()
		}
		if v, ok := o.Get(key); ok {
			return v
		}
	case *Set:
		if key == "size" {
			return o.Len()
		}
	case string:
		if key == "length" {
			return utf8.RuneCountInString(o)
		}
		return nil
	case map[string]any:
		return o[key]
	}

	v, ok := lookup(reflect.ValueOf(obj), key)
	if !ok {
		return nil
	}
	return v.Interface()
}

// GetKeyed reads obj[key] for an arbitrary key value, used for indexed
// access.
func GetKeyed(obj, key any) any {
	switch o := obj.(type) {
	case *Map:
		v, _ := o.Get(key)
		return v
	case *Array:
		if i, ok := toInt(key); ok {
			return o.At(i)
		}
	}
	if s, ok := key.(string); ok {
		return GetProperty(obj, s)
	}
	if i, ok := toInt(key); ok {
		return GetProperty(obj, strconv.Itoa(i))
	}
	return nil
}

// SetProperty writes key on obj. Values are converted to the Go type of
// the destination where a lossless-enough conversion exists.
func SetProperty(obj any, key string, value any) error {
	switch o := obj.(type) {
	case nil:
		return fmt.Errorf("%w: %q on nil", ErrNotSettable, key)
	case *Object:
		o.Set(key, value)
		return nil
	case *Array:
		if key == "length" {
			return setArrayLength(o, value)
		}
		i, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("%w: %q on array", ErrNotSettable, key)
		}
		return o.SetAt(i, value)
	case *Map:
		o.Set(key, value)
		return nil
	case map[string]any:
		o[key] = value
		return nil
	}

	rv := reflect.ValueOf(obj)
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() || rv.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%w: %q on %T", ErrNotSettable, key, obj)
		}
		val, err := convertTo(value, rv.Type().Elem())
		if err != nil {
			return err
		}
		rv.SetMapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()), val)
		return nil
	case reflect.Slice:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= rv.Len() {
			return fmt.Errorf("%w: %q on %T", ErrNotSettable, key, obj)
		}
		val, err := convertTo(value, rv.Type().Elem())
		if err != nil {
			return err
		}
		rv.Index(i).Set(val)
		return nil
	}

	field, ok := structField(rv, key)
	if !ok || !field.CanSet() {
		return fmt.Errorf("%w: %q on %T", ErrNotSettable, key, obj)
	}
	val, err := convertTo(value, field.Type())
	if err != nil {
		return err
	}
	field.Set(val)
	return nil
}

func setArrayLength(a *Array, value any) error {
	n, ok := toInt(value)
	if !ok || n < 0 {
		return fmt.Errorf("%w: length %v", ErrTypeMismatch, value)
	}
	if cur := a.Len(); n < cur {
		a.Splice(n, cur-n)
	} else if n > cur {
		a.Push(make([]any, n-cur)...)
	}
	return nil
}

func lookup(rv reflect.Value, key string) (reflect.Value, bool) {
	for rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return reflect.Value{}, false
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		v := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		return v, v.IsValid()
	case reflect.Slice, reflect.Array:
		if key == "length" {
			return reflect.ValueOf(rv.Len()), true
		}
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= rv.Len() {
			return reflect.Value{}, false
		}
		return rv.Index(i), true
	}

	if field, ok := structField(rv, key); ok {
		return field, true
	}
	m := method(rv, key)
	return m, m.IsValid()
}

func structField(rv reflect.Value, key string) (reflect.Value, bool) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	for _, name := range candidateNames(key) {
		sf, ok := rv.Type().FieldByName(name)
		if !ok || !sf.IsExported() {
			continue
		}
		return rv.FieldByIndex(sf.Index), true
	}
	return reflect.Value{}, false
}

func method(rv reflect.Value, key string) reflect.Value {
	for _, name := range candidateNames(key) {
		if m := rv.MethodByName(name); m.IsValid() {
			return m
		}
		if rv.Kind() == reflect.Pointer && !rv.IsNil() {
			if m := rv.Elem().MethodByName(name); m.IsValid() {
				return m
			}
		}
	}
	return reflect.Value{}
}

// candidateNames maps an expression identifier to Go identifiers:
// "name" also tries "Name".
func candidateNames(key string) []string {
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return []string{key}
	}
	return []string{key, string(unicode.ToUpper(r)) + key[size:]}
}

func convertTo(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(value)
	switch {
	case v.Type().AssignableTo(t):
		return v, nil
	case isNumber(v.Kind()) && isNumber(t.Kind()):
		return v.Convert(t), nil
	case v.Kind() == reflect.String && t.Kind() == reflect.String:
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: cannot use %T as %s", ErrTypeMismatch, value, t)
}

func isNumber(k reflect.Kind) bool {
	return (k >= reflect.Int && k <= reflect.Uint64) || k == reflect.Float32 || k == reflect.Float64
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	rv := reflect.ValueOf(v)
	switch {
	case !rv.IsValid():
		return 0, false
	case rv.CanInt():
		return int(rv.Int()), true
	case rv.CanUint():
		return int(rv.Uint()), true
	case rv.CanFloat():
		f := rv.Float()
		if f != float64(int(f)) {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}
