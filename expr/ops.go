package expr

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/delaneyj/bindparty/observation"
)

// Truthy is the boolean reading of a value: nil, false, zero numbers, NaN
// and the empty string are false, everything else is true.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case int:
		return x != 0
	case float64:
		return x != 0 && !math.IsNaN(x)
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return rv.Int() != 0
	case rv.CanUint():
		return rv.Uint() != 0
	case rv.CanFloat():
		f := rv.Float()
		return f != 0 && !math.IsNaN(f)
	case rv.Kind() == reflect.Pointer, rv.Kind() == reflect.Map, rv.Kind() == reflect.Slice, rv.Kind() == reflect.Func:
		return !rv.IsNil()
	}
	return true
}

// ToString renders a value for interpolation. nil renders as "".
func ToString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

type number struct {
	i       int64
	f       float64
	isFloat bool
}

func (n number) float() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

func (n number) value() any {
	if n.isFloat {
		return n.f
	}
	return int(n.i)
}

func toNumber(v any) (number, bool) {
	switch x := v.(type) {
	case int:
		return number{i: int64(x)}, true
	case float64:
		return number{f: x, isFloat: true}, true
	case bool, nil, string:
		return number{}, false
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return number{i: rv.Int()}, true
	case rv.CanUint():
		return number{i: int64(rv.Uint())}, true
	case rv.CanFloat():
		return number{f: rv.Float(), isFloat: true}, true
	}
	return number{}, false
}

func binary(op string, l, r any) (any, error) {
	switch op {
	case "==", "===":
		return equal(l, r), nil
	case "!=", "!==":
		return !equal(l, r), nil
	case "+":
		_, ls := l.(string)
		_, rs := r.(string)
		if ls || rs {
			return ToString(l) + ToString(r), nil
		}
		return arithmetic(op, l, r)
	case "-", "*", "/", "%":
		return arithmetic(op, l, r)
	case "<", ">", "<=", ">=":
		return compare(op, l, r)
	case "in":
		key, ok := l.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %T in", ErrInvalidOperand, l)
		}
		return hasProperty(r, key), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
}

func equal(l, r any) bool {
	ln, lok := toNumber(l)
	rn, rok := toNumber(r)
	if lok && rok {
		if ln.isFloat || rn.isFloat {
			return ln.float() == rn.float()
		}
		return ln.i == rn.i
	}
	return observation.SameValue(l, r)
}

func arithmetic(op string, l, r any) (any, error) {
	ln, lok := toNumber(l)
	rn, rok := toNumber(r)
	if !lok || !rok {
		return nil, fmt.Errorf("%w: %T %s %T", ErrInvalidOperand, l, op, r)
	}

	if !ln.isFloat && !rn.isFloat && op != "/" {
		a, b := ln.i, rn.i
		switch op {
		case "+":
			return int(a + b), nil
		case "-":
			return int(a - b), nil
		case "*":
			return int(a * b), nil
		case "%":
			if b == 0 {
				return nil, ErrDivisionByZero
			}
			return int(a % b), nil
		}
	}

	a, b := ln.float(), rn.float()
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		return a / b, nil
	case "%":
		return math.Mod(a, b), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
}

func compare(op string, l, r any) (any, error) {
	var c int
	ln, lok := toNumber(l)
	rn, rok := toNumber(r)
	ls, lsok := l.(string)
	rs, rsok := r.(string)
	switch {
	case lok && rok:
		a, b := ln.float(), rn.float()
		if math.IsNaN(a) || math.IsNaN(b) {
			return false, nil
		}
		switch {
		case a < b:
			c = -1
		case a > b:
			c = 1
		}
	case lsok && rsok:
		c = strings.Compare(ls, rs)
	default:
		return nil, fmt.Errorf("%w: %T %s %T", ErrInvalidOperand, l, op, r)
	}
	switch op {
	case "<":
		return c < 0, nil
	case ">":
		return c > 0, nil
	case "<=":
		return c <= 0, nil
	default:
		return c >= 0, nil
	}
}

func unary(op string, v any) (any, error) {
	switch op {
	case "!":
		return !Truthy(v), nil
	case "-":
		n, ok := toNumber(v)
		if !ok {
			return nil, fmt.Errorf("%w: -%T", ErrInvalidOperand, v)
		}
		if n.isFloat {
			return -n.f, nil
		}
		return int(-n.i), nil
	case "+":
		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return math.NaN(), nil
			}
			return f, nil
		}
		n, ok := toNumber(v)
		if !ok {
			return nil, fmt.Errorf("%w: +%T", ErrInvalidOperand, v)
		}
		return n.value(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
}

func hasProperty(obj any, key string) bool {
	switch o := obj.(type) {
	case *observation.Object:
		return o.Has(key)
	case *observation.Map:
		return o.Has(key)
	case map[string]any:
		_, ok := o[key]
		return ok
	}
	return observation.GetProperty(obj, key) != nil
}
