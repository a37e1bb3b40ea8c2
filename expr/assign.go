package expr

import (
	"fmt"

	"github.com/delaneyj/bindparty/observation"
	"github.com/delaneyj/bindparty/scope"
)

// IsAssignable reports whether Assign can write through n.
func IsAssignable(n Node) bool {
	switch n := n.(type) {
	case *AccessScope, *AccessMember, *AccessKeyed:
		return true
	case *ValueConverterExpression:
		return IsAssignable(n.Expr)
	}
	return false
}

// Assign writes value to the location n denotes. Value converters on the
// way run their FromView direction.
func Assign(n Node, s *scope.Scope, value any, res Resources) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(n, r)
		}
	}()
	e := newEvaluator(s, res, nil)
	switch n := n.(type) {
	case *AccessScope:
		ctx, err := s.ContextFor(n.Name, n.Ancestor)
		if err != nil {
			return wrap(n, err)
		}
		if ctx == nil {
			return wrap(n, fmt.Errorf("%w: assigning %q", ErrNilDereference, n.Name))
		}
		return wrap(n, e.set(ctx, n.Name, value))

	case *AccessMember:
		obj, err := e.eval(n.Object)
		if err != nil {
			return err
		}
		if obj == nil {
			return wrap(n, fmt.Errorf("%w: assigning %q", ErrNilDereference, n.Name))
		}
		return wrap(n, e.set(obj, n.Name, value))

	case *AccessKeyed:
		obj, err := e.eval(n.Object)
		if err != nil {
			return err
		}
		key, err := e.eval(n.Key)
		if err != nil {
			return err
		}
		if obj == nil {
			return wrap(n, fmt.Errorf("%w: assigning [%v]", ErrNilDereference, key))
		}
		switch o := obj.(type) {
		case *observation.Map:
			o.Set(key, value)
			return nil
		case *observation.Array:
			i, ok := key.(int)
			if !ok {
				if f, isFloat := key.(float64); isFloat && f == float64(int(f)) {
					i, ok = int(f), true
				}
			}
			if !ok {
				return wrap(n, fmt.Errorf("%w: array index %T", ErrInvalidOperand, key))
			}
			return wrap(n, o.SetAt(i, value))
		}
		return wrap(n, observation.SetProperty(obj, ToString(key), value))

	case *ValueConverterExpression:
		vc, err := e.converter(n)
		if err != nil {
			return err
		}
		args, err := e.evalArgs(n.Args)
		if err != nil {
			return err
		}
		v, err := vc.FromView(value, args...)
		if err != nil {
			return wrap(n, err)
		}
		return Assign(n.Expr, s, v, res)
	}
	return wrap(n, ErrNotAssignable)
}
