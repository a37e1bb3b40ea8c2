package expr

import (
	"fmt"
	"strings"

	"github.com/delaneyj/bindparty/observation"
	"github.com/delaneyj/bindparty/scope"
)

// Evaluate computes the value of n in s.
func Evaluate(n Node, s *scope.Scope, res Resources) (any, error) {
	e := newEvaluator(s, res, nil)
	return protect(n, func() (any, error) { return e.eval(n) })
}

// Connect evaluates n like Evaluate and reports every property and
// collection read on the way to c. Only the branches actually taken are
// reported.
func Connect(n Node, s *scope.Scope, c Connector) (any, error) {
	e := newEvaluator(s, c, c)
	return protect(n, func() (any, error) { return e.eval(n) })
}

type evaluator struct {
	scope     *scope.Scope
	res       Resources
	connector Connector
	access    PropertyAccess
}

func newEvaluator(s *scope.Scope, res Resources, c Connector) *evaluator {
	e := &evaluator{scope: s, res: res, connector: c}
	if a, ok := res.(PropertyAccess); ok {
		e.access = a
	}
	return e
}

func (e *evaluator) get(obj any, key string) any {
	if e.access != nil {
		return e.access.GetProperty(obj, key)
	}
	return observation.GetProperty(obj, key)
}

func (e *evaluator) set(obj any, key string, v any) error {
	if e.access != nil {
		return e.access.SetProperty(obj, key, v)
	}
	return observation.SetProperty(obj, key, v)
}

func (e *evaluator) observe(obj any, key string) {
	if e.connector != nil && obj != nil {
		e.connector.Observe(obj, key)
	}
}

func (e *evaluator) observeCollection(coll any) {
	if e.connector == nil {
		return
	}
	switch coll.(type) {
	case *observation.Array, *observation.Map, *observation.Set:
		e.connector.ObserveCollection(coll)
	}
}

func (e *evaluator) eval(n Node) (any, error) {
	switch n := n.(type) {
	case *AccessThis:
		v, err := e.scope.This(n.Ancestor)
		return v, wrap(n, err)

	case *AccessScope:
		ctx, err := e.scope.ContextFor(n.Name, n.Ancestor)
		if err != nil {
			return nil, wrap(n, err)
		}
		if ctx == nil {
			return nil, nil
		}
		e.observe(ctx, n.Name)
		return e.get(ctx, n.Name), nil

	case *AccessMember:
		obj, err := e.eval(n.Object)
		if err != nil {
			return nil, err
		}
		if obj == nil {
			if n.Optional {
				return nil, nil
			}
			return nil, wrap(n, fmt.Errorf("%w: reading %q", ErrNilDereference, n.Name))
		}
		e.observe(obj, n.Name)
		return e.get(obj, n.Name), nil

	case *AccessKeyed:
		obj, err := e.eval(n.Object)
		if err != nil {
			return nil, err
		}
		if obj == nil && n.Optional {
			return nil, nil
		}
		key, err := e.eval(n.Key)
		if err != nil {
			return nil, err
		}
		if obj == nil {
			return nil, wrap(n, fmt.Errorf("%w: reading [%v]", ErrNilDereference, key))
		}
		switch obj.(type) {
		case *observation.Array, *observation.Map, *observation.Set:
			e.observeCollection(obj)
		default:
			e.observe(obj, ToString(key))
		}
		return observation.GetKeyed(obj, key), nil

	case *CallScope:
		ctx, err := e.scope.ContextFor(n.Name, n.Ancestor)
		if err != nil {
			return nil, wrap(n, err)
		}
		fn := observation.GetProperty(ctx, n.Name)
		return e.call(n, fn, n.Args, n.Optional)

	case *CallMember:
		obj, err := e.eval(n.Object)
		if err != nil {
			return nil, err
		}
		if obj == nil {
			if n.Optional {
				return nil, nil
			}
			return nil, wrap(n, fmt.Errorf("%w: calling %q", ErrNilDereference, n.Name))
		}
		e.observeCollection(obj)
		return e.call(n, observation.GetProperty(obj, n.Name), n.Args, n.Optional)

	case *CallFunction:
		fn, err := e.eval(n.Func)
		if err != nil {
			return nil, err
		}
		return e.call(n, fn, n.Args, n.Optional)

	case *Binary:
		return e.binary(n)

	case *Unary:
		v, err := e.eval(n.Operand)
		if err != nil {
			return nil, err
		}
		out, err := unary(n.Op, v)
		return out, wrap(n, err)

	case *Conditional:
		c, err := e.eval(n.Condition)
		if err != nil {
			return nil, err
		}
		if Truthy(c) {
			return e.eval(n.Yes)
		}
		return e.eval(n.No)

	case *AssignExpression:
		v, err := e.eval(n.Value)
		if err != nil {
			return nil, err
		}
		if err := Assign(n.Target, e.scope, v, e.res); err != nil {
			return nil, err
		}
		return v, nil

	case *LiteralPrimitive:
		return n.Value, nil

	case *LiteralArray:
		out := make([]any, len(n.Elements))
		for i, el := range n.Elements {
			v, err := e.eval(el)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case *LiteralObject:
		out := make(map[string]any, len(n.Keys))
		for i, k := range n.Keys {
			v, err := e.eval(n.Values[i])
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil

	case *Template:
		var sb strings.Builder
		for i, c := range n.Cooked {
			sb.WriteString(c)
			if i >= len(n.Exprs) {
				continue
			}
			v, err := e.eval(n.Exprs[i])
			if err != nil {
				return nil, err
			}
			sb.WriteString(ToString(v))
		}
		return sb.String(), nil

	case *ValueConverterExpression:
		vc, err := e.converter(n)
		if err != nil {
			return nil, err
		}
		v, err := e.eval(n.Expr)
		if err != nil {
			return nil, err
		}
		args, err := e.evalArgs(n.Args)
		if err != nil {
			return nil, err
		}
		return protect(n, func() (any, error) { return vc.ToView(v, args...) })
	}
	return nil, wrap(n, fmt.Errorf("%w: %T", ErrUnknownNode, n))
}

func (e *evaluator) binary(n *Binary) (any, error) {
	l, err := e.eval(n.Left)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "&&":
		if !Truthy(l) {
			return l, nil
		}
		return e.eval(n.Right)
	case "||":
		if Truthy(l) {
			return l, nil
		}
		return e.eval(n.Right)
	case "??":
		if l != nil {
			return l, nil
		}
		return e.eval(n.Right)
	}
	r, err := e.eval(n.Right)
	if err != nil {
		return nil, err
	}
	if n.Op == "in" {
		e.observeCollection(r)
	}
	v, err := binary(n.Op, l, r)
	return v, wrap(n, err)
}

func (e *evaluator) evalArgs(nodes []Node) ([]any, error) {
	args := make([]any, len(nodes))
	for i, a := range nodes {
		v, err := e.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func (e *evaluator) converter(n *ValueConverterExpression) (ValueConverter, error) {
	if e.res != nil {
		if vc, ok := e.res.ValueConverter(n.Name); ok {
			return vc, nil
		}
	}
	return nil, wrap(n, fmt.Errorf("%w: %q", ErrUnknownConverter, n.Name))
}

func (e *evaluator) call(n Node, fn any, argNodes []Node, optional bool) (any, error) {
	if fn == nil && optional {
		return nil, nil
	}
	args, err := e.evalArgs(argNodes)
	if err != nil {
		return nil, err
	}
	return protect(n, func() (any, error) { return invoke(fn, args) })
}
