package expr

import (
	"errors"
	"fmt"
)

var (
	ErrNilDereference   = errors.New("expr: nil dereference")
	ErrNotAFunction     = errors.New("expr: not a function")
	ErrUnknownConverter = errors.New("expr: unknown value converter")
	ErrNotAssignable    = errors.New("expr: expression is not assignable")
	ErrUnknownOperator  = errors.New("expr: unknown operator")
	ErrInvalidOperand   = errors.New("expr: invalid operand")
	ErrDivisionByZero   = errors.New("expr: integer division by zero")
	ErrUnknownNode      = errors.New("expr: unknown node")
	ErrPanic            = errors.New("expr: panic during evaluation")
)

// EvaluationError reports the innermost node that failed.
type EvaluationError struct {
	Node Node
	Err  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("expr: evaluating %s: %v", e.Node, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

func wrap(n Node, err error) error {
	if err == nil {
		return nil
	}
	var ee *EvaluationError
	if errors.As(err, &ee) {
		return err
	}
	return &EvaluationError{Node: n, Err: err}
}

func panicError(n Node, r any) error {
	if err, ok := r.(error); ok {
		return &EvaluationError{Node: n, Err: fmt.Errorf("%w: %w", ErrPanic, err)}
	}
	return &EvaluationError{Node: n, Err: fmt.Errorf("%w: %v", ErrPanic, r)}
}

// protect runs fn, turning a panic from user code into an EvaluationError
// on n.
func protect(n Node, fn func() (any, error)) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, panicError(n, r)
		}
	}()
	out, err = fn()
	return out, wrap(n, err)
}
