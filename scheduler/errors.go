package scheduler

import (
	"errors"
	"fmt"
)

var (
	ErrTaskCanceled    = errors.New("scheduler: task canceled")
	ErrUnknownPriority = errors.New("scheduler: unknown priority")
	ErrLoopRunning     = errors.New("scheduler: loop already running")
	ErrLoopStopped     = errors.New("scheduler: loop not running")
)

// TaskPanicError is recorded on a task whose callback panicked.
type TaskPanicError struct {
	Value any
	Stack []byte
}

func (e *TaskPanicError) Error() string {
	return fmt.Sprintf("scheduler: task panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *TaskPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
