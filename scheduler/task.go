package scheduler

import (
	"context"
	"time"
)

// TaskFunc is the unit of deferred work. A returned error is logged and
// recorded on the task; it never stops the rest of the flush pass.
type TaskFunc func() error

type TaskStatus int

const (
	TaskPending TaskStatus = iota
	TaskRunning
	TaskCompleted
	TaskCanceled
)

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Task is the handle returned by QueueTask. It can be canceled until its
// flush pass reaches it and awaited through Done or Wait.
//
// Handles of reusable tasks are recycled once the task completes and must
// not be used afterwards.
type Task struct {
	id       uint64
	queue    *TaskQueue
	callback TaskFunc

	priority   Priority
	delay      time.Duration
	preempt    bool
	persistent bool
	reusable   bool

	queuedAt time.Time
	status   TaskStatus
	runs     int
	err      error
	done     chan struct{}
}

func (t *Task) ID() uint64               { return t.id }
func (t *Task) Priority() Priority       { return t.priority }
func (t *Task) Status() TaskStatus       { return t.status }
func (t *Task) Persistent() bool         { return t.persistent }
func (t *Task) Preempt() bool            { return t.preempt }
func (t *Task) Reusable() bool           { return t.reusable }
func (t *Task) Delay() time.Duration     { return t.delay }
func (t *Task) Runs() int                { return t.runs }
func (t *Task) Done() <-chan struct{}    { return t.done }
func (t *Task) due() time.Time           { return t.queuedAt.Add(t.delay) }
func (t *Task) isDue(now time.Time) bool { return !t.due().After(now) }

// Err returns the error of the last completed run, ErrTaskCanceled for a
// canceled task, or nil.
func (t *Task) Err() error {
	if t.status == TaskCanceled {
		return ErrTaskCanceled
	}
	return t.err
}

// Cancel flags a pending task so its flush pass skips it. A persistent
// task canceled while running finishes the current run and is not queued
// again. Cancel reports whether the task will not run (again).
func (t *Task) Cancel() bool {
	switch t.status {
	case TaskPending:
		t.finish(TaskCanceled)
		t.queue.onCanceled(t)
		return true
	case TaskRunning:
		if t.persistent {
			t.status = TaskCanceled
			return true
		}
	}
	return false
}

// Wait blocks until the task finishes or ctx is done. It is only useful
// when the host loop runs on another goroutine, such as LoopPlatform.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return t.Err()
	}
}

func (t *Task) finish(status TaskStatus) {
	t.status = status
	select {
	case <-t.done:
	default:
		close(t.done)
	}
}

func (t *Task) reset() {
	t.callback = nil
	t.delay = 0
	t.preempt = false
	t.persistent = false
	t.reusable = false
	t.runs = 0
	t.err = nil
	t.status = TaskPending
	t.done = make(chan struct{})
}

// TaskOption configures a task at queue time.
type TaskOption func(*Task)

func WithPriority(p Priority) TaskOption {
	return func(t *Task) { t.priority = p }
}

// WithDelay keeps the task out of its queue's flush passes until d has
// elapsed. Persistent tasks wait d again between runs.
func WithDelay(d time.Duration) TaskOption {
	return func(t *Task) { t.delay = d }
}

// Preempt runs the task ahead of non-preempt tasks; queued during a flush
// pass it joins the pass currently running.
func Preempt() TaskOption {
	return func(t *Task) { t.preempt = true }
}

func Persistent() TaskOption {
	return func(t *Task) { t.persistent = true }
}

func Reusable() TaskOption {
	return func(t *Task) { t.reusable = true }
}
