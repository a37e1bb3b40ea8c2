package scheduler

import (
	"context"
	"runtime/debug"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TaskQueue holds the tasks of one priority. A flush pass runs the tasks
// that were pending when the pass began; tasks queued while it runs wait
// for the next pass unless they preempt.
type TaskQueue struct {
	s        *Scheduler
	priority Priority

	pending []*Task
	delayed []*Task

	processing []*Task
	cursor     int
	preemptAt  int
	flushing   bool

	flushRequested bool
	cancelFlush    func()
	delayTimers    map[*Task]func()

	flushCount uint64
	pool       []*Task
	waiters    []chan struct{}
}

func newTaskQueue(s *Scheduler, p Priority) *TaskQueue {
	return &TaskQueue{
		s:           s,
		priority:    p,
		delayTimers: map[*Task]func(){},
	}
}

func (q *TaskQueue) Priority() Priority { return q.priority }

// FlushCount is the number of completed flush passes.
func (q *TaskQueue) FlushCount() uint64 { return q.flushCount }

// Len counts live tasks waiting for a pass, delayed ones included.
func (q *TaskQueue) Len() int {
	n := 0
	for _, t := range q.pending {
		if t.status == TaskPending {
			n++
		}
	}
	for _, t := range q.delayed {
		if t.status == TaskPending {
			n++
		}
	}
	return n
}

// IsEmpty reports whether no live task is waiting for the next pass and no
// pass is running. Delayed tasks that are not due yet do not count.
func (q *TaskQueue) IsEmpty() bool {
	if q.flushing {
		return false
	}
	for _, t := range q.pending {
		if t.status == TaskPending {
			return false
		}
	}
	now := q.s.platform.Now()
	for _, t := range q.delayed {
		if t.status == TaskPending && t.isDue(now) {
			return false
		}
	}
	return true
}

func (q *TaskQueue) newTask(fn TaskFunc, opts []TaskOption) *Task {
	var t *Task
	if n := len(q.pool); n > 0 {
		t = q.pool[n-1]
		q.pool[n-1] = nil
		q.pool = q.pool[:n-1]
		t.reset()
	} else {
		t = &Task{done: make(chan struct{})}
	}
	q.s.nextID++
	t.id = q.s.nextID
	t.queue = q
	t.callback = fn
	t.priority = q.priority
	for _, opt := range opts {
		opt(t)
	}
	t.priority = q.priority
	t.queuedAt = q.s.platform.Now()
	return t
}

func (q *TaskQueue) enqueue(t *Task) {
	if t.delay > 0 {
		q.delayed = append(q.delayed, t)
		q.delayTimers[t] = q.s.platform.SetTimeout(t.delay, func() {
			delete(q.delayTimers, t)
			q.requestFlush()
		})
		q.s.metrics.pending(q.priority, q.Len())
		return
	}

	switch {
	case t.preempt && q.flushing:
		q.processing = slices.Insert(q.processing, q.preemptAt, t)
		q.preemptAt++
	default:
		q.addPending(t)
		q.requestFlush()
	}
	q.s.metrics.pending(q.priority, q.Len())
}

func (q *TaskQueue) onCanceled(t *Task) {
	if cancel, ok := q.delayTimers[t]; ok {
		cancel()
		delete(q.delayTimers, t)
	}
	q.s.metrics.task(q.priority, outcomeCanceled)
	q.s.metrics.pending(q.priority, q.Len())
}

func (q *TaskQueue) requestFlush() {
	if q.flushRequested {
		return
	}
	q.flushRequested = true

	p := q.s.platform
	switch q.priority {
	case MicroTask:
		p.QueueMicrotask(q.Flush)
		q.cancelFlush = nil
	case Render:
		q.cancelFlush = p.RequestAnimationFrame(q.Flush)
	case MacroTask:
		q.cancelFlush = p.SetTimeout(0, q.Flush)
	case PostRender:
		var cancelTimer func()
		cancelFrame := p.RequestAnimationFrame(func() {
			cancelTimer = p.SetTimeout(0, q.Flush)
		})
		q.cancelFlush = func() {
			cancelFrame()
			if cancelTimer != nil {
				cancelTimer()
			}
		}
	case Idle:
		q.cancelFlush = p.RequestIdleCallback(q.Flush)
	}
}

// Flush runs one pass. It is what the platform callback invokes; calling
// it directly forces a synchronous pass. A pass never overlaps another
// pass of the same queue.
func (q *TaskQueue) Flush() {
	q.flushRequested = false
	q.cancelFlush = nil
	if q.flushing {
		return
	}

	q.promoteDue()
	if len(q.pending) == 0 {
		q.settle()
		return
	}

	q.flushing = true
	q.processing = q.pending
	q.pending = nil
	// preempt tasks already sit in front of pending (see enqueue)

	var span trace.Span
	if q.s.tracer != nil {
		_, span = q.s.tracer.Start(context.Background(), "scheduler.flush",
			trace.WithAttributes(
				attribute.String("priority", q.priority.String()),
				attribute.Int("tasks", len(q.processing)),
			))
	}
	start := time.Now()

	for q.cursor = 0; q.cursor < len(q.processing); q.cursor++ {
		q.preemptAt = q.cursor + 1
		t := q.processing[q.cursor]
		q.processing[q.cursor] = nil
		if t.status != TaskPending {
			continue
		}
		q.run(t)
	}

	q.processing = nil
	q.cursor = 0
	q.preemptAt = 0
	q.flushing = false
	q.flushCount++

	q.s.metrics.flush(q.priority, time.Since(start))
	if span != nil {
		span.End()
	}

	if len(q.pending) > 0 {
		q.requestFlush()
	}
	q.settle()
}

func (q *TaskQueue) promoteDue() {
	if len(q.delayed) == 0 {
		return
	}
	now := q.s.platform.Now()
	var due, waiting []*Task
	for _, t := range q.delayed {
		switch {
		case t.status != TaskPending:
		case t.isDue(now):
			due = append(due, t)
		default:
			waiting = append(waiting, t)
		}
	}
	q.delayed = waiting
	slices.SortStableFunc(due, func(a, b *Task) int {
		return a.due().Compare(b.due())
	})
	for _, t := range due {
		delete(q.delayTimers, t)
		q.addPending(t)
	}
}

// addPending puts preempt tasks behind the preempt tasks already waiting
// and ahead of everything else.
func (q *TaskQueue) addPending(t *Task) {
	if !t.preempt {
		q.pending = append(q.pending, t)
		return
	}
	at := 0
	for at < len(q.pending) && q.pending[at].preempt {
		at++
	}
	q.pending = slices.Insert(q.pending, at, t)
}

func (q *TaskQueue) run(t *Task) {
	t.status = TaskRunning
	err := q.execute(t)
	t.runs++

	if t.status == TaskCanceled {
		t.finish(TaskCanceled)
		q.s.metrics.task(q.priority, outcomeCanceled)
		return
	}

	outcome := outcomeCompleted
	if err != nil {
		outcome = outcomeFailed
		var pe *TaskPanicError
		if asPanic(err, &pe) {
			outcome = outcomePanicked
		}
		q.s.logger.Error("task failed",
			"priority", q.priority.String(),
			"task", t.id,
			"error", err,
		)
	}
	q.s.metrics.task(q.priority, outcome)

	if t.persistent {
		t.err = err
		t.status = TaskPending
		t.queuedAt = q.s.platform.Now()
		// next pass, never the one running now
		if t.delay > 0 {
			q.enqueue(t)
		} else {
			q.addPending(t)
		}
		return
	}

	t.err = err
	t.finish(TaskCompleted)
	if t.reusable {
		t.queue = q
		q.pool = append(q.pool, t)
	}
}

func (q *TaskQueue) execute(t *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &TaskPanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	if t.callback == nil {
		return nil
	}
	return t.callback()
}

// settle releases Yield waiters once the queue has drained.
func (q *TaskQueue) settle() {
	q.s.metrics.pending(q.priority, q.Len())
	if !q.IsEmpty() {
		return
	}
	waiters := q.waiters
	q.waiters = nil
	for _, w := range waiters {
		close(w)
	}
	q.s.onQueueSettled()
}

func (q *TaskQueue) yield() <-chan struct{} {
	ch := make(chan struct{})
	if q.IsEmpty() {
		close(ch)
		return ch
	}
	q.waiters = append(q.waiters, ch)
	return ch
}
