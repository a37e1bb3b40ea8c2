package scheduler

import (
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Scheduler owns one TaskQueue per priority on top of a host Platform.
//
// It is not safe for concurrent use. Everything, including QueueTask, must
// run on the goroutine driving the platform; LoopPlatform.Submit marshals
// work from other goroutines.
type Scheduler struct {
	platform Platform
	queues   [numPriorities]*TaskQueue
	nextID   uint64

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	waiters []yieldWaiter
}

type Option func(*Scheduler)

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records task outcomes and flush durations.
func WithMetrics(m *Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithTracer wraps every flush pass in a span.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) { s.tracer = t }
}

func New(platform Platform, opts ...Option) *Scheduler {
	s := &Scheduler{
		platform: platform,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, p := range Priorities() {
		s.queues[p] = newTaskQueue(s, p)
	}
	return s
}

func (s *Scheduler) Platform() Platform   { return s.platform }
func (s *Scheduler) Logger() *slog.Logger { return s.logger }

// GetTaskQueue returns the queue for p, or nil for an invalid priority.
func (s *Scheduler) GetTaskQueue(p Priority) *TaskQueue {
	if !p.Valid() {
		return nil
	}
	return s.queues[p]
}

// QueueTask defers fn to the queue selected by WithPriority (MicroTask by
// default) and returns a cancellable handle.
func (s *Scheduler) QueueTask(fn TaskFunc, opts ...TaskOption) *Task {
	probe := Task{priority: MicroTask}
	for _, opt := range opts {
		opt(&probe)
	}
	q := s.GetTaskQueue(probe.priority)
	if q == nil {
		s.logger.Warn("unknown task priority, using microTask", "priority", int(probe.priority))
		q = s.queues[MicroTask]
		opts = append(opts, WithPriority(MicroTask))
	}
	t := q.newTask(fn, opts)
	q.enqueue(t)
	return t
}

// QueueMicroTask is shorthand for an error-free MicroTask task.
func (s *Scheduler) QueueMicroTask(fn func()) *Task {
	return s.QueueTask(func() error { fn(); return nil })
}

// QueueRenderTask is shorthand for an error-free Render task.
func (s *Scheduler) QueueRenderTask(fn func()) *Task {
	return s.QueueTask(func() error { fn(); return nil }, WithPriority(Render))
}

// Yield returns a channel closed once the queue for p has drained. It is
// closed immediately when the queue is already empty.
func (s *Scheduler) Yield(p Priority) <-chan struct{} {
	q := s.GetTaskQueue(p)
	if q == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return q.yield()
}

// YieldAll returns a channel closed once every queue is empty at the same
// time.
func (s *Scheduler) YieldAll() <-chan struct{} {
	return s.YieldQueues(Priorities()...)
}

// YieldQueues returns a channel closed once the queues for ps are all
// empty at the same time. Invalid priorities are ignored.
func (s *Scheduler) YieldQueues(ps ...Priority) <-chan struct{} {
	w := yieldWaiter{ch: make(chan struct{})}
	for _, p := range ps {
		if p.Valid() {
			w.queues = append(w.queues, p)
		}
	}
	if s.empty(w.queues) {
		close(w.ch)
		return w.ch
	}
	s.waiters = append(s.waiters, w)
	return w.ch
}

type yieldWaiter struct {
	queues []Priority
	ch     chan struct{}
}

func (s *Scheduler) empty(ps []Priority) bool {
	for _, p := range ps {
		if !s.queues[p].IsEmpty() {
			return false
		}
	}
	return true
}

func (s *Scheduler) onQueueSettled() {
	if len(s.waiters) == 0 {
		return
	}
	kept := s.waiters[:0]
	for _, w := range s.waiters {
		if s.empty(w.queues) {
			close(w.ch)
			continue
		}
		kept = append(kept, w)
	}
	clear(s.waiters[len(kept):])
	s.waiters = kept
}

func asPanic(err error, target **TaskPanicError) bool {
	return errors.As(err, target)
}
