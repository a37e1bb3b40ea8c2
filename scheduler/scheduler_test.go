package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/delaneyj/bindparty/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newScheduler(opts ...scheduler.Option) (*scheduler.Scheduler, *scheduler.ManualPlatform) {
	p := scheduler.NewManualPlatform()
	opts = append([]scheduler.Option{scheduler.WithLogger(quietLogger())}, opts...)
	return scheduler.New(p, opts...), p
}

func record(order *[]string, name string) scheduler.TaskFunc {
	return func() error {
		*order = append(*order, name)
		return nil
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestPriorityOrderWithinOneTurn(t *testing.T) {
	s, p := newScheduler()
	var order []string

	s.QueueTask(record(&order, "idle"), scheduler.WithPriority(scheduler.Idle))
	s.QueueTask(record(&order, "postRender"), scheduler.WithPriority(scheduler.PostRender))
	s.QueueTask(record(&order, "render"), scheduler.WithPriority(scheduler.Render))
	s.QueueTask(record(&order, "macroTask"), scheduler.WithPriority(scheduler.MacroTask))
	s.QueueTask(record(&order, "microTask"))

	p.Drain()
	assert.Equal(t, []string{"microTask", "render", "macroTask", "postRender", "idle"}, order)
}

func TestFIFOWithinQueue(t *testing.T) {
	s, p := newScheduler()
	var order []string
	for _, name := range []string{"a", "b", "c", "d"} {
		s.QueueTask(record(&order, name), scheduler.WithPriority(scheduler.Render))
	}
	p.Drain()
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestPreemptRunsFirst(t *testing.T) {
	s, p := newScheduler()
	var order []string

	s.QueueTask(record(&order, "a"), scheduler.WithPriority(scheduler.Render))
	s.QueueTask(record(&order, "b"), scheduler.WithPriority(scheduler.Render))
	s.QueueTask(record(&order, "p1"), scheduler.WithPriority(scheduler.Render), scheduler.Preempt())
	s.QueueTask(record(&order, "p2"), scheduler.WithPriority(scheduler.Render), scheduler.Preempt())

	p.Drain()
	assert.Equal(t, []string{"p1", "p2", "a", "b"}, order)
}

func TestPreemptQueuedDuringFlushJoinsCurrentPass(t *testing.T) {
	s, p := newScheduler()
	var order []string

	s.QueueTask(func() error {
		order = append(order, "a")
		s.QueueTask(record(&order, "late"), scheduler.WithPriority(scheduler.Render))
		s.QueueTask(record(&order, "urgent"), scheduler.WithPriority(scheduler.Render), scheduler.Preempt())
		return nil
	}, scheduler.WithPriority(scheduler.Render))
	s.QueueTask(record(&order, "b"), scheduler.WithPriority(scheduler.Render))

	q := s.GetTaskQueue(scheduler.Render)
	q.Flush()
	assert.Equal(t, []string{"a", "urgent", "b"}, order)
	assert.Equal(t, 1, q.Len())

	p.Drain()
	assert.Equal(t, []string{"a", "urgent", "b", "late"}, order)
}

func TestTaskQueuedDuringFlushWaitsForNextPass(t *testing.T) {
	s, _ := newScheduler()
	runs := 0
	var again scheduler.TaskFunc
	again = func() error {
		runs++
		s.QueueTask(again, scheduler.WithPriority(scheduler.Render))
		return nil
	}
	s.QueueTask(again, scheduler.WithPriority(scheduler.Render))

	q := s.GetTaskQueue(scheduler.Render)
	q.Flush()
	assert.Equal(t, 1, runs)
	q.Flush()
	assert.Equal(t, 2, runs)
	assert.EqualValues(t, 2, q.FlushCount())
}

func TestPersistentTaskRunsOncePerPass(t *testing.T) {
	s, _ := newScheduler()
	runs := 0
	task := s.QueueTask(func() error {
		runs++
		return nil
	}, scheduler.WithPriority(scheduler.Render), scheduler.Persistent())

	q := s.GetTaskQueue(scheduler.Render)
	q.Flush()
	assert.Equal(t, 1, runs)
	assert.Equal(t, scheduler.TaskPending, task.Status())

	q.Flush()
	assert.Equal(t, 2, runs)
	assert.Equal(t, 2, task.Runs())

	require.True(t, task.Cancel())
	q.Flush()
	assert.Equal(t, 2, runs)
	assert.Equal(t, scheduler.TaskCanceled, task.Status())
	assert.True(t, isClosed(task.Done()))
}

func TestPersistentPreemptTaskStaysAhead(t *testing.T) {
	s, _ := newScheduler()
	var order []string
	s.QueueTask(func() error {
		order = append(order, "P")
		s.QueueTask(record(&order, "N"), scheduler.WithPriority(scheduler.Render))
		return nil
	}, scheduler.WithPriority(scheduler.Render), scheduler.Persistent(), scheduler.Preempt())

	q := s.GetTaskQueue(scheduler.Render)
	q.Flush()
	q.Flush()
	assert.Equal(t, []string{"P", "P", "N"}, order)
}

func TestPersistentTaskCanceledWhileRunning(t *testing.T) {
	s, _ := newScheduler()
	runs := 0
	var task *scheduler.Task
	task = s.QueueTask(func() error {
		runs++
		assert.True(t, task.Cancel())
		return nil
	}, scheduler.WithPriority(scheduler.Render), scheduler.Persistent())

	q := s.GetTaskQueue(scheduler.Render)
	q.Flush()
	q.Flush()
	assert.Equal(t, 1, runs)
	assert.True(t, q.IsEmpty())
	assert.ErrorIs(t, task.Err(), scheduler.ErrTaskCanceled)
}

func TestCancelSkipsPendingTask(t *testing.T) {
	s, p := newScheduler()
	var order []string

	first := s.QueueTask(record(&order, "first"))
	second := s.QueueTask(record(&order, "second"))
	require.True(t, first.Cancel())
	assert.False(t, first.Cancel())

	p.Drain()
	assert.Equal(t, []string{"second"}, order)
	assert.ErrorIs(t, first.Err(), scheduler.ErrTaskCanceled)
	assert.Equal(t, scheduler.TaskCompleted, second.Status())
	assert.False(t, second.Cancel(), "cancel after the task ran has no effect")
}

func TestCancelDuringPassSkipsLaterTask(t *testing.T) {
	s, p := newScheduler()
	var order []string
	var victim *scheduler.Task
	s.QueueTask(func() error {
		order = append(order, "killer")
		victim.Cancel()
		return nil
	})
	victim = s.QueueTask(record(&order, "victim"))
	s.QueueTask(record(&order, "survivor"))

	p.Drain()
	assert.Equal(t, []string{"killer", "survivor"}, order)
}

func TestDelayedTaskWaitsForDeadline(t *testing.T) {
	s, p := newScheduler()
	ran := false
	task := s.QueueTask(func() error {
		ran = true
		return nil
	}, scheduler.WithPriority(scheduler.MacroTask), scheduler.WithDelay(100*time.Millisecond))

	q := s.GetTaskQueue(scheduler.MacroTask)
	assert.True(t, q.IsEmpty())
	assert.Equal(t, 1, q.Len())

	p.Drain()
	assert.False(t, ran)

	p.Advance(60 * time.Millisecond)
	assert.False(t, ran)

	p.Advance(40 * time.Millisecond)
	assert.True(t, ran)
	assert.Equal(t, scheduler.TaskCompleted, task.Status())
	assert.Equal(t, 0, q.Len())
}

func TestDelayedTasksRunInDueOrder(t *testing.T) {
	s, p := newScheduler()
	var order []string
	s.QueueTask(record(&order, "slow"), scheduler.WithPriority(scheduler.MacroTask), scheduler.WithDelay(30*time.Millisecond))
	s.QueueTask(record(&order, "fast"), scheduler.WithPriority(scheduler.MacroTask), scheduler.WithDelay(10*time.Millisecond))

	p.Advance(time.Second)
	assert.Equal(t, []string{"fast", "slow"}, order)
}

func TestCanceledDelayedTaskReleasesTimer(t *testing.T) {
	s, p := newScheduler()
	task := s.QueueTask(func() error {
		t.Fatal("canceled task ran")
		return nil
	}, scheduler.WithPriority(scheduler.MacroTask), scheduler.WithDelay(time.Second))

	assert.Equal(t, 1, p.Scheduled())
	require.True(t, task.Cancel())
	assert.Equal(t, 0, p.Scheduled())
	p.Advance(2 * time.Second)
}

func TestPersistentDelayedTaskActsAsInterval(t *testing.T) {
	s, p := newScheduler()
	runs := 0
	s.QueueTask(func() error {
		runs++
		return nil
	}, scheduler.WithPriority(scheduler.MacroTask), scheduler.WithDelay(100*time.Millisecond), scheduler.Persistent())

	p.Advance(350 * time.Millisecond)
	assert.Equal(t, 3, runs)
}

func TestYieldResolvesAfterDrain(t *testing.T) {
	s, p := newScheduler()

	assert.True(t, isClosed(s.Yield(scheduler.Render)), "empty queue yields immediately")

	s.QueueRenderTask(func() {})
	ch := s.Yield(scheduler.Render)
	assert.False(t, isClosed(ch))

	p.RunMicrotasks()
	assert.False(t, isClosed(ch))

	p.Drain()
	assert.True(t, isClosed(ch))
}

func TestYieldAllWaitsForEveryQueue(t *testing.T) {
	s, p := newScheduler()
	s.QueueMicroTask(func() {})
	s.QueueTask(func() error { return nil }, scheduler.WithPriority(scheduler.Idle))

	ch := s.YieldAll()
	p.RunMicrotasks()
	assert.False(t, isClosed(ch))

	p.Drain()
	assert.True(t, isClosed(ch))
	assert.True(t, isClosed(s.YieldAll()))
}

func TestYieldQueuesIgnoresOtherQueues(t *testing.T) {
	s, p := newScheduler()
	s.QueueTask(func() error { return nil }, scheduler.WithPriority(scheduler.Idle))
	s.QueueMicroTask(func() {
		s.QueueRenderTask(func() {})
	})

	ch := s.YieldQueues(scheduler.MicroTask, scheduler.Render)
	p.RunMicrotasks()
	assert.False(t, isClosed(ch), "the microtask queued a render task")

	p.Turn()
	assert.True(t, isClosed(ch))
	assert.False(t, s.GetTaskQueue(scheduler.Idle).IsEmpty())
}

func TestYieldInvalidPriorityDoesNotBlock(t *testing.T) {
	s, _ := newScheduler()
	assert.True(t, isClosed(s.Yield(scheduler.Priority(42))))
	assert.Nil(t, s.GetTaskQueue(scheduler.Priority(-1)))
}

func TestErrorsAndPanicsAreIsolated(t *testing.T) {
	s, p := newScheduler()
	boom := errors.New("boom")
	var order []string

	panicky := s.QueueTask(func() error {
		order = append(order, "panic")
		panic("kaboom")
	})
	failing := s.QueueTask(func() error {
		order = append(order, "fail")
		return boom
	})
	fine := s.QueueTask(record(&order, "fine"))

	p.Drain()
	assert.Equal(t, []string{"panic", "fail", "fine"}, order)

	var pe *scheduler.TaskPanicError
	require.ErrorAs(t, panicky.Err(), &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)

	assert.ErrorIs(t, failing.Err(), boom)
	assert.NoError(t, fine.Err())
	assert.Equal(t, scheduler.TaskCompleted, failing.Status())
}

func TestPanicWithErrorValueUnwraps(t *testing.T) {
	s, p := newScheduler()
	boom := errors.New("boom")
	task := s.QueueTask(func() error { panic(boom) })
	p.Drain()
	assert.ErrorIs(t, task.Err(), boom)
}

func TestReusableTasksArePooled(t *testing.T) {
	s, p := newScheduler()
	first := s.QueueTask(func() error { return nil }, scheduler.Reusable())
	firstID := first.ID()
	p.Drain()

	second := s.QueueTask(func() error { return nil })
	assert.Same(t, first, second)
	assert.NotEqual(t, firstID, second.ID())
	assert.False(t, second.Reusable())
	assert.Equal(t, scheduler.TaskPending, second.Status())
	assert.False(t, isClosed(second.Done()))

	p.Drain()
	third := s.QueueTask(func() error { return nil })
	assert.NotSame(t, second, third)
}

func TestInvalidPriorityFallsBackToMicroTask(t *testing.T) {
	s, p := newScheduler()
	ran := false
	task := s.QueueTask(func() error {
		ran = true
		return nil
	}, scheduler.WithPriority(scheduler.Priority(99)))
	assert.Equal(t, scheduler.MicroTask, task.Priority())
	p.RunMicrotasks()
	assert.True(t, ran)
}

func TestTaskWaitReturnsTaskError(t *testing.T) {
	s, p := newScheduler()
	boom := errors.New("boom")
	task := s.QueueTask(func() error { return boom })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, task.Wait(ctx), context.Canceled)

	p.Drain()
	assert.ErrorIs(t, task.Wait(context.Background()), boom)
}

func TestMetricsRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := scheduler.NewMetrics(reg)
	require.NoError(t, err)
	s, p := newScheduler(scheduler.WithMetrics(m))

	s.QueueMicroTask(func() {})
	s.QueueMicroTask(func() {})
	s.QueueTask(func() error { return errors.New("nope") })
	s.QueueTask(func() error { panic("x") })
	s.QueueMicroTask(func() {}).Cancel()
	p.Drain()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Tasks.WithLabelValues("microTask", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Tasks.WithLabelValues("microTask", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Tasks.WithLabelValues("microTask", "panicked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Tasks.WithLabelValues("microTask", "canceled")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Pending.WithLabelValues("microTask")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FlushDuration))

	_, err = scheduler.NewMetrics(reg)
	assert.Error(t, err, "collectors register once per registry")
}

type recordingTracer struct {
	noop.Tracer
	spans []string
}

func (r *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	r.spans = append(r.spans, name)
	return r.Tracer.Start(ctx, name, opts...)
}

func TestTracerSpansEveryFlush(t *testing.T) {
	tr := &recordingTracer{}
	s, p := newScheduler(scheduler.WithTracer(tr))
	s.QueueMicroTask(func() {})
	s.QueueRenderTask(func() {})
	p.Drain()
	assert.Equal(t, []string{"scheduler.flush", "scheduler.flush"}, tr.spans)
}
