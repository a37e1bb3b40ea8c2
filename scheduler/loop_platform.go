package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/petermattis/goid"
)

const (
	DefaultFrameInterval = 16 * time.Millisecond
	DefaultIdleTimeout   = 50 * time.Millisecond
	defaultIngressSize   = 1024
)

// LoopPlatform is a single-goroutine host loop. Platform methods called on
// the loop goroutine touch loop state directly; calls from any other
// goroutine are marshalled through the ingress channel, so a Scheduler on
// top of it can be fed from anywhere via Submit.
type LoopPlatform struct {
	frameInterval time.Duration
	idleTimeout   time.Duration
	logger        *slog.Logger

	ingress chan func()
	running atomic.Bool
	loopGID atomic.Int64

	// owned by the loop goroutine
	seq          uint64
	microtasks   []func()
	frames       []*hostCallback
	timers       timerHeap
	idles        []*hostCallback
	lastFrame    time.Time
	lastActivity time.Time
}

var _ Platform = (*LoopPlatform)(nil)

type LoopOption func(*LoopPlatform)

func WithFrameInterval(d time.Duration) LoopOption {
	return func(p *LoopPlatform) {
		if d > 0 {
			p.frameInterval = d
		}
	}
}

func WithIdleTimeout(d time.Duration) LoopOption {
	return func(p *LoopPlatform) {
		if d > 0 {
			p.idleTimeout = d
		}
	}
}

func WithLoopLogger(l *slog.Logger) LoopOption {
	return func(p *LoopPlatform) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewLoopPlatform(opts ...LoopOption) *LoopPlatform {
	p := &LoopPlatform{
		frameInterval: DefaultFrameInterval,
		idleTimeout:   DefaultIdleTimeout,
		logger:        slog.Default(),
		ingress:       make(chan func(), defaultIngressSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *LoopPlatform) Now() time.Time { return time.Now() }

// Running reports whether Run is driving the loop.
func (p *LoopPlatform) Running() bool { return p.running.Load() }

func (p *LoopPlatform) isLoopGoroutine() bool {
	gid := p.loopGID.Load()
	return gid != 0 && gid == goid.Get()
}

// Submit runs fn on the loop goroutine. Work submitted before Run starts
// is buffered and runs first.
func (p *LoopPlatform) Submit(fn func()) {
	p.ingress <- fn
}

// Call runs fn on the loop goroutine and waits for it to return. The loop
// must be running.
func (p *LoopPlatform) Call(ctx context.Context, fn func()) error {
	if p.isLoopGoroutine() {
		fn()
		return nil
	}
	if !p.running.Load() {
		return ErrLoopStopped
	}
	done := make(chan struct{})
	select {
	case p.ingress <- func() { defer close(done); fn() }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *LoopPlatform) onLoop(fn func()) {
	if p.isLoopGoroutine() {
		fn()
		return
	}
	p.Submit(fn)
}

func (p *LoopPlatform) QueueMicrotask(fn func()) {
	p.onLoop(func() { p.microtasks = append(p.microtasks, fn) })
}

func (p *LoopPlatform) RequestAnimationFrame(fn func()) func() {
	c := &hostCallback{fn: fn}
	p.onLoop(func() {
		p.seq++
		c.seq = p.seq
		p.frames = append(p.frames, c)
	})
	return func() { p.onLoop(c.cancel) }
}

func (p *LoopPlatform) SetTimeout(d time.Duration, fn func()) func() {
	if d < 0 {
		d = 0
	}
	c := &hostCallback{fn: fn, when: time.Now().Add(d)}
	p.onLoop(func() {
		p.seq++
		c.seq = p.seq
		heap.Push(&p.timers, c)
	})
	return func() { p.onLoop(c.cancel) }
}

func (p *LoopPlatform) RequestIdleCallback(fn func()) func() {
	c := &hostCallback{fn: fn}
	p.onLoop(func() {
		p.seq++
		c.seq = p.seq
		p.idles = append(p.idles, c)
	})
	return func() { p.onLoop(c.cancel) }
}

// Run drives the loop until ctx is done.
func (p *LoopPlatform) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer p.running.Store(false)

	p.loopGID.Store(goid.Get())
	defer p.loopGID.Store(0)

	p.lastActivity = time.Now()
	wake := time.NewTimer(time.Hour)
	defer wake.Stop()

	for {
		p.drainMicrotasks()
		p.runDue(time.Now())
		p.drainMicrotasks()

		resetTimer(wake, p.nextWake(time.Now()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-p.ingress:
			p.safeExecute(fn)
			p.lastActivity = time.Now()
		case <-wake.C:
		}
	}
}

func (p *LoopPlatform) drainMicrotasks() {
	for len(p.microtasks) > 0 {
		fn := p.microtasks[0]
		p.microtasks[0] = nil
		p.microtasks = p.microtasks[1:]
		p.safeExecute(fn)
	}
}

func (p *LoopPlatform) runDue(now time.Time) {
	ran := false
	frameSlot := len(p.frames) > 0 && now.Sub(p.lastFrame) >= p.frameInterval
	if frameSlot {
		frames := p.frames
		p.frames = nil
		p.lastFrame = now
		for _, f := range frames {
			if !f.canceled {
				p.safeExecute(f.fn)
				p.drainMicrotasks()
				ran = true
			}
		}
	}

	// a frame still waiting for its slot goes first; timers wait for it
	if !frameSlot && p.frameWaiting() {
		return
	}
	var due []*hostCallback
	for len(p.timers) > 0 && !p.timers[0].when.After(now) {
		due = append(due, heap.Pop(&p.timers).(*hostCallback))
	}
	for _, t := range due {
		if !t.canceled {
			p.safeExecute(t.fn)
			p.drainMicrotasks()
			ran = true
		}
	}

	if ran {
		p.lastActivity = now
		return
	}
	if len(p.idles) == 0 || len(p.frames) > 0 || len(p.ingress) > 0 {
		return
	}
	if now.Sub(p.lastActivity) < p.idleTimeout {
		return
	}
	idles := p.idles
	p.idles = nil
	for _, c := range idles {
		if !c.canceled {
			p.safeExecute(c.fn)
			p.drainMicrotasks()
		}
	}
}

func (p *LoopPlatform) frameWaiting() bool {
	for _, f := range p.frames {
		if !f.canceled {
			return true
		}
	}
	return false
}

func (p *LoopPlatform) nextWake(now time.Time) time.Duration {
	wait := time.Hour
	consider := func(at time.Time) {
		if d := at.Sub(now); d < wait {
			wait = d
		}
	}
	if p.frameWaiting() {
		// timers run right after the frame
		consider(p.lastFrame.Add(p.frameInterval))
	} else if len(p.timers) > 0 {
		consider(p.timers[0].when)
	}
	if len(p.idles) > 0 {
		consider(p.lastActivity.Add(p.idleTimeout))
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

func (p *LoopPlatform) safeExecute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("loop callback panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
