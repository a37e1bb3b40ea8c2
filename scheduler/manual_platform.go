package scheduler

import (
	"container/heap"
	"time"
)

const maxDrainTurns = 10_000

type hostCallback struct {
	fn       func()
	when     time.Time
	seq      uint64
	canceled bool
}

func (c *hostCallback) cancel() { c.canceled = true }

// timerHeap orders callbacks by due time, then by insertion.
type timerHeap []*hostCallback

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)   { *h = append(*h, x.(*hostCallback)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}

// ManualPlatform is a deterministic host loop driven explicitly by the
// caller. Time only moves through Advance.
//
// One turn runs, in order: every microtask (including ones queued while
// draining), the animation frames requested before the turn, the timers
// due at the start of the timer phase, and finally idle callbacks when
// nothing else is pending. Microtasks are drained after every callback.
type ManualPlatform struct {
	now        time.Time
	seq        uint64
	microtasks []func()
	frames     []*hostCallback
	timers     timerHeap
	idles      []*hostCallback
}

var _ Platform = (*ManualPlatform)(nil)

func NewManualPlatform() *ManualPlatform {
	return &ManualPlatform{
		now: time.Unix(0, 0).UTC(),
	}
}

func (p *ManualPlatform) Now() time.Time { return p.now }

func (p *ManualPlatform) QueueMicrotask(fn func()) {
	p.microtasks = append(p.microtasks, fn)
}

func (p *ManualPlatform) RequestAnimationFrame(fn func()) func() {
	c := p.newCallback(fn, p.now)
	p.frames = append(p.frames, c)
	return c.cancel
}

func (p *ManualPlatform) SetTimeout(d time.Duration, fn func()) func() {
	if d < 0 {
		d = 0
	}
	c := p.newCallback(fn, p.now.Add(d))
	heap.Push(&p.timers, c)
	return c.cancel
}

func (p *ManualPlatform) RequestIdleCallback(fn func()) func() {
	c := p.newCallback(fn, p.now)
	p.idles = append(p.idles, c)
	return c.cancel
}

func (p *ManualPlatform) newCallback(fn func(), when time.Time) *hostCallback {
	p.seq++
	return &hostCallback{fn: fn, when: when, seq: p.seq}
}

// Pending counts callbacks that would run on the next turn, ignoring
// timers that are not due yet.
func (p *ManualPlatform) Pending() int {
	n := len(p.microtasks) + p.liveCount(p.frames) + p.liveCount(p.idles)
	for _, t := range p.timers {
		if !t.canceled && !t.when.After(p.now) {
			n++
		}
	}
	return n
}

// Scheduled counts all live timers, due or not.
func (p *ManualPlatform) Scheduled() int {
	return p.liveCount(p.timers)
}

func (p *ManualPlatform) liveCount(cbs []*hostCallback) int {
	n := 0
	for _, c := range cbs {
		if !c.canceled {
			n++
		}
	}
	return n
}

// RunMicrotasks drains the microtask queue, including microtasks queued
// by microtasks, and returns how many ran.
func (p *ManualPlatform) RunMicrotasks() int {
	ran := 0
	for len(p.microtasks) > 0 {
		fn := p.microtasks[0]
		p.microtasks[0] = nil
		p.microtasks = p.microtasks[1:]
		fn()
		ran++
	}
	return ran
}

// Turn runs one host loop turn and reports whether anything ran.
func (p *ManualPlatform) Turn() bool {
	ran := p.RunMicrotasks()

	frames := p.frames
	p.frames = nil
	for _, f := range frames {
		if f.canceled {
			continue
		}
		f.fn()
		ran++
		ran += p.RunMicrotasks()
	}

	var due []*hostCallback
	for len(p.timers) > 0 && !p.timers[0].when.After(p.now) {
		due = append(due, heap.Pop(&p.timers).(*hostCallback))
	}
	for _, t := range due {
		if t.canceled {
			continue
		}
		t.fn()
		ran++
		ran += p.RunMicrotasks()
	}

	if ran == 0 {
		idles := p.idles
		p.idles = nil
		for _, c := range idles {
			if c.canceled {
				continue
			}
			c.fn()
			ran++
			ran += p.RunMicrotasks()
		}
	}
	return ran > 0
}

// Drain runs turns until nothing is left to do at the current time and
// returns the number of turns that did work.
func (p *ManualPlatform) Drain() int {
	turns := 0
	for turns < maxDrainTurns && p.Turn() {
		turns++
	}
	return turns
}

// Advance moves the clock forward by d, draining at every timer deadline
// crossed on the way so that timers scheduled by earlier timers fire in
// due order.
func (p *ManualPlatform) Advance(d time.Duration) int {
	target := p.now.Add(d)
	turns := p.Drain()
	for {
		next, ok := p.nextDeadline()
		if !ok || next.After(target) || !next.After(p.now) {
			break
		}
		p.now = next
		turns += p.Drain()
	}
	p.now = target
	return turns + p.Drain()
}

func (p *ManualPlatform) nextDeadline() (time.Time, bool) {
	for len(p.timers) > 0 && p.timers[0].canceled {
		heap.Pop(&p.timers)
	}
	if len(p.timers) == 0 {
		return time.Time{}, false
	}
	return p.timers[0].when, true
}
