package observation

import "github.com/delaneyj/bindparty/scheduler"

type computedFlags uint8

const (
	// a direct dependency notified; the value must be recomputed
	fDirty computedFlags = 1 << iota
	// something upstream is dirty; pull dependencies before deciding
	fPending
	fQueued
	fUpdating
)

// propagation runs the two phase update for one locator's computed
// observers. A dependency notification marks the observer dirty and every
// computed downstream of it pending, then one microtask pass updates the
// marked observers. Each one pulls its computed dependencies before it
// recomputes, so a diamond settles once and subscribers never see a value
// derived from half updated inputs.
type propagation struct {
	sched     *scheduler.Scheduler
	queue     []*ComputedObserver
	scheduled bool
}

func newPropagation(sched *scheduler.Scheduler) *propagation {
	return &propagation{sched: sched}
}

func (g *propagation) propagate(o *ComputedObserver) {
	o.flags |= fDirty
	g.enqueue(o)

	stack := []*ComputedObserver{o}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, s := range n.subs.subs {
			c, ok := s.(*ComputedObserver)
			if !ok || c.flags&(fDirty|fPending) != 0 {
				continue
			}
			c.flags |= fPending
			g.enqueue(c)
			stack = append(stack, c)
		}
	}

	if !g.scheduled {
		g.scheduled = true
		g.sched.QueueMicroTask(g.flush)
	}
}

func (g *propagation) enqueue(o *ComputedObserver) {
	if o.flags&fQueued != 0 {
		return
	}
	o.flags |= fQueued
	g.queue = append(g.queue, o)
}

func (g *propagation) flush() {
	// observers marked while flushing join this pass
	for i := 0; i < len(g.queue); i++ {
		o := g.queue[i]
		g.queue[i] = nil
		o.flags &^= fQueued
		o.update()
	}
	g.queue = g.queue[:0]
	g.scheduled = false
}

// update brings a marked observer current. Computed dependencies are
// pulled first; one that changes marks o dirty through HandleChange.
func (o *ComputedObserver) update() {
	if o.flags&(fDirty|fPending) == 0 || o.flags&fUpdating != 0 {
		return
	}
	if !o.listening {
		o.flags &^= fDirty | fPending
		return
	}

	o.flags |= fUpdating
	for _, d := range o.deps {
		if c, ok := d.(*ComputedObserver); ok {
			c.update()
		}
	}
	o.flags &^= fUpdating

	if o.flags&fDirty == 0 {
		o.flags &^= fPending
		return
	}
	o.flags &^= fDirty | fPending
	o.recompute()
}
