package observation

import (
	"log/slog"
	"slices"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/delaneyj/bindparty/scheduler"
)

const DefaultDirtyCheckInterval = 120 * time.Millisecond

// DirtyCheckPolicy decides how often observed plain Go values are compared
// against their cached copies. Checks run as one persistent task on the
// Priority queue, Interval apart. A disabled checker only checks when
// Check is called.
type DirtyCheckPolicy struct {
	Priority scheduler.Priority
	Interval time.Duration
	Disabled bool
}

func DefaultDirtyCheckPolicy() DirtyCheckPolicy {
	return DirtyCheckPolicy{
		Priority: scheduler.MacroTask,
		Interval: DefaultDirtyCheckInterval,
	}
}

// DirtyChecker owns every DirtyCheckProperty that currently has
// subscribers.
type DirtyChecker struct {
	sched  *scheduler.Scheduler
	logger *slog.Logger
	policy DirtyCheckPolicy

	props  mapset.Set[*DirtyCheckProperty]
	seq    uint64
	task   *scheduler.Task
	checks uint64
}

func NewDirtyChecker(sched *scheduler.Scheduler, policy DirtyCheckPolicy, logger *slog.Logger) *DirtyChecker {
	if logger == nil {
		logger = slog.Default()
	}
	c := &DirtyChecker{
		sched:  sched,
		logger: logger,
		props:  mapset.NewThreadUnsafeSet[*DirtyCheckProperty](),
	}
	c.policy = c.normalize(policy)
	return c
}

func (c *DirtyChecker) Policy() DirtyCheckPolicy { return c.policy }

// Len is the number of properties being checked.
func (c *DirtyChecker) Len() int { return c.props.Cardinality() }

// Checks counts completed check passes.
func (c *DirtyChecker) Checks() uint64 { return c.checks }

// SetPolicy replaces the policy, restarting the check task if one runs.
func (c *DirtyChecker) SetPolicy(p DirtyCheckPolicy) {
	c.policy = c.normalize(p)
	c.stop()
	if c.props.Cardinality() > 0 {
		c.start()
	}
}

// Check compares every tracked property once, in registration order, and
// notifies the subscribers of those that changed.
func (c *DirtyChecker) Check() {
	props := c.props.ToSlice()
	slices.SortFunc(props, func(a, b *DirtyCheckProperty) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	for _, p := range props {
		if c.props.Contains(p) {
			p.check()
		}
	}
	c.checks++
}

func (c *DirtyChecker) normalize(p DirtyCheckPolicy) DirtyCheckPolicy {
	if !p.Priority.Valid() {
		c.logger.Warn("invalid dirty check priority, using default", "priority", int(p.Priority))
		p.Priority = scheduler.MacroTask
	}
	if p.Interval <= 0 {
		p.Interval = DefaultDirtyCheckInterval
	}
	return p
}

func (c *DirtyChecker) add(p *DirtyCheckProperty) {
	c.seq++
	p.seq = c.seq
	c.props.Add(p)
	if c.task == nil {
		c.start()
	}
}

func (c *DirtyChecker) remove(p *DirtyCheckProperty) {
	c.props.Remove(p)
	if c.props.Cardinality() == 0 {
		c.stop()
	}
}

func (c *DirtyChecker) start() {
	if c.policy.Disabled {
		return
	}
	c.task = c.sched.QueueTask(func() error {
		c.Check()
		return nil
	},
		scheduler.WithPriority(c.policy.Priority),
		scheduler.WithDelay(c.policy.Interval),
		scheduler.Persistent(),
	)
}

func (c *DirtyChecker) stop() {
	if c.task != nil {
		c.task.Cancel()
		c.task = nil
	}
}

// DirtyCheckProperty observes a property that cannot intercept its own
// writes: a struct field behind a pointer, a key of a plain Go map. It
// compares the live value against a cached copy on every check pass.
type DirtyCheckProperty struct {
	checker *DirtyChecker
	obj     any
	key     string
	seq     uint64
	subs    subscribers
	cached  any
}

var _ PropertyObserver = (*DirtyCheckProperty)(nil)

func (p *DirtyCheckProperty) GetValue() any { return GetProperty(p.obj, p.key) }

func (p *DirtyCheckProperty) SetValue(v any) error {
	return SetProperty(p.obj, p.key, v)
}

// IsDirty reports whether the value moved since the last check.
func (p *DirtyCheckProperty) IsDirty() bool {
	return !SameValue(p.cached, p.GetValue())
}

func (p *DirtyCheckProperty) Subscribe(s Subscriber) {
	if p.subs.add(s) && p.subs.len() == 1 {
		p.cached = p.GetValue()
		p.checker.add(p)
	}
}

func (p *DirtyCheckProperty) Unsubscribe(s Subscriber) {
	if p.subs.remove(s) && p.subs.len() == 0 {
		p.checker.remove(p)
	}
}

func (p *DirtyCheckProperty) SubscriberCount() int { return p.subs.len() }

func (p *DirtyCheckProperty) check() {
	current := p.GetValue()
	if SameValue(p.cached, current) {
		return
	}
	old := p.cached
	p.cached = current
	p.subs.notify(current, old)
}
