package scheduler

import "time"

// Platform is the host event loop the scheduler rides on. Each method
// maps to one flush trigger: microtask checkpoint, animation frame,
// timer and idle callback.
//
// Implementations are not required to be safe for concurrent use; the
// scheduler only calls them from the goroutine that drives the host loop.
type Platform interface {
	Now() time.Time
	QueueMicrotask(fn func())
	RequestAnimationFrame(fn func()) (cancel func())
	SetTimeout(d time.Duration, fn func()) (cancel func())
	RequestIdleCallback(fn func()) (cancel func())
}
