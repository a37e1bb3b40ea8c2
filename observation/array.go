package observation

import (
	"fmt"
	"slices"
)

// Array is an observable ordered list. Mutations made through its
// methods are recorded once an ArrayObserver has been installed.
type Array struct {
	items     []any
	observers []*ArrayObserver
}

func NewArray(items ...any) *Array {
	return &Array{items: slices.Clone(items)}
}

func (a *Array) Len() int { return len(a.items) }

// At returns the item at i, or nil when i is out of range.
func (a *Array) At(i int) any {
	if i < 0 || i >= len(a.items) {
		return nil
	}
	return a.items[i]
}

// Items returns a copy of the current items.
func (a *Array) Items() []any { return slices.Clone(a.items) }

func (a *Array) IndexOf(v any) int {
	return slices.IndexFunc(a.items, func(item any) bool { return SameValue(item, v) })
}

func (a *Array) Push(items ...any) int {
	if len(items) == 0 {
		return len(a.items)
	}
	at := len(a.items)
	a.items = append(a.items, items...)
	a.record(ChangeRecord{Kind: Splice, Index: at, Added: slices.Clone(items)})
	return len(a.items)
}

func (a *Array) Pop() any {
	if len(a.items) == 0 {
		return nil
	}
	return a.Splice(len(a.items)-1, 1)[0]
}

func (a *Array) Shift() any {
	if len(a.items) == 0 {
		return nil
	}
	return a.Splice(0, 1)[0]
}

func (a *Array) Unshift(items ...any) int {
	a.Splice(0, 0, items...)
	return len(a.items)
}

// Splice removes deleteCount items at start, inserts items there and
// returns the removed items. A negative start counts from the end.
func (a *Array) Splice(start, deleteCount int, items ...any) []any {
	n := len(a.items)
	if start < 0 {
		start = max(n+start, 0)
	}
	start = min(start, n)
	deleteCount = max(min(deleteCount, n-start), 0)
	if deleteCount == 0 && len(items) == 0 {
		return nil
	}

	removed := slices.Clone(a.items[start : start+deleteCount])
	a.items = slices.Replace(a.items, start, start+deleteCount, items...)
	a.record(ChangeRecord{Kind: Splice, Index: start, Removed: removed, Added: slices.Clone(items)})
	return removed
}

// SetAt replaces the item at i. Writing at Len appends.
func (a *Array) SetAt(i int, v any) error {
	switch {
	case i == len(a.items):
		a.Push(v)
		return nil
	case i < 0 || i > len(a.items):
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(a.items))
	}
	old := a.items[i]
	if SameValue(old, v) {
		return nil
	}
	a.items[i] = v
	a.record(ChangeRecord{Kind: Update, Index: i, Value: v, OldValue: old})
	return nil
}

func (a *Array) Reverse() {
	if len(a.items) < 2 {
		return
	}
	before := slices.Clone(a.items)
	slices.Reverse(a.items)
	a.record(ChangeRecord{Kind: Splice, Index: 0, Removed: before, Added: slices.Clone(a.items)})
}

// Sort reorders the items stably with cmp.
func (a *Array) Sort(cmp func(x, y any) int) {
	if len(a.items) < 2 {
		return
	}
	before := slices.Clone(a.items)
	slices.SortStableFunc(a.items, cmp)
	a.record(ChangeRecord{Kind: Splice, Index: 0, Removed: before, Added: slices.Clone(a.items)})
}

// Replace swaps the whole content for items.
func (a *Array) Replace(items []any) {
	a.Splice(0, len(a.items), items...)
}

func (a *Array) Clear() {
	if len(a.items) == 0 {
		return
	}
	removed := a.items
	a.items = nil
	a.record(ChangeRecord{Kind: Clear, Removed: removed})
}

func (a *Array) record(r ChangeRecord) {
	for _, obs := range a.observers {
		obs.record(r)
	}
}
