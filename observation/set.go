package observation

import mapset "github.com/deckarep/golang-set/v2"

// Set is an observable set of comparable values.
type Set struct {
	items     mapset.Set[any]
	observers []*SetObserver
}

func NewSet(items ...any) *Set {
	return &Set{items: mapset.NewThreadUnsafeSet[any](items...)}
}

func (s *Set) Len() int { return s.items.Cardinality() }

func (s *Set) Has(v any) bool { return s.items.Contains(v) }

func (s *Set) Add(v any) bool {
	if !s.items.Add(v) {
		return false
	}
	s.record(ChangeRecord{Kind: Add, Value: v})
	return true
}

func (s *Set) Remove(v any) bool {
	if !s.items.Contains(v) {
		return false
	}
	s.items.Remove(v)
	s.record(ChangeRecord{Kind: Delete, Value: v})
	return true
}

func (s *Set) Clear() {
	if s.items.Cardinality() == 0 {
		return
	}
	s.items.Clear()
	s.record(ChangeRecord{Kind: Clear})
}

// Values returns the elements in no particular order.
func (s *Set) Values() []any { return s.items.ToSlice() }

// Snapshot returns an independent copy of the elements.
func (s *Set) Snapshot() mapset.Set[any] { return s.items.Clone() }

func (s *Set) record(r ChangeRecord) {
	for _, obs := range s.observers {
		obs.record(r)
	}
}
