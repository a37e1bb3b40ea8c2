package observation

import "slices"

// Map is an observable map that keeps keys in insertion order. Keys must
// be comparable.
type Map struct {
	keys      []any
	values    map[any]any
	observers []*MapObserver
}

func NewMap(entries ...MapEntry) *Map {
	m := &Map{values: make(map[any]any, len(entries))}
	for _, e := range entries {
		if _, ok := m.values[e.Key]; !ok {
			m.keys = append(m.keys, e.Key)
		}
		m.values[e.Key] = e.Value
	}
	return m
}

func (m *Map) Len() int { return len(m.keys) }

func (m *Map) Get(key any) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *Map) Has(key any) bool {
	_, ok := m.values[key]
	return ok
}

func (m *Map) Set(key, value any) {
	old, ok := m.values[key]
	if ok && SameValue(old, value) {
		return
	}
	m.values[key] = value
	if !ok {
		m.keys = append(m.keys, key)
		m.record(ChangeRecord{Kind: Add, Key: key, Value: value})
		return
	}
	m.record(ChangeRecord{Kind: Update, Key: key, Value: value, OldValue: old})
}

func (m *Map) Delete(key any) bool {
	old, ok := m.values[key]
	if !ok {
		return false
	}
	delete(m.values, key)
	if i := slices.Index(m.keys, key); i >= 0 {
		m.keys = slices.Delete(m.keys, i, i+1)
	}
	m.record(ChangeRecord{Kind: Delete, Key: key, OldValue: old})
	return true
}

func (m *Map) Clear() {
	if len(m.keys) == 0 {
		return
	}
	m.keys = nil
	m.values = map[any]any{}
	m.record(ChangeRecord{Kind: Clear})
}

func (m *Map) Keys() []any { return slices.Clone(m.keys) }

// Entries returns the pairs in insertion order.
func (m *Map) Entries() []MapEntry {
	out := make([]MapEntry, len(m.keys))
	for i, k := range m.keys {
		out[i] = MapEntry{Key: k, Value: m.values[k]}
	}
	return out
}

func (m *Map) record(r ChangeRecord) {
	for _, obs := range m.observers {
		obs.record(r)
	}
}
