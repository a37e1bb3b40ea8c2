package observation

import (
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

type ChangeKind int

const (
	// Splice removes Removed at Index and inserts Added there (arrays).
	Splice ChangeKind = iota
	// Update replaces the value at Index (arrays) or Key (maps).
	Update
	// Add inserts Key with Value (maps) or the element Value (sets).
	Add
	// Delete removes Key (maps) or the element Value (sets).
	Delete
	// Clear empties the collection.
	Clear
)

func (k ChangeKind) String() string {
	switch k {
	case Splice:
		return "splice"
	case Update:
		return "update"
	case Add:
		return "add"
	case Delete:
		return "delete"
	case Clear:
		return "clear"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// ChangeRecord describes one mutation of a collection. Replaying the
// records of a turn in order against a snapshot taken before the turn
// yields the collection as it is after the turn.
type ChangeRecord struct {
	Kind     ChangeKind
	Index    int
	Key      any
	Removed  []any
	Added    []any
	Value    any
	OldValue any
}

// ApplyArrayChanges replays records against a copy of snapshot.
func ApplyArrayChanges(snapshot []any, records []ChangeRecord) []any {
	out := slices.Clone(snapshot)
	for _, r := range records {
		switch r.Kind {
		case Splice:
			end := min(r.Index+len(r.Removed), len(out))
			out = slices.Replace(out, r.Index, end, r.Added...)
		case Update:
			out[r.Index] = r.Value
		case Clear:
			out = out[:0]
		}
	}
	return out
}

// MapEntry is one key/value pair of an insertion-ordered map.
type MapEntry struct {
	Key   any
	Value any
}

// ApplyMapChanges replays records against a copy of snapshot, keeping
// insertion order the way Map does.
func ApplyMapChanges(snapshot []MapEntry, records []ChangeRecord) []MapEntry {
	out := slices.Clone(snapshot)
	find := func(key any) int {
		return slices.IndexFunc(out, func(e MapEntry) bool { return e.Key == key })
	}
	for _, r := range records {
		switch r.Kind {
		case Add, Update:
			if i := find(r.Key); i >= 0 {
				out[i].Value = r.Value
			} else {
				out = append(out, MapEntry{Key: r.Key, Value: r.Value})
			}
		case Delete:
			if i := find(r.Key); i >= 0 {
				out = slices.Delete(out, i, i+1)
			}
		case Clear:
			out = out[:0]
		}
	}
	return out
}

// ApplySetChanges replays records against a clone of snapshot.
func ApplySetChanges(snapshot mapset.Set[any], records []ChangeRecord) mapset.Set[any] {
	out := snapshot.Clone()
	for _, r := range records {
		switch r.Kind {
		case Add:
			out.Add(r.Value)
		case Delete:
			out.Remove(r.Value)
		case Clear:
			out.Clear()
		}
	}
	return out
}
