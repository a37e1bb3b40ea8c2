package observation_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/delaneyj/bindparty/observation"
	"github.com/delaneyj/bindparty/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type change struct {
	New, Old any
}

type spy struct {
	changes []change
}

func (s *spy) HandleChange(newValue, oldValue any) {
	s.changes = append(s.changes, change{newValue, oldValue})
}

type collectionSpy struct {
	batches [][]observation.ChangeRecord
}

func (s *collectionSpy) HandleCollectionChange(records []observation.ChangeRecord) {
	s.batches = append(s.batches, records)
}

func setup(opts ...observation.LocatorOption) (*observation.Locator, *scheduler.ManualPlatform) {
	p := scheduler.NewManualPlatform()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := scheduler.New(p, scheduler.WithLogger(logger))
	opts = append([]observation.LocatorOption{observation.WithLogger(logger)}, opts...)
	return observation.NewLocator(s, opts...), p
}

func TestSetterObserverIgnoresSameValue(t *testing.T) {
	l, p := setup()
	user := observation.NewObject(map[string]any{"name": "Ann"})
	obs, err := l.GetObserver(user, "name")
	require.NoError(t, err)
	s := &spy{}
	obs.Subscribe(s)

	user.Set("name", "Ann")
	p.Drain()
	assert.Empty(t, s.changes)
}

func TestSetterObserverIgnoresStructurallyEqualCopies(t *testing.T) {
	l, p := setup()
	tags := []any{"a"}
	user := observation.NewObject(map[string]any{"tags": tags})
	obs, err := l.GetObserver(user, "tags")
	require.NoError(t, err)
	s := &spy{}
	obs.Subscribe(s)

	user.Set("tags", tags)
	p.Drain()
	assert.Empty(t, s.changes)

	user.Set("tags", []any{"a"})
	p.Drain()
	assert.Len(t, s.changes, 1, "a different slice is a different value")
}

func TestSetterObserverNotifiesOncePerTurn(t *testing.T) {
	l, p := setup()
	user := observation.NewObject(map[string]any{"name": "Ann"})
	obs, err := l.GetObserver(user, "name")
	require.NoError(t, err)
	s := &spy{}
	obs.Subscribe(s)

	user.Set("name", "Bea")
	user.Set("name", "Cid")
	require.NoError(t, obs.(observation.PropertyObserver).SetValue("Dee"))

	assert.Equal(t, "Dee", user.Get("name"), "writes apply immediately")
	assert.Empty(t, s.changes, "notification waits for the microtask flush")

	p.RunMicrotasks()
	assert.Equal(t, []change{{"Dee", "Ann"}}, s.changes)

	user.Set("name", "Eve")
	p.RunMicrotasks()
	assert.Equal(t, []change{{"Dee", "Ann"}, {"Eve", "Dee"}}, s.changes)
}

func TestSetterObserverSkipsRoundTrip(t *testing.T) {
	l, p := setup()
	counter := observation.NewObject(map[string]any{"n": 1})
	obs, err := l.GetObserver(counter, "n")
	require.NoError(t, err)
	s := &spy{}
	obs.Subscribe(s)

	counter.Set("n", 2)
	counter.Set("n", 1)
	p.Drain()
	assert.Empty(t, s.changes)
}

func TestUnsubscribedObserverStopsNotifying(t *testing.T) {
	l, p := setup()
	user := observation.NewObject(map[string]any{"name": "Ann"})
	obs, _ := l.GetObserver(user, "name")
	s := &spy{}
	obs.Subscribe(s)
	obs.Subscribe(s)
	assert.Equal(t, 1, obs.SubscriberCount())

	obs.Unsubscribe(s)
	user.Set("name", "Bea")
	p.Drain()
	assert.Empty(t, s.changes)
	assert.Equal(t, "Bea", obs.GetValue())
}

func TestObjectDeleteNotifies(t *testing.T) {
	l, p := setup()
	user := observation.NewObject(map[string]any{"name": "Ann", "age": 3})
	obs, _ := l.GetObserver(user, "name")
	s := &spy{}
	obs.Subscribe(s)

	user.Delete("name")
	p.Drain()
	assert.Equal(t, []change{{nil, "Ann"}}, s.changes)
	assert.Equal(t, []string{"age"}, user.Keys())
	assert.False(t, user.Has("name"))
}

func TestLocatorIsIdentityMapped(t *testing.T) {
	l, _ := setup()
	user := observation.NewObject(map[string]any{"name": "Ann"})
	a, _ := l.GetObserver(user, "name")
	b, _ := l.GetObserver(user, "name")
	assert.Same(t, a, b)

	other, _ := l.GetObserver(user, "age")
	assert.NotSame(t, a, other)

	type point struct{ X, Y int }
	pt := &point{}
	x1, _ := l.GetObserver(pt, "X")
	x2, _ := l.GetObserver(pt, "x")
	assert.NotSame(t, x1, x2, "keys are matched literally for identity")

	x3, _ := l.GetObserver(pt, "X")
	assert.Same(t, x1, x3)
}

func TestLocatorsNotifyOnTheirOwnScheduler(t *testing.T) {
	l1, p1 := setup()
	l2, p2 := setup()
	user := observation.NewObject(map[string]any{"name": "Ann"})
	a, _ := l1.GetObserver(user, "name")
	b, _ := l2.GetObserver(user, "name")
	again, _ := l1.GetObserver(user, "name")
	assert.Same(t, a, again, "one observer per object and scheduler")
	assert.NotSame(t, a, b)

	sa, sb := &spy{}, &spy{}
	a.Subscribe(sa)
	b.Subscribe(sb)
	user.Set("name", "Bo")
	assert.Equal(t, "Bo", b.GetValue())

	p2.RunMicrotasks()
	assert.Empty(t, sa.changes, "l1's subscribers wait for l1's scheduler")
	assert.Equal(t, []change{{"Bo", "Ann"}}, sb.changes)
	p1.RunMicrotasks()
	assert.Equal(t, []change{{"Bo", "Ann"}}, sa.changes)

	items := observation.NewArray(1)
	ca, _ := l1.GetCollectionObserver(items)
	cb, _ := l2.GetCollectionObserver(items)
	ra, rb := &collectionSpy{}, &collectionSpy{}
	ca.SubscribeCollection(ra)
	cb.SubscribeCollection(rb)
	items.Push(2)
	p2.RunMicrotasks()
	assert.Empty(t, ra.batches)
	assert.Len(t, rb.batches, 1)
	p1.RunMicrotasks()
	assert.Len(t, ra.batches, 1)
}

func TestLocatorRejectsNil(t *testing.T) {
	l, _ := setup()
	_, err := l.GetObserver(nil, "x")
	assert.ErrorIs(t, err, observation.ErrNilTarget)
}

func TestPrimitiveObserver(t *testing.T) {
	l, p := setup()
	obs, err := l.GetObserver("héllo", "length")
	require.NoError(t, err)
	require.IsType(t, &observation.PrimitiveObserver{}, obs)
	assert.Equal(t, 5, obs.GetValue())

	s := &spy{}
	obs.Subscribe(s)
	assert.Zero(t, obs.SubscriberCount())
	p.Drain()
	assert.Empty(t, s.changes)
	assert.ErrorIs(t, obs.(observation.PropertyObserver).SetValue(1), observation.ErrReadOnly)

	type pair struct{ A int }
	byValue, _ := l.GetObserver(pair{A: 1}, "A")
	assert.IsType(t, &observation.PrimitiveObserver{}, byValue)
	assert.Equal(t, 1, byValue.GetValue())
}

type adapted struct{ v int }

type fixedObserver struct {
	observation.PrimitiveObserver
	value int
}

func (f *fixedObserver) GetValue() any { return f.value }

func TestAdapterSuppliesObservers(t *testing.T) {
	var calls int
	adapter := observation.AdapterFunc(func(l *observation.Locator, obj any, key string) (observation.Observer, bool) {
		a, ok := obj.(*adapted)
		if !ok || key != "v" {
			return nil, false
		}
		calls++
		return &fixedObserver{value: a.v * 10}, true
	})
	l, _ := setup(observation.WithAdapter(adapter))

	target := &adapted{v: 4}
	obs, err := l.GetObserver(target, "v")
	require.NoError(t, err)
	assert.Equal(t, 40, obs.GetValue())

	again, _ := l.GetObserver(target, "v")
	assert.Same(t, obs, again)
	assert.Equal(t, 1, calls)

	user := observation.NewObject(nil)
	fallback, _ := l.GetObserver(user, "v")
	assert.IsType(t, &observation.SetterObserver{}, fallback)
}

func TestGetAccessorDoesNotWrap(t *testing.T) {
	l, p := setup()
	user := observation.NewObject(map[string]any{"name": "Ann"})
	acc := l.GetAccessor(user, "name")
	require.NoError(t, acc.SetValue("Bea"))
	assert.Equal(t, "Bea", acc.GetValue())
	p.Drain()

	type form struct{ Count int }
	f := &form{}
	require.NoError(t, l.GetAccessor(f, "count").SetValue(3.0))
	assert.Equal(t, 3, f.Count)
	assert.Zero(t, l.Len())
}

func TestPruneForgetsIdleObservers(t *testing.T) {
	l, _ := setup()
	type form struct{ A, B int }
	f := &form{}
	a, _ := l.GetObserver(f, "A")
	_, _ = l.GetObserver(f, "B")
	s := &spy{}
	a.Subscribe(s)
	assert.Equal(t, 2, l.Len())

	assert.Equal(t, 1, l.Prune())
	assert.Equal(t, 1, l.Len())
	a.Unsubscribe(s)
}
