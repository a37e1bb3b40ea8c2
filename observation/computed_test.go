package observation_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delaneyj/bindparty/observation"
)

func TestComputedObserverFollowsDependencies(t *testing.T) {
	l, p := setup()
	person := observation.NewObject(map[string]any{"first": "Ann", "last": "Lee"})
	evaluations := 0
	l.RegisterComputed(person, "full", func(obj any) any {
		evaluations++
		o := obj.(*observation.Object)
		return fmt.Sprintf("%v %v", o.Get("first"), o.Get("last"))
	}, "first", "last")

	obs, err := l.GetObserver(person, "full")
	require.NoError(t, err)
	require.IsType(t, &observation.ComputedObserver{}, obs)
	assert.Equal(t, "Ann Lee", obs.GetValue())

	s := &spy{}
	obs.Subscribe(s)
	person.Set("first", "Bea")
	p.RunMicrotasks()
	assert.Equal(t, []change{{"Bea Lee", "Ann Lee"}}, s.changes)

	person.Set("last", "Lee")
	p.RunMicrotasks()
	assert.Len(t, s.changes, 1)

	obs.Unsubscribe(s)
	first, _ := l.GetObserver(person, "first")
	assert.Zero(t, first.SubscriberCount())

	before := evaluations
	person.Set("first", "Cid")
	p.Drain()
	assert.Equal(t, before, evaluations, "idle computed observers do not recompute")
}

type cart struct {
	Items *observation.Array
}

func TestComputedObserverTracksCollectionContents(t *testing.T) {
	l, p := setup()
	l.RegisterComputed(&cart{}, "total", func(obj any) any {
		total := 0
		for _, v := range obj.(*cart).Items.Items() {
			total += v.(int)
		}
		return total
	}, "items[]")

	c := &cart{Items: observation.NewArray(1, 2)}
	obs, err := l.GetObserver(c, "total")
	require.NoError(t, err)
	s := &spy{}
	obs.Subscribe(s)
	assert.Equal(t, 3, obs.GetValue())

	c.Items.Push(4)
	p.RunMicrotasks()
	assert.Equal(t, []change{{7, 3}}, s.changes)
}

func TestComputedSetterWritesThrough(t *testing.T) {
	l, p := setup()
	temp := observation.NewObject(map[string]any{"celsius": 0.0})
	l.RegisterComputedSetter(temp, "fahrenheit",
		func(obj any) any { return obj.(*observation.Object).Get("celsius").(float64)*9/5 + 32 },
		func(obj, v any) error {
			obj.(*observation.Object).Set("celsius", (v.(float64)-32)*5/9)
			return nil
		},
		"celsius",
	)

	acc := l.GetAccessor(temp, "fahrenheit")
	require.NoError(t, acc.SetValue(212.0))
	assert.Equal(t, 100.0, temp.Get("celsius"))
	assert.Equal(t, 212.0, acc.GetValue())
	p.Drain()

	plain := observation.NewObject(nil)
	l.RegisterComputed(plain, "x", func(any) any { return 1 })
	obs, _ := l.GetObserver(plain, "x")
	assert.ErrorIs(t, obs.(observation.PropertyObserver).SetValue(2), observation.ErrReadOnly)
}

func TestComputedDiamondNotifiesOnce(t *testing.T) {
	l, p := setup()
	o := observation.NewObject(map[string]any{"x": 1})
	l.RegisterComputed(o, "a", func(obj any) any { return obj.(*observation.Object).Get("x").(int) + 1 }, "x")
	l.RegisterComputed(o, "b", func(obj any) any { return obj.(*observation.Object).Get("x").(int) * 2 }, "x")
	sums := 0
	var seen [][2]any
	l.RegisterComputed(o, "c", func(obj any) any {
		sums++
		a, b := l.GetValue(obj, "a"), l.GetValue(obj, "b")
		seen = append(seen, [2]any{a, b})
		return a.(int) + b.(int)
	}, "a", "b")

	obs, err := l.GetObserver(o, "c")
	require.NoError(t, err)
	s := &spy{}
	obs.Subscribe(s)
	assert.Equal(t, 4, obs.GetValue())

	sums, seen = 0, nil
	o.Set("x", 2)
	p.RunMicrotasks()
	assert.Equal(t, []change{{7, 4}}, s.changes)
	assert.Equal(t, 1, sums)
	assert.Equal(t, [][2]any{{3, 4}}, seen, "c never reads a half updated pair")

	o.Set("x", 2)
	p.RunMicrotasks()
	assert.Len(t, s.changes, 1)
}

func TestComputedReadPullsPendingUpdate(t *testing.T) {
	l, p := setup()
	o := observation.NewObject(map[string]any{"x": 1})
	l.RegisterComputed(o, "double", func(obj any) any { return obj.(*observation.Object).Get("x").(int) * 2 }, "x")
	l.RegisterComputed(o, "quad", func(obj any) any { return l.GetValue(obj, "double").(int) * 2 }, "double")

	quad, err := l.GetObserver(o, "quad")
	require.NoError(t, err)
	s := &spy{}
	quad.Subscribe(s)
	double, _ := l.GetObserver(o, "double")

	o.Set("x", 5)
	double.(observation.Subscriber).HandleChange(5, 1)
	assert.Equal(t, 20, quad.GetValue(), "reading a marked observer settles it first")
	assert.Equal(t, 10, double.GetValue())

	p.RunMicrotasks()
	assert.Equal(t, []change{{20, 4}}, s.changes)
}
