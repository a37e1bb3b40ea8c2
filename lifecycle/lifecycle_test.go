package lifecycle_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delaneyj/bindparty/binding"
	"github.com/delaneyj/bindparty/expr"
	"github.com/delaneyj/bindparty/lifecycle"
	"github.com/delaneyj/bindparty/observation"
	"github.com/delaneyj/bindparty/scheduler"
	"github.com/delaneyj/bindparty/scope"
)

type valueTarget struct {
	value  any
	writes int
}

func (t *valueTarget) GetValue() any { return t.value }
func (t *valueTarget) SetValue(v any) error {
	t.value = v
	t.writes++
	return nil
}

type recordingBindable struct {
	name string
	log  *[]string
	err  error
}

func (b *recordingBindable) Bind(*scope.Scope) error {
	*b.log = append(*b.log, "bind "+b.name)
	return b.err
}

func (b *recordingBindable) Unbind() { *b.log = append(*b.log, "unbind "+b.name) }

func setup() (*observation.Locator, *scheduler.ManualPlatform, *slog.Logger) {
	p := scheduler.NewManualPlatform()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := scheduler.New(p, scheduler.WithLogger(logger))
	return observation.NewLocator(s, observation.WithLogger(logger)), p, logger
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func record(log *[]string, c *lifecycle.Controller) {
	c.OnBound(func(c *lifecycle.Controller) { *log = append(*log, "bound "+c.Name()) })
	c.OnAttached(func(c *lifecycle.Controller) { *log = append(*log, "attached "+c.Name()) })
	c.OnDetached(func(c *lifecycle.Controller) { *log = append(*log, "detached "+c.Name()) })
	c.OnUnbound(func(c *lifecycle.Controller) { *log = append(*log, "unbound "+c.Name()) })
}

func TestChildrenCompleteBeforeParentHooks(t *testing.T) {
	l, _, logger := setup()
	var log []string
	parent := lifecycle.New("parent", l, lifecycle.WithLogger(logger))
	child := lifecycle.New("child", l, lifecycle.WithLogger(logger))
	record(&log, parent)
	record(&log, child)
	require.NoError(t, parent.AddBinding(&recordingBindable{name: "p", log: &log}))
	require.NoError(t, child.AddBinding(&recordingBindable{name: "c", log: &log}))
	require.NoError(t, parent.AddChild(child))

	require.NoError(t, parent.Bind(scope.New(nil)))
	require.NoError(t, parent.Attach())
	require.NoError(t, parent.Detach())
	require.NoError(t, parent.Unbind())

	assert.Equal(t, []string{
		"bind p", "bind c", "bound child", "bound parent",
		"attached child", "attached parent",
		"detached child", "detached parent",
		"unbind c", "unbound child", "unbind p", "unbound parent",
	}, log)
	assert.Equal(t, lifecycle.Unbound, child.State())
}

func TestIllegalTransitions(t *testing.T) {
	l, _, logger := setup()
	c := lifecycle.New("c", l, lifecycle.WithLogger(logger))

	err := c.Attach()
	var te *lifecycle.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, lifecycle.Created, te.From)
	assert.Equal(t, lifecycle.Attached, te.To)
	assert.ErrorAs(t, c.Detach(), &te)
	assert.ErrorAs(t, c.Unbind(), &te)

	require.NoError(t, c.Bind(nil))
	assert.ErrorAs(t, c.Bind(nil), &te)

	require.NoError(t, c.Dispose())
	assert.ErrorIs(t, c.Bind(nil), lifecycle.ErrDisposed)
	assert.ErrorIs(t, c.AddBinding(&recordingBindable{log: new([]string)}), lifecycle.ErrDisposed)
	assert.NoError(t, c.Dispose())
}

func TestAttachDetachCycles(t *testing.T) {
	l, p, logger := setup()
	vm := observation.NewObject(map[string]any{"name": "Ann"})
	target := &valueTarget{}
	c := lifecycle.New("form", l, lifecycle.WithLogger(logger), lifecycle.WithViewModel(vm))
	require.NoError(t, c.AddBinding(binding.New(expr.Path("name"), target, binding.ToView, l)))
	require.NoError(t, c.Bind(nil))

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Attach())
		require.NoError(t, c.Detach())
	}

	vm.Set("name", "Bo")
	p.Drain()
	assert.Equal(t, "Bo", target.value, "detached bindings keep flushing")

	require.NoError(t, c.Unbind())
	vm.Set("name", "Cy")
	p.Drain()
	assert.Equal(t, "Bo", target.value)
	assert.Equal(t, 2, target.writes)
}

func TestBindJoinsBindingErrors(t *testing.T) {
	l, _, logger := setup()
	var log []string
	boom := errors.New("boom")
	c := lifecycle.New("c", l, lifecycle.WithLogger(logger))
	require.NoError(t, c.AddBinding(&recordingBindable{name: "a", log: &log, err: boom}))
	require.NoError(t, c.AddBinding(&recordingBindable{name: "b", log: &log}))

	err := c.Bind(nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, lifecycle.Bound, c.State())
	assert.Equal(t, []string{"bind a", "bind b"}, log)
}

func TestUnbindContinuesPastChildErrors(t *testing.T) {
	l, _, logger := setup()
	var log []string
	parent := lifecycle.New("parent", l, lifecycle.WithLogger(logger))
	a := lifecycle.New("a", l, lifecycle.WithLogger(logger))
	b := lifecycle.New("b", l, lifecycle.WithLogger(logger))
	require.NoError(t, parent.AddBinding(&recordingBindable{name: "p", log: &log}))
	require.NoError(t, a.AddBinding(&recordingBindable{name: "a", log: &log}))
	require.NoError(t, b.AddBinding(&recordingBindable{name: "b", log: &log}))
	require.NoError(t, parent.AddChild(a))
	require.NoError(t, parent.AddChild(b))
	require.NoError(t, parent.Bind(scope.New(nil)))

	require.NoError(t, a.Dispose())
	log = nil

	err := parent.Unbind()
	assert.ErrorIs(t, err, lifecycle.ErrDisposed)
	assert.Equal(t, []string{"unbind b", "unbind p"}, log)
	assert.Equal(t, lifecycle.Unbound, b.State())
	assert.Equal(t, lifecycle.Unbound, parent.State())
}

func TestLateAdditionsCatchUp(t *testing.T) {
	l, _, logger := setup()
	var log []string
	parent := lifecycle.New("parent", l, lifecycle.WithLogger(logger))
	require.NoError(t, parent.Bind(nil))
	require.NoError(t, parent.Attach())

	require.NoError(t, parent.AddBinding(&recordingBindable{name: "late", log: &log}))
	child := lifecycle.New("child", l, lifecycle.WithLogger(logger), lifecycle.WithViewModel(map[string]any{"k": 1}))
	record(&log, child)
	require.NoError(t, parent.AddChild(child))

	assert.Equal(t, []string{"bind late", "bound child", "attached child"}, log)
	assert.Equal(t, lifecycle.Attached, child.State())
	assert.Same(t, parent, child.Parent())
	assert.Equal(t, 1, child.Scope().Depth()-parent.Scope().Depth())

	assert.Error(t, lifecycle.New("other", l).AddChild(child), "a child has one parent")
}

type person struct {
	Name string
}

func TestDisposePrunesObservers(t *testing.T) {
	l, _, logger := setup()
	vm := &person{Name: "Ann"}
	target := &valueTarget{}
	c := lifecycle.New("c", l, lifecycle.WithLogger(logger), lifecycle.WithViewModel(vm))
	require.NoError(t, c.AddBinding(binding.New(expr.Path("Name"), target, binding.ToView, l)))
	cleaned := false
	c.OnDispose(func() { cleaned = true })

	require.NoError(t, c.Bind(nil))
	require.NoError(t, c.Attach())
	assert.Equal(t, "Ann", target.value)
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 1, l.DirtyChecker().Len())

	require.NoError(t, c.Dispose())
	assert.True(t, cleaned)
	assert.Zero(t, l.Len())
	assert.Zero(t, l.DirtyChecker().Len())
	assert.Equal(t, lifecycle.Disposed, c.State())
}

func TestSettledWaitsForRender(t *testing.T) {
	l, p, logger := setup()
	vm := observation.NewObject(map[string]any{"name": "Ann"})
	target := &valueTarget{}
	c := lifecycle.New("c", l, lifecycle.WithLogger(logger), lifecycle.WithViewModel(vm))
	require.NoError(t, c.AddBinding(binding.New(expr.Path("name"), target, binding.ToView, l)))
	require.NoError(t, c.Bind(nil))
	require.NoError(t, c.Attach())
	assert.True(t, isClosed(c.Settled()))

	vm.Set("name", "Bo")
	settled := c.Settled()
	p.RunMicrotasks()
	assert.False(t, isClosed(settled))
	assert.Equal(t, "Ann", target.value)

	p.Drain()
	assert.True(t, isClosed(settled))
	assert.Equal(t, "Bo", target.value)
}
