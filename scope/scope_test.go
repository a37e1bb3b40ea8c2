package scope_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delaneyj/bindparty/observation"
	"github.com/delaneyj/bindparty/scope"
)

func TestContextForResolvesAtOneLevel(t *testing.T) {
	app := observation.NewObject(map[string]any{"title": "app", "user": "ann"})
	item := observation.NewObject(map[string]any{"label": "first"})

	root := scope.New(app)
	child := scope.FromParent(root, item)

	ctx, err := child.ContextFor("label", 0)
	require.NoError(t, err)
	assert.Same(t, item, ctx)

	ctx, err = child.ContextFor("title", 0)
	require.NoError(t, err)
	assert.Same(t, item, ctx, "no implicit fallthrough to the parent")

	ctx, err = child.ContextFor("title", 1)
	require.NoError(t, err)
	assert.Same(t, app, ctx)

	_, err = child.ContextFor("title", 2)
	assert.ErrorIs(t, err, scope.ErrAncestorOutOfRange)
}

func TestLocalsShadowBindingContext(t *testing.T) {
	vm := observation.NewObject(map[string]any{"index": "vm"})
	s := scope.New(vm).WithLocals(map[string]any{"index": 3, "$even": false})

	ctx, err := s.ContextFor("index", 0)
	require.NoError(t, err)
	locals, ok := ctx.(*observation.Object)
	require.True(t, ok)
	assert.Equal(t, 3, locals.Get("index"))

	v, ok := s.Local("$even")
	assert.True(t, ok)
	assert.Equal(t, false, v)

	_, ok = s.Local("missing")
	assert.False(t, ok)

	ctx, err = s.ContextFor("other", 0)
	require.NoError(t, err)
	assert.Same(t, vm, ctx)
}

func TestWithLocalsDoesNotMutateOriginal(t *testing.T) {
	base := scope.New("vm").WithLocals(map[string]any{"a": 1})
	derived := base.WithLocals(map[string]any{"b": 2})

	_, ok := base.Local("b")
	assert.False(t, ok)
	v, ok := derived.Local("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestThisAndParent(t *testing.T) {
	root := scope.New("root")
	mid := scope.FromParent(root, "mid")
	leaf := scope.FromParent(mid, "leaf")

	this, err := leaf.This(0)
	require.NoError(t, err)
	assert.Equal(t, "leaf", this)

	parent, err := leaf.This(1)
	require.NoError(t, err)
	assert.Equal(t, "mid", parent)

	assert.Equal(t, 2, leaf.Depth())
	assert.Equal(t, "mid", leaf.Parent().BindingContext)
	assert.Nil(t, root.Parent())

	var nilScope *scope.Scope
	_, err = nilScope.This(0)
	assert.ErrorIs(t, err, scope.ErrNilScope)
}
