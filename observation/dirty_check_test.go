package observation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delaneyj/bindparty/observation"
	"github.com/delaneyj/bindparty/scheduler"
)

type profile struct {
	Name  string
	Score int
}

func TestDirtyCheckingPlainStructs(t *testing.T) {
	l, p := setup()
	prof := &profile{Name: "Ann"}
	obs, err := l.GetObserver(prof, "name")
	require.NoError(t, err)
	require.IsType(t, &observation.DirtyCheckProperty{}, obs)

	s := &spy{}
	obs.Subscribe(s)
	checker := l.DirtyChecker()
	assert.Equal(t, 1, checker.Len())

	prof.Name = "Bea"
	p.Drain()
	assert.Empty(t, s.changes, "nothing is checked before the interval")

	p.Advance(observation.DefaultDirtyCheckInterval)
	assert.Equal(t, []change{{"Bea", "Ann"}}, s.changes)

	p.Advance(observation.DefaultDirtyCheckInterval)
	assert.Len(t, s.changes, 1, "unchanged values are quiet")

	obs.Unsubscribe(s)
	assert.Zero(t, checker.Len())
	checks := checker.Checks()
	p.Advance(time.Second)
	assert.Equal(t, checks, checker.Checks(), "the check task stops with the last subscriber")
}

func TestDirtyCheckingPlainMaps(t *testing.T) {
	l, p := setup()
	bag := map[string]any{"count": 1}
	obs, err := l.GetObserver(bag, "count")
	require.NoError(t, err)
	again, _ := l.GetObserver(bag, "count")
	assert.Same(t, obs, again)

	s := &spy{}
	obs.Subscribe(s)
	require.NoError(t, obs.(observation.PropertyObserver).SetValue(2))
	assert.Equal(t, 2, bag["count"])

	p.Advance(observation.DefaultDirtyCheckInterval)
	assert.Equal(t, []change{{2, 1}}, s.changes)
}

func TestDirtyCheckPolicyIsConfigurable(t *testing.T) {
	l, p := setup(observation.WithDirtyCheckPolicy(observation.DirtyCheckPolicy{
		Priority: scheduler.Render,
		Interval: 10 * time.Millisecond,
	}))
	assert.Equal(t, scheduler.Render, l.DirtyChecker().Policy().Priority)

	prof := &profile{Score: 1}
	obs, _ := l.GetObserver(prof, "Score")
	s := &spy{}
	obs.Subscribe(s)

	prof.Score = 5
	p.Advance(10 * time.Millisecond)
	assert.Equal(t, []change{{5, 1}}, s.changes)
	assert.EqualValues(t, 1, l.DirtyChecker().Checks())
}

func TestDisabledDirtyCheckerOnlyChecksOnDemand(t *testing.T) {
	l, p := setup(observation.WithDirtyCheckPolicy(observation.DirtyCheckPolicy{
		Priority: scheduler.MacroTask,
		Disabled: true,
	}))
	prof := &profile{Score: 1}
	obs, _ := l.GetObserver(prof, "Score")
	s := &spy{}
	obs.Subscribe(s)

	prof.Score = 2
	p.Advance(time.Second)
	assert.Empty(t, s.changes)

	l.DirtyChecker().Check()
	assert.Equal(t, []change{{2, 1}}, s.changes)
}

func TestDirtyCheckPolicyDefaults(t *testing.T) {
	def := observation.DefaultDirtyCheckPolicy()
	assert.Equal(t, scheduler.MacroTask, def.Priority)
	assert.Equal(t, 120*time.Millisecond, def.Interval)

	l, _ := setup(observation.WithDirtyCheckPolicy(observation.DirtyCheckPolicy{Priority: scheduler.Priority(9)}))
	assert.Equal(t, def, l.DirtyChecker().Policy())
}
