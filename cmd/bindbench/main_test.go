package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delaneyj/bindparty/config"
	"github.com/delaneyj/bindparty/internal/benchstore"
)

func TestScenariosRenderDeterministically(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "error"
	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			a, err := runScenarioOnce(cfg, sc, 7)
			require.NoError(t, err)
			b, err := runScenarioOnce(cfg, sc, 7)
			require.NoError(t, err)
			assert.Equal(t, a.digest, b.digest)
			assert.Positive(t, a.evaluations)
		})
	}
}

func TestPropagateReachesEveryChain(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "error"
	run, err := propagate(cfg, 3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, "propagate", run.Suite)
	assert.Equal(t, 5, run.Ops)
	assert.NotZero(t, run.Digest)
}

func TestSaveRunsAppendsHistory(t *testing.T) {
	cfg := config.Default()
	cfg.Bench.History = filepath.Join(t.TempDir(), "history.db")
	require.NoError(t, saveRuns(cfg, []benchstore.Run{
		{Suite: "scenarios", Name: "a", Ops: 1},
		{Suite: "scenarios", Name: "b", Ops: 2},
	}))

	store, err := benchstore.Open(cfg.Bench.History)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.Latest("scenarios", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].Name)
}
