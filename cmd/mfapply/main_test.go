package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/MatFree/ceed"
	"github.com/notargets/MatFree/config"
)

func TestRun(t *testing.T) {
	cfg := config.Default()

	t.Run("Mass", func(t *testing.T) {
		assert.NoError(t, run(cfg, "/cpu/self/ref", "mass", ""))
	})
	t.Run("PoissonOnMock", func(t *testing.T) {
		assert.NoError(t, run(cfg, "/cpu/self/mock", "poisson", ""))
	})
	t.Run("UnknownProblem", func(t *testing.T) {
		assert.Error(t, run(cfg, "", "heat", ""))
	})
	t.Run("MissingMesh", func(t *testing.T) {
		assert.Error(t, run(cfg, "", "mass", filepath.Join(t.TempDir(), "absent.neu")))
	})
}

func TestLineProblem(t *testing.T) {
	cfg := config.Default()
	cfg.Workers = 3
	c, err := ceed.Init("/cpu/self/ref", cfg)
	require.NoError(t, err)
	defer c.Close()

	lp, err := newLineProblem(c, 5, 4, 5, "Mass1DBuild", "MassApply")
	require.NoError(t, err)
	defer func() { require.NoError(t, lp.Destroy()) }()

	// the mass matrix integrates x against every basis function; the sum
	// of the result is the integral of x over [0,1]
	vals, err := lp.Apply(func(x float64) float64 { return x })
	require.NoError(t, err)
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	assert.InDelta(t, 0.5, sum, 1e-12)

	_, err = newLineProblem(c, 5, 4, 5, "Mass1DBuild", "NoSuchQFunction")
	assert.Error(t, err)
}
