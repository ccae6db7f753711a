package deepq

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"negative dims":     func(c *Config) { c.ObservationDim = -1 },
		"zero capacity":     func(c *Config) { c.BufferCapacity = 0 },
		"zero batch":        func(c *Config) { c.BatchSize = 0 },
		"unknown sampling":  func(c *Config) { c.Sampling = "prioritised" },
		"zero discount":     func(c *Config) { c.Discount = 0 },
		"unit discount":     func(c *Config) { c.Discount = 1 },
		"zero step size":    func(c *Config) { c.LearningRate = 0 },
		"unknown solver":    func(c *Config) { c.Solver = "lbfgs" },
		"momentum too high": func(c *Config) { c.Momentum = 1 },
		"epsilon inverted":  func(c *Config) { c.EpsilonMin = 0.5; c.EpsilonMax = 0.1 },
		"epsilon above one": func(c *Config) { c.EpsilonMax = 1.5 },
		"negative decay":    func(c *Config) { c.Decay = -1 },
		"zero sync":         func(c *Config) { c.TargetSyncInterval = 0 },
		"zero tau":          func(c *Config) { c.Tau = 0 },
		"tau above one":     func(c *Config) { c.Tau = 1.5 },
		"bad activation":    func(c *Config) { c.Activation = "softsign" },
		"bad act with":      func(c *Config) { c.ActWith = "both" },
		"bad weight init":   func(c *Config) { c.WeightInit = "orthogonal" },
		"empty bias init":   func(c *Config) { c.BiasInit = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := DefaultConfig()
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestConfigSolvers(t *testing.T) {
	for _, name := range []string{"sgd", "Adam", "RMSPROP", "vanilla"} {
		c := DefaultConfig()
		c.Solver = name
		s, err := c.newSolver()
		require.NoError(t, err, name)
		require.NotNil(t, s.Solver)
	}
}

func TestConfigWithDims(t *testing.T) {
	c, err := DefaultConfig().withDims(newCounterEnv(6, 0))
	require.NoError(t, err)
	require.Equal(t, 6, c.ObservationDim)
	require.Equal(t, 4, c.ActionCount)

	explicit := DefaultConfig()
	explicit.ObservationDim = 6
	explicit.ActionCount = 4
	c, err = explicit.withDims(newCounterEnv(6, 0))
	require.NoError(t, err)
	require.Equal(t, explicit, c)
}

func TestNetworksStartEqual(t *testing.T) {
	c, err := testConfig().withDims(newCounterEnv(3, 0))
	require.NoError(t, err)

	online, target, err := c.newNetworks()
	require.NoError(t, err)
	require.Equal(t, online.Params(), target.Params())

	again, _, err := c.newNetworks()
	require.NoError(t, err)
	require.Equal(t, online.Params(), again.Params())
}

func TestNetworksUseInitializers(t *testing.T) {
	c, err := testConfig().withDims(newCounterEnv(3, 0))
	require.NoError(t, err)
	glorot, _, err := c.newNetworks()
	require.NoError(t, err)

	c.WeightInit = "hen"
	c.BiasInit = "Ones"
	he, _, err := c.newNetworks()
	require.NoError(t, err)
	require.NotEqual(t, glorot.Params(), he.Params())

	// Zero biases under the default, unit biases once configured
	var zeroes, ones int
	for i, p := range he.Params() {
		if allEqual(p, 1) {
			ones++
		}
		if allEqual(glorot.Params()[i], 0) {
			zeroes++
		}
	}
	require.Equal(t, len(c.Hidden)+1, ones)
	require.Equal(t, len(c.Hidden)+1, zeroes)
}

func allEqual(values []float64, v float64) bool {
	for _, x := range values {
		if x != v {
			return false
		}
	}
	return true
}
