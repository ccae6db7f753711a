package deepq

import (
	"fmt"
	"strings"
	"time"

	"github.com/samuelfneumann/autoracer/environment"
	"github.com/samuelfneumann/autoracer/exploration"
	"github.com/samuelfneumann/autoracer/initwfn"
	"github.com/samuelfneumann/autoracer/network"
	"github.com/samuelfneumann/autoracer/solver"
)

// Batch sources
const (
	SampleUniform = "uniform" // BatchSize transitions drawn with replacement
	SampleLatest  = "latest"  // the most recently stored transition
)

// Acting networks
const (
	ActWithTarget = "target"
	ActWithOnline = "online"
)

// Config implements a configuration for a DeepQ agent
type Config struct {
	// Whether the agent starts out driving
	Enabled bool `mapstructure:"enabled"`

	// Observation and action dimensions. When zero they are taken from
	// the environment specifications.
	ObservationDim int `mapstructure:"observation_dim"`
	ActionCount    int `mapstructure:"action_count"`

	BufferCapacity int    `mapstructure:"buffer_capacity"`
	BatchSize      int    `mapstructure:"batch_size"`
	Sampling       string `mapstructure:"sampling"`

	Discount float64 `mapstructure:"discount"`

	// Solver for learning weights, one of sgd, adam, rmsprop, vanilla
	Solver       string  `mapstructure:"solver"`
	LearningRate float64 `mapstructure:"learning_rate"`
	Momentum     float64 `mapstructure:"momentum"`
	Nesterov     bool    `mapstructure:"nesterov"`

	// Exploration schedule, decay is per second of clock time
	EpsilonMax float64 `mapstructure:"epsilon_max"`
	EpsilonMin float64 `mapstructure:"epsilon_min"`
	Decay      float64 `mapstructure:"decay"`

	// Target net updates
	TargetSyncInterval int     `mapstructure:"target_sync_interval"` // Gradient steps between syncs
	Tau                float64 `mapstructure:"tau"`                  // Polyak averaging constant

	Hidden     []int  `mapstructure:"hidden"`     // Layer sizes in neural net
	Activation string `mapstructure:"activation"` // Activation of each hidden layer
	ActWith    string `mapstructure:"act_with"`   // Network used to select actions

	// Initializer names, e.g. GlorotU, HeN, FanIn, Zeroes
	WeightInit string `mapstructure:"weight_init"`
	BiasInit   string `mapstructure:"bias_init"`

	Seed uint64 `mapstructure:"seed"`

	// Progress log throttling
	LogInterval time.Duration `mapstructure:"log_interval"`
	LossWindow  int           `mapstructure:"loss_window"`
}

// DefaultConfig returns the default configuration of a DeepQ agent
func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		BufferCapacity:     50_000,
		BatchSize:          32,
		Sampling:           SampleUniform,
		Discount:           0.99,
		Solver:             "sgd",
		LearningRate:       0.1,
		Momentum:           0.9,
		Nesterov:           true,
		EpsilonMax:         1.0,
		EpsilonMin:         0.01,
		Decay:              0.01,
		TargetSyncInterval: 1000,
		Tau:                1.0,
		Hidden:             []int{32, 32},
		Activation:         "relu",
		ActWith:            ActWithTarget,
		WeightInit:         string(initwfn.GlorotU),
		BiasInit:           string(initwfn.Zeroes),
		Seed:               0,
		LogInterval:        time.Second,
		LossWindow:         100,
	}
}

// Validate checks a Config to ensure it is a valid configuration of a
// DeepQ agent.
func (c Config) Validate() error {
	if c.ObservationDim < 0 || c.ActionCount < 0 {
		return fmt.Errorf("validate: dimensions must not be negative")
	}

	if c.BufferCapacity < 1 {
		return fmt.Errorf("validate: buffer capacity must be positive "+
			"\n\twant(>0) \n\thave(%v)", c.BufferCapacity)
	}

	if c.BatchSize < 1 {
		return fmt.Errorf("validate: batch size must be positive "+
			"\n\twant(>0) \n\thave(%v)", c.BatchSize)
	}

	if c.Sampling != SampleUniform && c.Sampling != SampleLatest {
		return fmt.Errorf("validate: unknown sampling %q", c.Sampling)
	}

	if c.Discount <= 0 || c.Discount >= 1 {
		return fmt.Errorf("validate: discount must be in (0, 1) "+
			"\n\thave(%v)", c.Discount)
	}

	if c.LearningRate <= 0 {
		return fmt.Errorf("validate: learning rate must be positive "+
			"\n\thave(%v)", c.LearningRate)
	}

	if _, err := c.newSolver(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	s := exploration.Scheduler{Max: c.EpsilonMax, Min: c.EpsilonMin,
		Decay: c.Decay}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	if c.TargetSyncInterval < 1 {
		return fmt.Errorf("validate: target networks must be updated at "+
			"positive step intervals \n\twant(>0) \n\thave(%v)",
			c.TargetSyncInterval)
	}

	if c.Tau <= 0 || c.Tau > 1 {
		return fmt.Errorf("validate: tau must be in (0, 1] \n\thave(%v)",
			c.Tau)
	}

	if _, err := network.ParseActivation(c.Activation); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	if c.ActWith != ActWithTarget && c.ActWith != ActWithOnline {
		return fmt.Errorf("validate: unknown acting network %q", c.ActWith)
	}

	if _, err := initwfn.Parse(c.WeightInit); err != nil {
		return fmt.Errorf("validate: weight init: %w", err)
	}
	if _, err := initwfn.Parse(c.BiasInit); err != nil {
		return fmt.Errorf("validate: bias init: %w", err)
	}

	return nil
}

// withDims returns a copy of c with zero dimensions filled in from the
// environment specifications
func (c Config) withDims(e environment.Environment) (Config, error) {
	if c.ObservationDim == 0 {
		c.ObservationDim = e.ObservationSpec().Dim()
	}
	if c.ActionCount == 0 {
		n, err := e.ActionSpec().Actions()
		if err != nil {
			return c, err
		}
		c.ActionCount = n
	}

	if c.ObservationDim < 1 || c.ActionCount < 1 {
		return c, fmt.Errorf("observation dimension (%d) and action count "+
			"(%d) must be positive", c.ObservationDim, c.ActionCount)
	}
	return c, nil
}

// newSolver returns the solver described by the configuration
func (c Config) newSolver() (*solver.Solver, error) {
	switch strings.ToLower(c.Solver) {
	case "sgd":
		return solver.NewSGD(c.LearningRate, c.Momentum, c.Nesterov, -1)
	case "adam":
		return solver.NewDefaultAdam(c.LearningRate)
	case "rmsprop":
		return solver.NewDefaultRMSProp(c.LearningRate)
	case "vanilla":
		return solver.NewVanilla(c.LearningRate, -1)
	}
	return nil, fmt.Errorf("unknown solver %q", c.Solver)
}

// newNetworks returns the online network and a target network holding
// a copy of its parameters
func (c Config) newNetworks() (online, target *network.QNetwork,
	err error) {
	activations := make([]*network.Activation, len(c.Hidden))
	for i := range activations {
		if activations[i], err = network.ParseActivation(c.Activation); err != nil {
			return nil, nil, err
		}
	}

	weightInit, err := initwfn.Parse(c.WeightInit)
	if err != nil {
		return nil, nil, err
	}
	biasInit, err := initwfn.Parse(c.BiasInit)
	if err != nil {
		return nil, nil, err
	}

	netConfig := network.Config{
		Features:    c.ObservationDim,
		Actions:     c.ActionCount,
		BatchSize:   c.BatchSize,
		HiddenSizes: c.Hidden,
		Activations: activations,
		WeightInit:  weightInit,
		BiasInit:    biasInit,
		Seed:        c.Seed,
	}

	if online, err = network.NewQNetwork(netConfig); err != nil {
		return nil, nil, err
	}
	if target, err = network.NewQNetwork(netConfig); err != nil {
		return nil, nil, err
	}
	if err = online.CloneParametersInto(target); err != nil {
		return nil, nil, err
	}
	return online, target, nil
}
