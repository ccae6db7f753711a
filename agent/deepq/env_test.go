package deepq

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/autoracer/environment"
	"github.com/samuelfneumann/autoracer/exploration"
	ts "github.com/samuelfneumann/autoracer/timestep"
)

// stubEnv is an environment whose observations are given by obs and
// whose rewards are constant
type stubEnv struct {
	dim      int
	actions  int
	vehicles int
	reward   float64
	obs      func(tick int) []float64

	// Step faults: an error, or a timestep without an observation
	stepErr error
	noNext  bool

	tick  int
	taken []int
}

// newCounterEnv returns an environment whose observation features all
// equal the number of steps taken so far
func newCounterEnv(dim int, reward float64) *stubEnv {
	return &stubEnv{
		dim:      dim,
		actions:  4,
		vehicles: 1,
		reward:   reward,
		obs: func(tick int) []float64 {
			o := make([]float64, dim)
			for i := range o {
				o[i] = float64(tick)
			}
			return o
		},
	}
}

// newConstantEnv returns an environment which always emits the same
// observation
func newConstantEnv(obs []float64, reward float64) *stubEnv {
	return &stubEnv{
		dim:      len(obs),
		actions:  4,
		vehicles: 1,
		reward:   reward,
		obs:      func(int) []float64 { return obs },
	}
}

func (s *stubEnv) Vehicles() int { return s.vehicles }

func (s *stubEnv) Observe() (ts.TimeStep, error) {
	t := ts.Mid
	if s.tick == 0 {
		t = ts.First
	}
	return ts.New(t, 0, s.obs(s.tick), s.tick), nil
}

func (s *stubEnv) Step(action int) (ts.TimeStep, error) {
	if s.stepErr != nil {
		return ts.TimeStep{}, s.stepErr
	}
	if s.noNext {
		return ts.TimeStep{StepType: ts.Mid}, nil
	}
	s.taken = append(s.taken, action)
	s.tick++
	return ts.New(ts.Mid, s.reward, s.obs(s.tick), s.tick), nil
}

func (s *stubEnv) ObservationSpec() environment.Spec {
	inf := make([]float64, s.dim)
	for i := range inf {
		inf[i] = math.Inf(1)
	}
	return environment.NewSpec(
		mat.NewVecDense(s.dim, nil),
		environment.Observation,
		mat.NewVecDense(s.dim, nil),
		mat.NewVecDense(s.dim, inf),
		environment.Continuous,
	)
}

func (s *stubEnv) ActionSpec() environment.Spec {
	return environment.NewDiscreteActionSpec(s.actions)
}

// testConfig returns a small configuration driven by a tick clock
func testConfig() Config {
	c := DefaultConfig()
	c.BufferCapacity = 64
	c.BatchSize = 4
	c.Hidden = []int{8}
	c.LearningRate = 0.01
	c.TargetSyncInterval = 10
	return c
}

func testClock() *exploration.TickClock {
	return exploration.NewTickClock(50 * time.Millisecond)
}
