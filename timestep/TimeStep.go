// Package timestep implements timesteps of the agent-environment interaction
package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// StepType denotes the type of step that a TimeStep can be, either the
// first step of a driving session or any step after it
type StepType int

const (
	First StepType = iota
	Mid
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	default:
		return "Mid"
	}
}

// TimeStep packages together a single simulation tick. The Observation
// is the sensor readings followed by the speed magnitude and the
// cumulative track progress. The Reward is the feedback for the action
// that led to this TimeStep.
type TimeStep struct {
	StepType
	Reward      float64
	Observation *mat.VecDense
	Number      int
}

// New returns a new TimeStep. The observation is copied so that the
// returned TimeStep does not alias the caller's data.
func New(t StepType, r float64, o []float64, n int) TimeStep {
	step := TimeStep{StepType: t, Reward: r, Number: n}

	// gonum does not allow zero length vectors
	if len(o) > 0 {
		obs := make([]float64, len(o))
		copy(obs, o)
		step.Observation = mat.NewVecDense(len(obs), obs)
	}
	return step
}

// First returns whether a TimeStep is the first in a session
func (t *TimeStep) First() bool {
	return t.StepType == First
}

// Features returns the raw observation of the TimeStep
func (t *TimeStep) Features() []float64 {
	if t.Observation == nil {
		return nil
	}
	return t.Observation.RawVector().Data
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Step Number:  %v"

	return fmt.Sprintf(str, t.StepType, t.Reward, t.Number)
}
