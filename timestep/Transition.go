package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transition is one step of experience: the observation before the
// action, the action taken, the reward received, and the observation
// after the action.
type Transition struct {
	State     *mat.VecDense
	Action    int
	Reward    float64
	NextState *mat.VecDense
}

// NewTransition returns a new Transition between the two TimeSteps.
// The reward is taken from the next TimeStep, since it is the feedback
// for the action taken in the previous TimeStep.
func NewTransition(prev TimeStep, action int, next TimeStep) Transition {
	return Transition{
		State:     prev.Observation,
		Action:    action,
		Reward:    next.Reward,
		NextState: next.Observation,
	}
}

// Features returns the size of the state observation, or 0 if the
// Transition has no state.
func (t Transition) Features() int {
	if t.State == nil {
		return 0
	}
	return t.State.Len()
}

// Equal returns whether two Transitions hold the same data
func (t Transition) Equal(o Transition) bool {
	if t.Action != o.Action || t.Reward != o.Reward {
		return false
	}
	return vecEqual(t.State, o.State) && vecEqual(t.NextState, o.NextState)
}

func vecEqual(a, b *mat.VecDense) bool {
	if a == nil || b == nil {
		return a == b
	}
	return mat.Equal(a, b)
}

func (t Transition) String() string {
	return fmt.Sprintf("Transition | Action: %v  |  Reward: %.3f", t.Action,
		t.Reward)
}
