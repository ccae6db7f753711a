package expreplay

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/autoracer/timestep"
)

// Batch is a batch of transitions laid out in row major order. The
// i-th transition has state States[i*f:(i+1)*f] for feature size f.
type Batch struct {
	States     []float64
	Actions    []int
	Rewards    []float64
	NextStates []float64
}

func newBatch(size, featureSize int) Batch {
	return Batch{
		States:     make([]float64, size*featureSize),
		Actions:    make([]int, size),
		Rewards:    make([]float64, size),
		NextStates: make([]float64, size*featureSize),
	}
}

// NewBatch returns a Batch holding the argument transitions. All
// transitions must have the same feature size.
func NewBatch(transitions ...timestep.Transition) Batch {
	if len(transitions) == 0 {
		return Batch{}
	}
	featureSize := transitions[0].Features()

	b := newBatch(len(transitions), featureSize)
	for i, t := range transitions {
		copyVec(b.States[i*featureSize:(i+1)*featureSize], t.State)
		copyVec(b.NextStates[i*featureSize:(i+1)*featureSize], t.NextState)
		b.Actions[i] = t.Action
		b.Rewards[i] = t.Reward
	}
	return b
}

// Size returns the number of transitions in the batch
func (b Batch) Size() int {
	return len(b.Actions)
}

// Transition returns the i-th transition in the batch
func (b Batch) Transition(i int) timestep.Transition {
	f := len(b.States) / b.Size()

	state := make([]float64, f)
	copy(state, b.States[i*f:(i+1)*f])
	nextState := make([]float64, f)
	copy(nextState, b.NextStates[i*f:(i+1)*f])

	return timestep.Transition{
		State:     mat.NewVecDense(f, state),
		Action:    b.Actions[i],
		Reward:    b.Rewards[i],
		NextState: mat.NewVecDense(f, nextState),
	}
}
