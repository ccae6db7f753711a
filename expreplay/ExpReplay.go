// Package expreplay implements a fixed capacity experience replay
// buffer for the driving agent.
package expreplay

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/autoracer/timestep"
)

// ExperienceReplayer implements an experience replay buffer that a
// learner can draw batches of experience from
type ExperienceReplayer interface {
	// Store adds a transition to the buffer
	Store(t timestep.Transition) error

	// Sample draws k transitions uniformly with replacement
	Sample(k int) (Batch, error)

	// Latest returns the most recently stored transition as a batch
	// of size 1
	Latest() (Batch, error)

	// Len returns the current number of transitions in the buffer
	Len() int

	// Capacity returns the maximum number of transitions in the buffer
	Capacity() int
}

// ReplayBuffer is a ring store of past transitions. Transitions are
// copied into flat caches when stored, so stored data is never aliased
// by the caller.
//
// The write cursor increases monotonically. A transition is written at
// slot cursor mod capacity, so once the buffer is full each Store
// overwrites the oldest transition.
type ReplayBuffer struct {
	stateCache     []float64
	actionCache    []int
	rewardCache    []float64
	nextStateCache []float64

	cursor      int
	maxCapacity int
	featureSize int

	rng *rand.Rand
}

// New returns a new ReplayBuffer holding at most capacity transitions
// with observations of featureSize elements. The seed determines the
// sequence of samples drawn from the buffer.
func New(capacity, featureSize int, seed uint64) (*ReplayBuffer, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("new: capacity must be >= 1")
	}
	if featureSize < 1 {
		return nil, fmt.Errorf("new: feature size must be >= 1")
	}

	return &ReplayBuffer{
		stateCache:     make([]float64, capacity*featureSize),
		actionCache:    make([]int, capacity),
		rewardCache:    make([]float64, capacity),
		nextStateCache: make([]float64, capacity*featureSize),
		maxCapacity:    capacity,
		featureSize:    featureSize,
		rng:            rand.New(rand.NewSource(seed)),
	}, nil
}

// Store adds a transition to the buffer, overwriting the oldest
// transition if the buffer is full
func (r *ReplayBuffer) Store(t timestep.Transition) error {
	if t.State == nil || t.NextState == nil {
		return &ExpReplayError{Op: "store", Err: errShape}
	}
	if t.State.Len() != r.featureSize || t.NextState.Len() != r.featureSize {
		return &ExpReplayError{
			Op: "store",
			Err: fmt.Errorf("%w \n\twant(%v)\n\thave(%v, %v)", errShape,
				r.featureSize, t.State.Len(), t.NextState.Len()),
		}
	}

	index := r.cursor % r.maxCapacity

	stateInd := index * r.featureSize
	copyVec(r.stateCache[stateInd:stateInd+r.featureSize], t.State)
	copyVec(r.nextStateCache[stateInd:stateInd+r.featureSize], t.NextState)

	r.actionCache[index] = t.Action
	r.rewardCache[index] = t.Reward

	r.cursor++
	return nil
}

// Len returns the number of transitions stored
func (r *ReplayBuffer) Len() int {
	if r.cursor < r.maxCapacity {
		return r.cursor
	}
	return r.maxCapacity
}

// Capacity returns the maximum number of transitions in the buffer
func (r *ReplayBuffer) Capacity() int {
	return r.maxCapacity
}

// Cursor returns the total number of transitions ever stored
func (r *ReplayBuffer) Cursor() int {
	return r.cursor
}

// FeatureSize returns the size of the observations stored
func (r *ReplayBuffer) FeatureSize() int {
	return r.featureSize
}

// At returns a copy of the transition stored at slot
func (r *ReplayBuffer) At(slot int) (timestep.Transition, error) {
	if slot < 0 || slot >= r.Len() {
		return timestep.Transition{}, &ExpReplayError{
			Op:  "at",
			Err: fmt.Errorf("%w: %v not in [0, %v)", errSlotOutOfRange, slot, r.Len()),
		}
	}

	start := slot * r.featureSize
	state := make([]float64, r.featureSize)
	copy(state, r.stateCache[start:start+r.featureSize])
	nextState := make([]float64, r.featureSize)
	copy(nextState, r.nextStateCache[start:start+r.featureSize])

	return timestep.Transition{
		State:     mat.NewVecDense(r.featureSize, state),
		Action:    r.actionCache[slot],
		Reward:    r.rewardCache[slot],
		NextState: mat.NewVecDense(r.featureSize, nextState),
	}, nil
}

// Latest returns the most recently stored transition as a batch of
// size 1
func (r *ReplayBuffer) Latest() (Batch, error) {
	if r.Len() == 0 {
		return Batch{}, &ExpReplayError{Op: "latest", Err: errEmptyBuffer}
	}
	return r.gather([]int{(r.cursor - 1) % r.maxCapacity}), nil
}

// Sample draws k transitions from the buffer independently and
// uniformly at random, with replacement
func (r *ReplayBuffer) Sample(k int) (Batch, error) {
	if k <= 0 {
		return Batch{}, &ExpReplayError{Op: "sample", Err: errInvalidSampleSize}
	}
	if r.Len() == 0 {
		return Batch{}, &ExpReplayError{Op: "sample", Err: errEmptyBuffer}
	}

	indices := make([]int, k)
	for i := range indices {
		indices[i] = r.rng.Intn(r.Len())
	}
	return r.gather(indices), nil
}

// gather copies the transitions at the argument slots into a Batch
func (r *ReplayBuffer) gather(indices []int) Batch {
	b := newBatch(len(indices), r.featureSize)

	for i, index := range indices {
		batchStartInd := i * r.featureSize
		expStartInd := index * r.featureSize
		copy(b.States[batchStartInd:batchStartInd+r.featureSize],
			r.stateCache[expStartInd:expStartInd+r.featureSize],
		)
		copy(b.NextStates[batchStartInd:batchStartInd+r.featureSize],
			r.nextStateCache[expStartInd:expStartInd+r.featureSize],
		)
		b.Actions[i] = r.actionCache[index]
		b.Rewards[i] = r.rewardCache[index]
	}
	return b
}

// copyVec copies a vector into dst, which must have the vector's length
func copyVec(dst []float64, v *mat.VecDense) {
	if v.RawVector().Inc == 1 {
		copy(dst, v.RawVector().Data[:v.Len()])
		return
	}
	for i := range dst {
		dst[i] = v.AtVec(i)
	}
}
