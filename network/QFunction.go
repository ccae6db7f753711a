// Package network implements action-value function approximators as
// feed forward neural networks on Gorgonia computational graphs.
package network

import (
	"errors"

	G "gorgonia.org/gorgonia"
)

// ErrNonFinite is returned by a gradient step whose loss or gradient
// contains NaN or infinite values. Parameters are left unchanged.
var ErrNonFinite = errors.New("non-finite loss or gradient")

// Batch is a batch of regression targets for a gradient step. The i-th
// row has observation States[i*f:(i+1)*f] for feature size f, was
// produced by action Actions[i] and should have value Targets[i].
type Batch struct {
	States  []float64
	Actions []int
	Targets []float64
}

// Size returns the number of rows in the batch
func (b Batch) Size() int {
	return len(b.Actions)
}

// QFunction approximates the value of each discrete action in a given
// observation.
type QFunction interface {
	// Forward returns the action values of a single observation
	Forward(obs []float64) ([]float64, error)

	// ForwardBatch returns the row-major action values of up to
	// BatchSize() observations stored row-major in obs
	ForwardBatch(obs []float64) ([]float64, error)

	// GradientStep performs one update with solver s which regresses
	// the value of each row's action towards its target
	GradientStep(b Batch, s G.Solver) (float64, error)

	// CloneParametersInto copies the parameters into other
	CloneParametersInto(other QFunction) error

	// Polyak sets the parameters to (1-tau)θ + tau θ_source
	Polyak(source QFunction, tau float64) error

	// Params returns a copy of the parameters
	Params() [][]float64

	// SetParams overwrites the parameters with a copy of params
	SetParams(params [][]float64) error

	Features() int
	Actions() int
	BatchSize() int
}
