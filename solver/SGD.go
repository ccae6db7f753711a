package solver

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
)

// SGDConfig describes a configuration of stochastic gradient descent
// with optional classical or Nesterov momentum.
type SGDConfig struct {
	StepSize float64
	Momentum float64 // 0 disables momentum
	Nesterov bool
	Clip     float64 // <= 0 if no clipping
}

// NewSGD returns a new momentum SGD Solver
func NewSGD(stepSize, momentum float64, nesterov bool,
	clip float64) (*Solver, error) {
	if momentum < 0 || momentum >= 1 {
		return nil, fmt.Errorf("newSGD: momentum must be in [0, 1), "+
			"have(%v)", momentum)
	}
	if nesterov && momentum == 0 {
		return nil, fmt.Errorf("newSGD: nesterov momentum requires a " +
			"non-zero momentum")
	}

	sgd := SGDConfig{
		StepSize: stepSize,
		Momentum: momentum,
		Nesterov: nesterov,
		Clip:     clip,
	}

	return newSolver(SGD, sgd)
}

// Create returns a new momentum SGD solver as described by the
// SGDConfig
func (s SGDConfig) Create() G.Solver {
	return &sgdSolver{config: s}
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (s SGDConfig) ValidType(t Type) bool {
	return t == SGD
}

// sgdSolver implements the G.Solver interface. For gradient g and
// velocity v, each step computes
//
//	v ← μv + g
//	w ← w - α(g + μv)	if Nesterov
//	w ← w - αv		otherwise
//
// Gradients are zeroed after they are applied. With momentum, a zero
// gradient still moves the weights by the accumulated velocity.
type sgdSolver struct {
	config   SGDConfig
	velocity [][]float64
}

// Step implements the G.Solver interface
func (s *sgdSolver) Step(model []G.ValueGrad) error {
	if s.velocity == nil {
		s.velocity = make([][]float64, len(model))
	} else if len(s.velocity) != len(model) {
		return fmt.Errorf("step: solver was used with %d parameters, "+
			"have(%d)", len(s.velocity), len(model))
	}

	mu := s.config.Momentum
	for i, node := range model {
		weights, ok := node.Value().Data().([]float64)
		if !ok {
			return fmt.Errorf("step: parameter %d is not float64", i)
		}
		gradVal, err := node.Grad()
		if err != nil {
			return fmt.Errorf("step: could not get gradient %d: %v", i, err)
		}
		grad, ok := gradVal.Data().([]float64)
		if !ok || len(grad) != len(weights) {
			return fmt.Errorf("step: gradient %d does not match its "+
				"parameter", i)
		}

		if s.velocity[i] == nil {
			s.velocity[i] = make([]float64, len(weights))
		}
		v := s.velocity[i]

		for j := range weights {
			g := grad[j]
			if s.config.Clip > 0 {
				g = math.Max(-s.config.Clip, math.Min(g, s.config.Clip))
			}

			update := g
			if mu != 0 {
				v[j] = mu*v[j] + g
				if s.config.Nesterov {
					update = g + mu*v[j]
				} else {
					update = v[j]
				}
			}

			weights[j] -= s.config.StepSize * update
			grad[j] = 0
		}
	}
	return nil
}
