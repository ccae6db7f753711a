// Package environment outlines the interfaces and structs needed to
// implement the simulations an agent drives in
package environment

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/autoracer/timestep"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() mat.Vector
}

// Environment implements a simulation containing vehicles which an
// agent may control. An agent may only act when exactly one vehicle
// is controllable.
type Environment interface {
	// Vehicles returns the number of controllable vehicles
	Vehicles() int

	// Observe returns the current observation of the controlled vehicle
	Observe() (timestep.TimeStep, error)

	// Step applies action to the controlled vehicle, advances the
	// simulation by one tick and returns the reward for the tick along
	// with the next observation
	Step(action int) (timestep.TimeStep, error)

	ObservationSpec() Spec
	ActionSpec() Spec
}
