// Package agent defines the interfaces of an online learning agent
// which drives a vehicle one tick at a time
package agent

import (
	"github.com/samuelfneumann/autoracer/environment"
	"github.com/samuelfneumann/autoracer/timestep"
)

// Status describes the outcome of a single agent tick
type Status int

const (
	// StatusStepped means the agent acted, stored the transition and
	// attempted an update
	StatusStepped Status = iota

	// StatusNoVehicle means the environment held no controllable
	// vehicle and the tick did nothing
	StatusNoVehicle

	// StatusManyVehicles means the environment held more than one
	// controllable vehicle and the tick did nothing
	StatusManyVehicles

	// StatusDisabled means the agent was disabled and the tick did
	// nothing
	StatusDisabled
)

// String implements the fmt.Stringer interface
func (s Status) String() string {
	switch s {
	case StatusStepped:
		return "stepped"
	case StatusNoVehicle:
		return "no_vehicle"
	case StatusManyVehicles:
		return "many_vehicles"
	case StatusDisabled:
		return "disabled"
	}
	return "unknown"
}

// TrainResult describes the outcome of a single learning update
type TrainResult struct {
	Loss float64

	// Trained is true when a gradient step was applied
	Trained bool

	// Skipped is true when the update was discarded because its loss or
	// gradient was not finite
	Skipped bool

	// Synced is true when the update was followed by a target network
	// synchronisation
	Synced bool
}

// Learner implements a learning algorithm that defines how weights are
// updated.
type Learner interface {
	// Observe records that the last selected action led to some
	// timestep
	Observe(action int, next timestep.TimeStep) error

	// Step performs a single update to the learner
	Step() (TrainResult, error)
}

// Policy selects actions given observations. The observation acted on
// is remembered as the state of the next observed transition.
type Policy interface {
	SelectAction(t timestep.TimeStep) (int, error)
}

// Agent determines the implementation details of an agent or algorithm
//
// An Agent is composed of a Learner, which learns weights, and a Policy
// which chooses actions in each state. Tick runs one full
// act-observe-learn cycle against an environment.
type Agent interface {
	Learner
	Policy

	Tick(env environment.Environment) (Status, error)
	SetEnabled(enabled bool)
	Enabled() bool
}
