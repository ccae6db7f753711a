// Package experiment implements the host loop of a driving session,
// which ticks an agent in an environment and records what happens
package experiment

import (
	"context"

	"github.com/samuelfneumann/autoracer/experiment/tracker"
)

// Experiment outlines structs that can run sessions. Experiments send
// the outcome of every tick to their Trackers, which cache the data in
// RAM until Save is called, usually once the session has finished.
// Run runs ticks until the tick limit is reached or its context is
// cancelled.
type Experiment interface {
	Run(ctx context.Context) error

	// Adds a new tracker.Tracker to the (possibly already running)
	// experiment. Useful if you want to track data only after a
	// specified event.
	Register(t tracker.Tracker)

	// Save all tracked data to disk
	Save() error
}
