package tracker

import (
	"github.com/samuelfneumann/autoracer/agent"
	ts "github.com/samuelfneumann/autoracer/timestep"
)

// Status counts the ticks of a session by outcome and saves the counts
// as a map[string]int keyed by status name
type Status struct {
	counts   map[string]int
	filename string
}

// NewStatus creates and returns a new *Status Tracker which saves its
// data at filename
func NewStatus(filename string) *Status {
	return &Status{
		counts:   make(map[string]int),
		filename: filename,
	}
}

// Track counts the outcome of a tick
func (s *Status) Track(status agent.Status, _ ts.TimeStep) {
	s.counts[status.String()]++
}

// Count returns the number of ticks tracked with the given outcome
func (s *Status) Count(status agent.Status) int {
	return s.counts[status.String()]
}

// Save saves the tick counts to disk
func (s *Status) Save() error {
	return save(s.filename, s.counts)
}
