// Package exploration implements the epsilon-greedy exploration
// policy of a learning agent: a time-decayed epsilon schedule, the
// clocks which drive it, and action selection.
package exploration

import (
	"fmt"
	"math"
	"time"

	"github.com/samuelfneumann/autoracer/utils/floatutils"
)

// Scheduler computes the exploration rate epsilon as an exponential
// decay from Max towards Min over elapsed time:
//
//	ε(t) = Min + (Max - Min) exp(-Decay t)
//
// with t in seconds.
type Scheduler struct {
	Max   float64
	Min   float64
	Decay float64 // per second
}

// NewScheduler returns a new Scheduler
func NewScheduler(max, min, decay float64) (*Scheduler, error) {
	s := &Scheduler{Max: max, Min: min, Decay: decay}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("newscheduler: %w", err)
	}
	return s, nil
}

// Validate returns an error if the schedule is not a non-increasing
// schedule within [0, 1]
func (s *Scheduler) Validate() error {
	if s.Min < 0 || s.Max > 1 || s.Min > s.Max {
		return fmt.Errorf("epsilon bounds must satisfy 0 ≤ min ≤ max ≤ 1, "+
			"have min=%v max=%v", s.Min, s.Max)
	}
	if s.Decay < 0 || !floatutils.IsFinite(s.Decay) {
		return fmt.Errorf("decay must be finite and non-negative, have(%v)",
			s.Decay)
	}
	return nil
}

// Epsilon returns the exploration rate after elapsed time. Negative
// elapsed times are treated as zero.
func (s *Scheduler) Epsilon(elapsed time.Duration) float64 {
	seconds := math.Max(elapsed.Seconds(), 0)
	eps := s.Min + (s.Max-s.Min)*math.Exp(-s.Decay*seconds)
	return floatutils.Clip(eps, s.Min, s.Max)
}

// At returns the exploration rate at the current time of clock c
func (s *Scheduler) At(c Clock) float64 {
	return s.Epsilon(c.Elapsed())
}
