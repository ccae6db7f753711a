package tracker

import (
	"github.com/samuelfneumann/autoracer/agent"
	ts "github.com/samuelfneumann/autoracer/timestep"
)

// Reward tracks and saves the reward of every stepped tick in a
// session, as a []float64. Ticks on which the agent did not drive are
// not recorded.
type Reward struct {
	rewards  []float64
	total    float64
	filename string
}

// NewReward creates and returns a new *Reward Tracker which saves its
// data at filename
func NewReward(filename string) *Reward {
	return &Reward{filename: filename}
}

// Track records the reward of t if the agent drove this tick
func (r *Reward) Track(status agent.Status, t ts.TimeStep) {
	if status != agent.StatusStepped {
		return
	}
	r.rewards = append(r.rewards, t.Reward)
	r.total += t.Reward
}

// Total returns the sum of all tracked rewards
func (r *Reward) Total() float64 {
	return r.total
}

// Save saves the tracked rewards to disk
func (r *Reward) Save() error {
	return save(r.filename, r.rewards)
}
