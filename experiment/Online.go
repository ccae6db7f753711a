package experiment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/samuelfneumann/autoracer/agent"
	env "github.com/samuelfneumann/autoracer/environment"
	"github.com/samuelfneumann/autoracer/experiment/tracker"
	ts "github.com/samuelfneumann/autoracer/timestep"
	"github.com/samuelfneumann/autoracer/utils/progressbar"
)

// Online is an Experiment that ticks an agent online at a fixed rate,
// the way a host simulation calls its controller once per frame
type Online struct {
	env   env.Environment
	agent agent.Agent

	maxTicks     int           // 0 runs until cancelled
	rate         time.Duration // 0 ticks as fast as possible
	currentTicks int

	mu       sync.Mutex
	trackers []tracker.Tracker
	bar      *progressbar.ProgressBar
	log      logrus.FieldLogger
}

// NewOnline creates and returns a new online experiment on a given
// environment with a given agent. The maxTicks parameter determines
// how many ticks the experiment is run for, and the t parameter is a
// slice of tracker.Tracker which determine what data is saved.
func NewOnline(e env.Environment, a agent.Agent, maxTicks int,
	rate time.Duration, log logrus.FieldLogger,
	t ...tracker.Tracker) *Online {
	return &Online{
		env:      e,
		agent:    a,
		maxTicks: maxTicks,
		rate:     rate,
		trackers: t,
		log:      log,
	}
}

// SetProgressBar displays bar as ticks complete
func (o *Online) SetProgressBar(bar *progressbar.ProgressBar) {
	o.bar = bar
}

// Register registers a tracker.Tracker with an Experiment so that data
// generated during the experiment can be tracked and saved
func (o *Online) Register(t tracker.Tracker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.trackers = append(o.trackers, t)
}

// Ticks returns the number of ticks run so far
func (o *Online) Ticks() int {
	return o.currentTicks
}

// Run runs ticks until the tick limit is reached or ctx is cancelled.
// Cancellation is not an error.
func (o *Online) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if o.rate > 0 {
		ticker := time.NewTicker(o.rate)
		defer ticker.Stop()
		tick = ticker.C
	}

	o.log.WithField("max_ticks", o.maxTicks).Info("session started")
	defer func() {
		if o.bar != nil {
			o.bar.Close()
		}
		o.log.WithField("ticks", o.currentTicks).Info("session ended")
	}()

	for o.maxTicks == 0 || o.currentTicks < o.maxTicks {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		if _, err := o.RunTick(); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}
	return nil
}

// RunTick runs a single tick of the agent and tracks its outcome
func (o *Online) RunTick() (agent.Status, error) {
	o.currentTicks++

	status, err := o.agent.Tick(o.env)
	if err != nil {
		return status, fmt.Errorf("runtick: %w", err)
	}

	var step ts.TimeStep
	if status == agent.StatusStepped {
		if step, err = o.env.Observe(); err != nil {
			return status, fmt.Errorf("runtick: %w", err)
		}
	}
	o.track(status, step)

	if o.bar != nil {
		o.bar.Increment()
		o.bar.Display()
	}
	return status, nil
}

// Save saves all the data cached by the Trackers to disk
func (o *Online) Save() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, t := range o.trackers {
		if err := t.Save(); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	return nil
}

// track sends the outcome of a tick to each Tracker
func (o *Online) track(status agent.Status, t ts.TimeStep) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, tr := range o.trackers {
		tr.Track(status, t)
	}
}
