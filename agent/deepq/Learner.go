package deepq

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/samuelfneumann/autoracer/agent"
	"github.com/samuelfneumann/autoracer/environment"
	"github.com/samuelfneumann/autoracer/expreplay"
	"github.com/samuelfneumann/autoracer/metrics"
	"github.com/samuelfneumann/autoracer/network"
)

// idleWait is how long a Learner waits for experience when its buffer
// is empty
const idleWait = 10 * time.Millisecond

// Snapshot is a complete copy of the parameters of both networks
// published by a Learner
type Snapshot struct {
	Version uint64
	Online  [][]float64
	Target  [][]float64
}

// Learner trains a deep Q-network in the background on transitions
// stored by an acting agent in a shared buffer. After every applied
// update it publishes a Snapshot of its parameters, which the acting
// agent picks up at the start of its next tick. A disabled Learner
// trains nothing.
type Learner struct {
	config  Config
	replay  *expreplay.Synced
	online  *network.QNetwork
	target  *network.QNetwork
	trainer *Trainer

	// Minimum time between updates, 0 to train as fast as possible
	interval time.Duration

	enabled atomic.Bool
	latest  atomic.Pointer[Snapshot]
	version uint64

	log logrus.FieldLogger
}

// NewLearner returns a new Learner for agents acting in environments
// shaped like e. Its networks start from the same parameters as those
// of a DeepQ agent created with the same configuration.
func NewLearner(e environment.Environment, c Config, interval time.Duration,
	log logrus.FieldLogger, m *metrics.Agent) (*Learner, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newlearner: %w", err)
	}
	c, err := c.withDims(e)
	if err != nil {
		return nil, fmt.Errorf("newlearner: %w", err)
	}

	buffer, err := expreplay.New(c.BufferCapacity, c.ObservationDim,
		c.Seed+replaySeedOffset)
	if err != nil {
		return nil, fmt.Errorf("newlearner: %w", err)
	}

	online, target, err := c.newNetworks()
	if err != nil {
		return nil, fmt.Errorf("newlearner: could not create networks: %w",
			err)
	}

	solver, err := c.newSolver()
	if err != nil {
		return nil, fmt.Errorf("newlearner: %w", err)
	}

	log = log.WithField("component", "learner")
	trainer, err := NewTrainer(online, target, solver, c.Discount, c.Tau,
		c.TargetSyncInterval, log, m)
	if err != nil {
		return nil, fmt.Errorf("newlearner: %w", err)
	}

	l := &Learner{
		config:   c,
		replay:   expreplay.NewSynced(buffer),
		online:   online,
		target:   target,
		trainer:  trainer,
		interval: interval,
		log:      log,
	}
	l.enabled.Store(true)
	l.publish()

	return l, nil
}

// SetEnabled pauses or resumes training. It is safe to call from any
// goroutine.
func (l *Learner) SetEnabled(enabled bool) {
	if l.enabled.Swap(enabled) != enabled {
		l.log.WithField("enabled", enabled).Info("learner toggled")
	}
}

// Enabled returns whether the Learner trains
func (l *Learner) Enabled() bool {
	return l.enabled.Load()
}

// Replay returns the buffer the Learner trains from
func (l *Learner) Replay() *expreplay.Synced {
	return l.replay
}

// Features returns the observation size the Learner trains on
func (l *Learner) Features() int {
	return l.config.ObservationDim
}

// Snapshot returns the most recently published parameters. It is safe
// to call from any goroutine.
func (l *Learner) Snapshot() *Snapshot {
	return l.latest.Load()
}

// Step performs a single update from the shared buffer and publishes
// the resulting parameters. Nothing is trained while the Learner is
// disabled or the buffer is empty. Step must not be called concurrently
// with Run.
func (l *Learner) Step() (agent.TrainResult, error) {
	if !l.enabled.Load() {
		return agent.TrainResult{}, nil
	}

	batch, err := sample(l.replay, l.config)
	if expreplay.IsEmptyBuffer(err) {
		return agent.TrainResult{}, nil
	} else if err != nil {
		return agent.TrainResult{}, fmt.Errorf("step: %w", err)
	}

	result, err := l.trainer.Train(batch)
	if err != nil {
		return result, fmt.Errorf("step: %w", err)
	}
	if result.Trained {
		l.publish()
	}
	return result, nil
}

// Run trains until ctx is cancelled
func (l *Learner) Run(ctx context.Context) error {
	l.log.Info("learner started")
	defer func() {
		l.log.WithField("gradient_steps",
			l.trainer.GradientSteps()).Info("learner stopped")
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		result, err := l.Step()
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}

		wait := l.interval
		if !result.Trained && !result.Skipped && wait < idleWait {
			wait = idleWait
		}
		if wait <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// GradientSteps returns the number of applied gradient steps. It must
// not be called concurrently with Run.
func (l *Learner) GradientSteps() int {
	return l.trainer.GradientSteps()
}

// publish makes a copy of the current parameters visible to readers
func (l *Learner) publish() {
	l.version++
	l.latest.Store(&Snapshot{
		Version: l.version,
		Online:  l.online.Params(),
		Target:  l.target.Params(),
	})
}
