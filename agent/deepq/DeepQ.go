// Package deepq implements an online deep Q-learning agent which
// drives a single vehicle, learning from its own experience as it goes.
package deepq

import (
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/samuelfneumann/autoracer/agent"
	"github.com/samuelfneumann/autoracer/environment"
	"github.com/samuelfneumann/autoracer/exploration"
	"github.com/samuelfneumann/autoracer/expreplay"
	"github.com/samuelfneumann/autoracer/logger"
	"github.com/samuelfneumann/autoracer/metrics"
	"github.com/samuelfneumann/autoracer/network"
	ts "github.com/samuelfneumann/autoracer/timestep"
)

// Seed offsets of the random streams owned by an agent
const (
	replaySeedOffset  uint64 = 1
	explorationOffset uint64 = 2
)

// DeepQ implements the deep Q-learning algorithm with a target network
// and experience replay, trained online one tick at a time.
//
// Actions are selected epsilon-greedily from the acting network, which
// is the target network unless configured otherwise. Epsilon decays
// with the time measured by the agent's clock. Every Tick selects an
// action, applies it to the environment, stores the resulting
// transition and performs at most one update.
//
// Ticks and SetEnabled are serialised, so toggling the agent never
// interrupts a tick.
type DeepQ struct {
	mu      sync.Mutex
	enabled bool
	config  Config

	// Online network, adapted by the trainer, and target network,
	// providing the update target
	online *network.QNetwork
	target *network.QNetwork
	actor  *network.QNetwork

	trainer *Trainer
	replay  expreplay.ExperienceReplayer

	// When a background learner is attached it owns training and the
	// agent only acts with its published parameters
	learner        *Learner
	learnerVersion uint64

	scheduler *exploration.Scheduler
	clock     exploration.Clock
	rng       *rand.Rand

	// Observation that the last selected action was taken in
	prevObs    *mat.VecDense
	prevAction int
	lastObs    []float64
	ticks      int

	log     logrus.FieldLogger
	metrics *metrics.Agent
	now     func() time.Time
	lastLog time.Time
	losses  *deque.Deque[float64]
}

var _ agent.Agent = &DeepQ{}

// Option configures optional collaborators of a DeepQ agent
type Option func(*DeepQ)

// WithLogger sets the logger of the agent
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *DeepQ) {
		d.log = log
	}
}

// WithMetrics sets the collectors the agent reports to
func WithMetrics(m *metrics.Agent) Option {
	return func(d *DeepQ) {
		d.metrics = m
	}
}

// WithClock sets the clock which drives the exploration schedule. A
// clock with an Advance method is advanced once per stepped tick.
func WithClock(c exploration.Clock) Option {
	return func(d *DeepQ) {
		d.clock = c
	}
}

// WithLearner attaches a background learner. Transitions are stored in
// the learner's buffer and the agent acts with the parameters the
// learner publishes.
func WithLearner(l *Learner) Option {
	return func(d *DeepQ) {
		d.learner = l
	}
}

// withNow sets the time source of the progress log
func withNow(now func() time.Time) Option {
	return func(d *DeepQ) {
		d.now = now
	}
}

// New creates and returns a new DeepQ agent which acts in environments
// shaped like e
func New(e environment.Environment, c Config, opts ...Option) (*DeepQ,
	error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	c, err := c.withDims(e)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	d := &DeepQ{
		enabled: c.Enabled,
		config:  c,
		now:     time.Now,
		losses:  deque.New[float64](),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logger.Discard()
	}
	if d.metrics == nil {
		d.metrics = metrics.NewAgent(prometheus.NewRegistry())
	}
	if d.clock == nil {
		d.clock = exploration.NewWallClock()
	}

	if d.online, d.target, err = c.newNetworks(); err != nil {
		return nil, fmt.Errorf("new: could not create networks: %w", err)
	}
	d.actor = d.target
	if c.ActWith == ActWithOnline {
		d.actor = d.online
	}

	solver, err := c.newSolver()
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	d.trainer, err = NewTrainer(d.online, d.target, solver, c.Discount,
		c.Tau, c.TargetSyncInterval, d.log, d.metrics)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	if d.learner != nil {
		if d.learner.Features() != c.ObservationDim {
			return nil, fmt.Errorf("new: learner expects %d features, "+
				"have(%d)", d.learner.Features(), c.ObservationDim)
		}
		d.replay = d.learner.Replay()
		d.learner.SetEnabled(d.enabled)
	} else {
		d.replay, err = expreplay.New(c.BufferCapacity, c.ObservationDim,
			c.Seed+replaySeedOffset)
		if err != nil {
			return nil, fmt.Errorf("new: %w", err)
		}
	}

	d.scheduler, err = exploration.NewScheduler(c.EpsilonMax, c.EpsilonMin,
		c.Decay)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	d.rng = rand.New(rand.NewSource(c.Seed + explorationOffset))

	d.metrics.SetEnabled(d.enabled)
	return d, nil
}

// SelectAction selects an epsilon-greedy action in the observation of
// t and remembers the observation as the state of the next transition
func (d *DeepQ) SelectAction(t ts.TimeStep) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selectAction(t)
}

func (d *DeepQ) selectAction(t ts.TimeStep) (int, error) {
	obs := t.Features()
	if len(obs) != d.config.ObservationDim {
		return 0, fmt.Errorf("selectaction: invalid observation size"+
			"\n\twant(%d)\n\thave(%d)", d.config.ObservationDim, len(obs))
	}

	q, err := d.actor.Forward(obs)
	if err != nil {
		return 0, fmt.Errorf("selectaction: %w", err)
	}

	eps := d.scheduler.At(d.clock)
	d.metrics.SetEpsilon(eps)

	clamped := exploration.Clamped()
	action := exploration.SelectAction(q, eps, d.rng)
	action = exploration.CheckAction(action, d.config.ActionCount)
	d.metrics.AddClampedActions(exploration.Clamped() - clamped)

	d.prevObs = mat.VecDenseCopyOf(t.Observation)
	d.prevAction = action
	return action, nil
}

// Observe stores the transition from the observation of the last
// selected action to next
func (d *DeepQ) Observe(action int, next ts.TimeStep) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.observe(action, next)
}

func (d *DeepQ) observe(action int, next ts.TimeStep) error {
	if d.prevObs == nil {
		return fmt.Errorf("observe: no action has been selected")
	}
	if next.Observation == nil {
		return fmt.Errorf("observe: next timestep has no observation")
	}

	transition := ts.Transition{
		State:     d.prevObs,
		Action:    action,
		Reward:    next.Reward,
		NextState: mat.VecDenseCopyOf(next.Observation),
	}
	if err := d.replay.Store(transition); err != nil {
		return fmt.Errorf("observe: %w", err)
	}

	d.prevObs = nil
	d.lastObs = next.Features()
	d.metrics.SetBufferLen(d.replay.Len())
	return nil
}

// Step performs a single update of the online network. Nothing is
// trained while the replay buffer is empty or while a background
// learner owns training.
func (d *DeepQ) Step() (agent.TrainResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.step()
}

func (d *DeepQ) step() (agent.TrainResult, error) {
	if d.learner != nil {
		return agent.TrainResult{}, nil
	}

	batch, err := sample(d.replay, d.config)
	if expreplay.IsEmptyBuffer(err) {
		return agent.TrainResult{}, nil
	} else if err != nil {
		return agent.TrainResult{}, fmt.Errorf("step: %w", err)
	}

	result, err := d.trainer.Train(batch)
	if err != nil {
		return result, fmt.Errorf("step: %w", err)
	}

	if result.Trained {
		d.losses.PushBack(result.Loss)
		for d.losses.Len() > d.config.LossWindow {
			d.losses.PopFront()
		}
	}
	return result, nil
}

// Tick runs one act-observe-learn cycle in environment e. Ticks while
// disabled, or while e does not hold exactly one controllable vehicle,
// do nothing and report why.
func (d *DeepQ) Tick(e environment.Environment) (agent.Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	status, err := d.tick(e)
	d.metrics.IncrementTicks(status.String())
	return status, err
}

func (d *DeepQ) tick(e environment.Environment) (agent.Status, error) {
	if !d.enabled {
		return agent.StatusDisabled, nil
	}

	switch vehicles := e.Vehicles(); {
	case vehicles == 0:
		return agent.StatusNoVehicle, nil
	case vehicles > 1:
		return agent.StatusManyVehicles, nil
	}

	if err := d.pullSnapshot(); err != nil {
		return agent.StatusStepped, fmt.Errorf("tick: %w", err)
	}

	obs, err := e.Observe()
	if err != nil {
		return agent.StatusStepped, fmt.Errorf("tick: %w", err)
	}

	action, err := d.selectAction(obs)
	if err != nil {
		return agent.StatusStepped, fmt.Errorf("tick: %w", err)
	}

	// A failed tick must not leave its observation pending
	next, err := e.Step(action)
	if err != nil {
		d.prevObs = nil
		return agent.StatusStepped, fmt.Errorf("tick: %w", err)
	}

	if err := d.observe(action, next); err != nil {
		d.prevObs = nil
		return agent.StatusStepped, fmt.Errorf("tick: %w", err)
	}

	if _, err := d.step(); err != nil {
		return agent.StatusStepped, fmt.Errorf("tick: %w", err)
	}

	if c, ok := d.clock.(interface{ Advance() }); ok {
		c.Advance()
	}
	d.ticks++
	d.logProgress()

	return agent.StatusStepped, nil
}

// pullSnapshot loads the latest parameters published by the
// background learner, if any are newer than those in use
func (d *DeepQ) pullSnapshot() error {
	if d.learner == nil {
		return nil
	}

	snapshot := d.learner.Snapshot()
	if snapshot == nil || snapshot.Version == d.learnerVersion {
		return nil
	}

	if err := d.online.SetParams(snapshot.Online); err != nil {
		return err
	}
	if err := d.target.SetParams(snapshot.Target); err != nil {
		return err
	}
	d.learnerVersion = snapshot.Version
	return nil
}

// logProgress logs the latest observation, the mean recent loss and the
// replay buffer length, at most once per log interval
func (d *DeepQ) logProgress() {
	now := d.now()
	if !d.lastLog.IsZero() && now.Sub(d.lastLog) < d.config.LogInterval {
		return
	}
	d.lastLog = now

	var loss float64
	if n := d.losses.Len(); n > 0 {
		window := make([]float64, n)
		for i := range window {
			window[i] = d.losses.At(i)
		}
		loss = stat.Mean(window, nil)
	}

	d.log.WithFields(logrus.Fields{
		"tick":    d.ticks,
		"obs":     d.lastObs,
		"loss":    loss,
		"rb_len":  d.replay.Len(),
		"epsilon": d.scheduler.At(d.clock),
	}).Info("q")
}

// SetEnabled enables or disables the agent. It waits for a running
// tick to finish.
func (d *DeepQ) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.enabled != enabled {
		d.log.WithField("enabled", enabled).Info("agent toggled")
	}
	d.enabled = enabled
	d.metrics.SetEnabled(enabled)
	if d.learner != nil {
		d.learner.SetEnabled(enabled)
	}
}

// Enabled returns whether the agent is enabled
func (d *DeepQ) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

// Ticks returns the number of stepped ticks
func (d *DeepQ) Ticks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ticks
}

// BufferLen returns the number of stored transitions
func (d *DeepQ) BufferLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.replay.Len()
}

// SkippedUpdates returns the number of updates the agent skipped for
// a non-finite loss or gradient
func (d *DeepQ) SkippedUpdates() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.trainer.SkippedUpdates()
}

// Epsilon returns the current exploration rate
func (d *DeepQ) Epsilon() float64 {
	return d.scheduler.At(d.clock)
}

// ActionValues returns the values the acting network assigns to each
// action in obs
func (d *DeepQ) ActionValues(obs []float64) ([]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.actor.Forward(obs)
}

// Params returns copies of the online and target network parameters
func (d *DeepQ) Params() (online, target [][]float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online.Params(), d.target.Params()
}

// sample returns a training batch from replay according to the
// sampling configuration
func sample(replay expreplay.ExperienceReplayer,
	c Config) (expreplay.Batch, error) {
	if c.Sampling == SampleLatest {
		return replay.Latest()
	}
	return replay.Sample(c.BatchSize)
}
