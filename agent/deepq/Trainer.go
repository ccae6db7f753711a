package deepq

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/autoracer/agent"
	"github.com/samuelfneumann/autoracer/expreplay"
	"github.com/samuelfneumann/autoracer/metrics"
	"github.com/samuelfneumann/autoracer/network"
)

// Trainer performs the temporal difference updates of deep Q-learning.
// For a transition (s, a, r, s') the online network regresses Q(s, a)
// towards
//
//	r + γ max_a' Q_target(s', a')
//
// with the mean squared error. Every syncInterval applied gradient
// steps the target network is synchronised with the online network.
type Trainer struct {
	online network.QFunction
	target network.QFunction
	solver G.Solver

	discount     float64
	tau          float64 // Polyak averaging constant, 1 for a hard copy
	syncInterval int     // Gradient steps between target updates

	gradientSteps int
	skipped       int
	syncs         int

	log     logrus.FieldLogger
	metrics *metrics.Agent
}

// NewTrainer returns a new Trainer updating online with solver s and
// bootstrapping from target
func NewTrainer(online, target network.QFunction, s G.Solver,
	discount, tau float64, syncInterval int, log logrus.FieldLogger,
	m *metrics.Agent) (*Trainer, error) {
	if online.Features() != target.Features() ||
		online.Actions() != target.Actions() {
		return nil, fmt.Errorf("newtrainer: online and target networks " +
			"have different architectures")
	}
	if syncInterval < 1 {
		return nil, fmt.Errorf("newtrainer: sync interval must be positive")
	}

	return &Trainer{
		online:       online,
		target:       target,
		solver:       s,
		discount:     discount,
		tau:          tau,
		syncInterval: syncInterval,
		log:          log,
		metrics:      m,
	}, nil
}

// Train performs one update on batch b. Updates with a non-finite loss
// or gradient are skipped and counted; they are not errors.
func (t *Trainer) Train(b expreplay.Batch) (agent.TrainResult, error) {
	targets, err := t.targets(b)
	if err != nil {
		return agent.TrainResult{}, fmt.Errorf("train: %w", err)
	}

	loss, err := t.online.GradientStep(network.Batch{
		States:  b.States,
		Actions: b.Actions,
		Targets: targets,
	}, t.solver)
	if errors.Is(err, network.ErrNonFinite) {
		t.skipped++
		t.metrics.IncrementSkippedUpdates()
		t.log.WithFields(logrus.Fields{
			"loss":    loss,
			"skipped": t.skipped,
		}).Warn("skipping update with non-finite loss or gradient")
		return agent.TrainResult{Loss: loss, Skipped: true}, nil
	} else if err != nil {
		return agent.TrainResult{}, fmt.Errorf("train: %w", err)
	}

	t.gradientSteps++
	t.metrics.IncrementGradientSteps()
	t.metrics.ObserveLoss(loss)
	result := agent.TrainResult{Loss: loss, Trained: true}

	if t.gradientSteps%t.syncInterval == 0 {
		if err := t.Sync(); err != nil {
			return result, fmt.Errorf("train: %w", err)
		}
		result.Synced = true
	}

	return result, nil
}

// targets returns the TD targets of each transition in b. Targets are
// constants with respect to the online network.
func (t *Trainer) targets(b expreplay.Batch) ([]float64, error) {
	nextValues, err := t.target.ForwardBatch(b.NextStates)
	if err != nil {
		return nil, err
	}

	numActions := t.target.Actions()
	targets := make([]float64, b.Size())
	for i := range targets {
		nextValue := floats.Max(nextValues[i*numActions : (i+1)*numActions])
		targets[i] = b.Rewards[i] + t.discount*nextValue
	}
	return targets, nil
}

// Sync updates the target network from the online network: a hard
// copy when tau is 1, a Polyak average otherwise
func (t *Trainer) Sync() error {
	var err error
	if t.tau == 1.0 {
		err = t.online.CloneParametersInto(t.target)
	} else {
		err = t.target.Polyak(t.online, t.tau)
	}
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	t.syncs++
	t.metrics.IncrementTargetSyncs()
	t.log.WithField("syncs", t.syncs).Debug("target network synchronised")
	return nil
}

// GradientSteps returns the number of applied gradient steps
func (t *Trainer) GradientSteps() int {
	return t.gradientSteps
}

// SkippedUpdates returns the number of updates skipped for a
// non-finite loss or gradient
func (t *Trainer) SkippedUpdates() int {
	return t.skipped
}

// Syncs returns the number of target network synchronisations
func (t *Trainer) Syncs() int {
	return t.syncs
}
