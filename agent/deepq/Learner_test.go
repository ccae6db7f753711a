package deepq

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/samuelfneumann/autoracer/agent"
	"github.com/samuelfneumann/autoracer/logger"
	"github.com/samuelfneumann/autoracer/metrics"
)

func newTestLearner(t *testing.T, e *stubEnv, c Config) *Learner {
	t.Helper()
	l, err := NewLearner(e, c, 0, logger.Discard(),
		metrics.NewAgent(prometheus.NewRegistry()))
	require.NoError(t, err)
	return l
}

func TestLearnerInitialSnapshot(t *testing.T) {
	e := newCounterEnv(2, 1)
	c := testConfig()
	l := newTestLearner(t, e, c)

	snapshot := l.Snapshot()
	require.NotNil(t, snapshot)
	require.Equal(t, uint64(1), snapshot.Version)
	require.Equal(t, snapshot.Online, snapshot.Target)

	// An agent with the same configuration starts from the same weights
	d := newTestAgent(t, e, c)
	online, target := d.Params()
	require.Equal(t, snapshot.Online, online)
	require.Equal(t, snapshot.Target, target)
}

func TestLearnerStepEmptyBuffer(t *testing.T) {
	l := newTestLearner(t, newCounterEnv(2, 1), testConfig())

	result, err := l.Step()
	require.NoError(t, err)
	require.Equal(t, agent.TrainResult{}, result)
	require.Equal(t, uint64(1), l.Snapshot().Version)
}

func TestAgentPullsLearnerSnapshot(t *testing.T) {
	e := newCounterEnv(2, 1)
	c := testConfig()
	l := newTestLearner(t, e, c)
	d := newTestAgent(t, e, c, WithLearner(l))

	status, err := d.Tick(e)
	require.NoError(t, err)
	require.Equal(t, agent.StatusStepped, status)

	// Transitions land in the learner's buffer and the agent never
	// trains on its own
	require.Equal(t, 1, l.Replay().Len())
	require.Equal(t, 1, d.BufferLen())
	require.Zero(t, d.trainer.GradientSteps())

	result, err := l.Step()
	require.NoError(t, err)
	require.True(t, result.Trained)
	snapshot := l.Snapshot()
	require.Equal(t, uint64(2), snapshot.Version)

	online, _ := d.Params()
	require.NotEqual(t, snapshot.Online, online)

	_, err = d.Tick(e)
	require.NoError(t, err)
	online, target := d.Params()
	require.Equal(t, snapshot.Online, online)
	require.Equal(t, snapshot.Target, target)
	require.Equal(t, uint64(2), d.learnerVersion)
}

func TestLearnerFeatureMismatch(t *testing.T) {
	l := newTestLearner(t, newCounterEnv(2, 1), testConfig())
	_, err := New(newCounterEnv(3, 1), testConfig(), WithLearner(l))
	require.Error(t, err)
}

func TestLearnerRun(t *testing.T) {
	e := newCounterEnv(2, 1)
	c := testConfig()
	l := newTestLearner(t, e, c)
	d := newTestAgent(t, e, c, WithLearner(l))

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return l.Run(ctx)
	})
	g.Go(func() error {
		defer cancel()
		for i := 0; i < 50; i++ {
			if _, err := d.Tick(e); err != nil {
				return err
			}
		}

		// Wait for the learner to train on the stored experience
		deadline := time.Now().Add(5 * time.Second)
		for l.Snapshot().Version < 2 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		return nil
	})

	require.NoError(t, g.Wait())
	require.Greater(t, l.Snapshot().Version, uint64(1))
	require.Equal(t, 50, d.Ticks())
}

func TestDisabledAgentPausesLearner(t *testing.T) {
	e := newCounterEnv(2, 1)
	c := testConfig()
	l := newTestLearner(t, e, c)
	d := newTestAgent(t, e, c, WithLearner(l))
	require.True(t, l.Enabled())

	for i := 0; i < 5; i++ {
		_, err := d.Tick(e)
		require.NoError(t, err)
	}

	d.SetEnabled(false)
	require.False(t, l.Enabled())

	result, err := l.Step()
	require.NoError(t, err)
	require.Equal(t, agent.TrainResult{}, result)
	require.Equal(t, uint64(1), l.Snapshot().Version)
	require.Zero(t, l.GradientSteps())

	d.SetEnabled(true)
	result, err = l.Step()
	require.NoError(t, err)
	require.True(t, result.Trained)
	require.Equal(t, uint64(2), l.Snapshot().Version)
}

func TestDisabledLearnerRunIdles(t *testing.T) {
	e := newCounterEnv(2, 1)
	c := testConfig()
	c.Enabled = false
	l := newTestLearner(t, e, c)
	require.True(t, l.Enabled())

	// An agent created disabled pauses its learner
	d := newTestAgent(t, e, c, WithLearner(l))
	require.False(t, l.Enabled())

	d.SetEnabled(true)
	for i := 0; i < 5; i++ {
		_, err := d.Tick(e)
		require.NoError(t, err)
	}
	d.SetEnabled(false)

	ctx, cancel := context.WithTimeout(context.Background(),
		100*time.Millisecond)
	defer cancel()
	require.NoError(t, l.Run(ctx))

	require.Equal(t, uint64(1), l.Snapshot().Version)
	require.Zero(t, l.GradientSteps())
	require.Equal(t, 5, l.Replay().Len())
}
