package deepq

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/autoracer/agent"
	"github.com/samuelfneumann/autoracer/environment/track"
	"github.com/samuelfneumann/autoracer/exploration"
	"github.com/samuelfneumann/autoracer/expreplay"
	ts "github.com/samuelfneumann/autoracer/timestep"
)

func newTestAgent(t *testing.T, e *stubEnv, c Config,
	opts ...Option) *DeepQ {
	t.Helper()
	opts = append([]Option{WithClock(testClock())}, opts...)
	d, err := New(e, c, opts...)
	require.NoError(t, err)
	return d
}

func TestDimensionsFromEnvironment(t *testing.T) {
	d := newTestAgent(t, newCounterEnv(5, 0), testConfig())
	require.Equal(t, 5, d.config.ObservationDim)
	require.Equal(t, 4, d.config.ActionCount)
}

func TestTickStoresDistinctStates(t *testing.T) {
	e := newCounterEnv(2, 1)
	d := newTestAgent(t, e, testConfig())

	for i := 0; i < 3; i++ {
		status, err := d.Tick(e)
		require.NoError(t, err)
		require.Equal(t, agent.StatusStepped, status)
	}
	require.Equal(t, 3, d.Ticks())
	require.Equal(t, 3, d.BufferLen())

	buffer := d.replay.(*expreplay.ReplayBuffer)
	for i := 0; i < 3; i++ {
		tr, err := buffer.At(i)
		require.NoError(t, err)
		require.Equal(t, []float64{float64(i), float64(i)},
			tr.State.RawVector().Data)
		require.Equal(t, []float64{float64(i + 1), float64(i + 1)},
			tr.NextState.RawVector().Data)
		require.Equal(t, e.taken[i], tr.Action)
		require.Equal(t, 1.0, tr.Reward)
	}
}

func TestTickVehicleCount(t *testing.T) {
	e := newCounterEnv(2, 1)
	d := newTestAgent(t, e, testConfig())

	e.vehicles = 0
	status, err := d.Tick(e)
	require.NoError(t, err)
	require.Equal(t, agent.StatusNoVehicle, status)

	e.vehicles = 2
	status, err = d.Tick(e)
	require.NoError(t, err)
	require.Equal(t, agent.StatusManyVehicles, status)

	require.Zero(t, d.BufferLen())
	require.Empty(t, e.taken)
	require.Zero(t, d.Ticks())

	e.vehicles = 1
	status, err = d.Tick(e)
	require.NoError(t, err)
	require.Equal(t, agent.StatusStepped, status)
}

func TestSetEnabled(t *testing.T) {
	e := newCounterEnv(2, 1)
	c := testConfig()
	c.Enabled = false
	d := newTestAgent(t, e, c)
	require.False(t, d.Enabled())

	status, err := d.Tick(e)
	require.NoError(t, err)
	require.Equal(t, agent.StatusDisabled, status)
	require.Empty(t, e.taken)

	d.SetEnabled(true)
	status, err = d.Tick(e)
	require.NoError(t, err)
	require.Equal(t, agent.StatusStepped, status)
}

func TestToggleDuringTicks(t *testing.T) {
	const ticks = 200

	// The buffer holds every transition, so none can be evicted
	e := newCounterEnv(2, 1)
	c := testConfig()
	c.BufferCapacity = ticks
	d := newTestAgent(t, e, c)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < ticks; i++ {
			d.SetEnabled(i%2 == 0)
		}
	}()

	stepped := 0
	for i := 0; i < ticks; i++ {
		status, err := d.Tick(e)
		require.NoError(t, err)
		require.Contains(t, []agent.Status{agent.StatusStepped,
			agent.StatusDisabled}, status)
		if status == agent.StatusStepped {
			stepped++
		}
	}
	wg.Wait()

	// Every stepped tick ran to completion
	require.Equal(t, stepped, d.Ticks())
	require.Equal(t, stepped, d.BufferLen())
	require.Len(t, e.taken, stepped)
}

func TestStepEmptyBuffer(t *testing.T) {
	for _, sampling := range []string{SampleUniform, SampleLatest} {
		c := testConfig()
		c.Sampling = sampling
		d := newTestAgent(t, newCounterEnv(2, 0), c)

		result, err := d.Step()
		require.NoError(t, err)
		require.Equal(t, agent.TrainResult{}, result)
	}
}

func TestObserveWithoutSelectedAction(t *testing.T) {
	e := newCounterEnv(2, 0)
	d := newTestAgent(t, e, testConfig())

	next, err := e.Step(0)
	require.NoError(t, err)
	require.Error(t, d.Observe(0, next))
}

func TestFailedTickDropsPendingObservation(t *testing.T) {
	faults := map[string]func(e *stubEnv){
		"step error":     func(e *stubEnv) { e.stepErr = errors.New("actuator fault") },
		"no observation": func(e *stubEnv) { e.noNext = true },
	}

	for name, fault := range faults {
		t.Run(name, func(t *testing.T) {
			e := newCounterEnv(2, 1)
			d := newTestAgent(t, e, testConfig())

			fault(e)
			_, err := d.Tick(e)
			require.Error(t, err)
			require.Nil(t, d.prevObs)
			require.Zero(t, d.BufferLen())
			require.Zero(t, d.Ticks())

			// A later Observe has no action to pair with
			require.Error(t, d.Observe(0, ts.New(ts.Mid, 0, []float64{1, 1}, 1)))

			e.stepErr, e.noNext = nil, false
			status, err := d.Tick(e)
			require.NoError(t, err)
			require.Equal(t, agent.StatusStepped, status)
			require.Equal(t, 1, d.BufferLen())
		})
	}
}

func TestNonFiniteUpdateSkipped(t *testing.T) {
	e := newCounterEnv(2, math.NaN())
	c := testConfig()
	c.Sampling = SampleLatest
	d := newTestAgent(t, e, c)
	online, target := d.Params()

	status, err := d.Tick(e)
	require.NoError(t, err)
	require.Equal(t, agent.StatusStepped, status)
	require.Equal(t, 1, d.SkippedUpdates())

	afterOnline, afterTarget := d.Params()
	require.Equal(t, online, afterOnline)
	require.Equal(t, target, afterTarget)
}

func TestTargetSync(t *testing.T) {
	e := newCounterEnv(2, 1)
	c := testConfig()
	c.TargetSyncInterval = 3
	d := newTestAgent(t, e, c)

	_, err := d.Tick(e)
	require.NoError(t, err)
	online, target := d.Params()
	require.NotEqual(t, online, target)

	for i := 0; i < 2; i++ {
		_, err = d.Tick(e)
		require.NoError(t, err)
	}
	require.Equal(t, 1, d.trainer.Syncs())
	online, target = d.Params()
	require.Equal(t, online, target)
}

func TestEpsilonDecaysWithClock(t *testing.T) {
	e := newCounterEnv(2, 0)
	clock := exploration.NewTickClock(10 * time.Second)
	d := newTestAgent(t, e, testConfig(), WithClock(clock))
	require.Equal(t, 1.0, d.Epsilon())

	for i := 0; i < 10; i++ {
		_, err := d.Tick(e)
		require.NoError(t, err)
	}
	require.Equal(t, int64(10), clock.Ticks())
	require.InDelta(t, 0.01+0.99*math.Exp(-1), d.Epsilon(), 1e-12)
}

func TestZeroRewardConvergence(t *testing.T) {
	obs := []float64{0.5, -0.5, 0.5}
	e := newConstantEnv(obs, 0)

	c := testConfig()
	c.Hidden = nil
	c.BufferCapacity = 256
	c.BatchSize = 8
	c.Discount = 0.5
	c.LearningRate = 0.05
	c.Momentum = 0
	c.Nesterov = false
	c.EpsilonMax, c.EpsilonMin = 1, 1
	c.TargetSyncInterval = 5
	c.ActWith = ActWithOnline
	d := newTestAgent(t, e, c)

	maxAbs := func() float64 {
		q, err := d.ActionValues(obs)
		require.NoError(t, err)
		m := 0.0
		for _, v := range q {
			m = math.Max(m, math.Abs(v))
		}
		return m
	}

	initial := maxAbs()
	require.Greater(t, initial, 0.0)

	for i := 0; i < 3000; i++ {
		_, err := d.Tick(e)
		require.NoError(t, err)
	}

	final := maxAbs()
	require.Less(t, final, initial)
	require.Less(t, final, 1e-3)
}

func TestDeterministic(t *testing.T) {
	run := func() ([]float64, [][]float64, string) {
		e, err := track.New(track.DefaultConfig())
		require.NoError(t, err)

		c := testConfig()
		c.Hidden = []int{16}
		c.BatchSize = 8
		c.BufferCapacity = 200
		c.TargetSyncInterval = 20
		c.Seed = 42
		d, err := New(e, c, WithClock(testClock()))
		require.NoError(t, err)

		rewards := make([]float64, 0, 200)
		for i := 0; i < 200; i++ {
			_, err := d.Tick(e)
			require.NoError(t, err)
			obs, err := e.Observe()
			require.NoError(t, err)
			rewards = append(rewards, obs.Reward)
		}
		online, _ := d.Params()
		return rewards, online, e.String()
	}

	rewardsA, paramsA, stateA := run()
	rewardsB, paramsB, stateB := run()
	require.Equal(t, rewardsA, rewardsB)
	require.Equal(t, paramsA, paramsB)
	require.Equal(t, stateA, stateB)
}

func TestProgressLogThrottled(t *testing.T) {
	e := newCounterEnv(2, 1)
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.InfoLevel)

	now := time.Unix(0, 0)
	d := newTestAgent(t, e, testConfig(), WithLogger(log),
		withNow(func() time.Time { return now }))

	count := func() int {
		n := 0
		for _, entry := range hook.AllEntries() {
			if entry.Message == "q" {
				n++
			}
		}
		return n
	}

	for i := 0; i < 5; i++ {
		_, err := d.Tick(e)
		require.NoError(t, err)
	}
	require.Equal(t, 1, count())

	now = now.Add(999 * time.Millisecond)
	_, err := d.Tick(e)
	require.NoError(t, err)
	require.Equal(t, 1, count())

	now = now.Add(time.Millisecond)
	_, err = d.Tick(e)
	require.NoError(t, err)
	require.Equal(t, 2, count())

	entry := hook.LastEntry()
	assert.Equal(t, 7, entry.Data["rb_len"])
	assert.Equal(t, []float64{7, 7}, entry.Data["obs"])
	assert.Contains(t, entry.Data, "loss")
}

func TestNewInvalidConfig(t *testing.T) {
	c := testConfig()
	c.Discount = 1
	_, err := New(newCounterEnv(2, 0), c)
	require.Error(t, err)
}
