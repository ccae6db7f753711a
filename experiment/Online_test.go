package experiment

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/autoracer/agent"
	"github.com/samuelfneumann/autoracer/agent/deepq"
	"github.com/samuelfneumann/autoracer/environment"
	"github.com/samuelfneumann/autoracer/environment/track"
	"github.com/samuelfneumann/autoracer/exploration"
	"github.com/samuelfneumann/autoracer/experiment/tracker"
	ts "github.com/samuelfneumann/autoracer/timestep"
	"github.com/samuelfneumann/autoracer/utils/progressbar"
)

// brakeAgent always brakes and fails once failAt ticks have run
type brakeAgent struct {
	enabled bool
	ticks   int
	failAt  int
}

func (b *brakeAgent) Observe(int, ts.TimeStep) error { return nil }

func (b *brakeAgent) Step() (agent.TrainResult, error) {
	return agent.TrainResult{}, nil
}

func (b *brakeAgent) SelectAction(ts.TimeStep) (int, error) {
	return track.Brake, nil
}

func (b *brakeAgent) Tick(e environment.Environment) (agent.Status, error) {
	b.ticks++
	if b.failAt > 0 && b.ticks >= b.failAt {
		return agent.StatusStepped, errors.New("simulated failure")
	}
	if !b.enabled {
		return agent.StatusDisabled, nil
	}
	if e.Vehicles() != 1 {
		return agent.StatusNoVehicle, nil
	}
	_, err := e.Step(track.Brake)
	return agent.StatusStepped, err
}

func (b *brakeAgent) SetEnabled(enabled bool) { b.enabled = enabled }

func (b *brakeAgent) Enabled() bool { return b.enabled }

func newTrack(t *testing.T) *track.Track {
	t.Helper()
	e, err := track.New(track.DefaultConfig())
	require.NoError(t, err)
	return e
}

func TestRunTickLimit(t *testing.T) {
	log, hook := test.NewNullLogger()
	e := newTrack(t)
	statuses := tracker.NewStatus(filepath.Join(t.TempDir(), "status.bin"))
	o := NewOnline(e, &brakeAgent{enabled: true}, 25, 0, log, statuses)

	require.NoError(t, o.Run(context.Background()))
	require.Equal(t, 25, o.Ticks())
	require.Equal(t, 25, statuses.Count(agent.StatusStepped))
	require.Equal(t, "session ended", hook.LastEntry().Message)
	require.NoError(t, o.Save())
}

func TestRunTracksNoOpTicks(t *testing.T) {
	log, _ := test.NewNullLogger()
	e := newTrack(t)
	e.SetVehicles(0)

	statuses := tracker.NewStatus(filepath.Join(t.TempDir(), "status.bin"))
	rewards := tracker.NewReward(filepath.Join(t.TempDir(), "reward.bin"))
	o := NewOnline(e, &brakeAgent{enabled: true}, 5, 0, log, statuses)
	o.Register(rewards)

	require.NoError(t, o.Run(context.Background()))
	require.Equal(t, 5, statuses.Count(agent.StatusNoVehicle))
	require.Zero(t, rewards.Total())
}

func TestRunCancelled(t *testing.T) {
	log, _ := test.NewNullLogger()
	a := &brakeAgent{enabled: true}
	o := NewOnline(newTrack(t), a, 0, time.Millisecond, log)

	ctx, cancel := context.WithTimeout(context.Background(),
		50*time.Millisecond)
	defer cancel()

	require.NoError(t, o.Run(ctx))
	require.Greater(t, o.Ticks(), 0)
	require.Equal(t, o.Ticks(), a.ticks)
}

func TestRunError(t *testing.T) {
	log, _ := test.NewNullLogger()
	o := NewOnline(newTrack(t), &brakeAgent{enabled: true, failAt: 3}, 10,
		0, log)

	err := o.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, 3, o.Ticks())
}

func TestRunDeepQ(t *testing.T) {
	log, _ := test.NewNullLogger()
	e := newTrack(t)

	c := deepq.DefaultConfig()
	c.BufferCapacity = 100
	c.BatchSize = 4
	c.Hidden = []int{8}
	d, err := deepq.New(e, c, deepq.WithLogger(log),
		deepq.WithClock(exploration.NewTickClock(50*time.Millisecond)))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "reward.bin")
	rewards := tracker.NewReward(path)
	var out bytes.Buffer
	o := NewOnline(e, d, 40, 0, log, rewards)
	o.SetProgressBar(progressbar.New(&out, 10, 40, time.Hour))

	require.NoError(t, o.Run(context.Background()))
	require.Equal(t, 40, d.Ticks())
	require.Equal(t, 40, d.BufferLen())
	require.Contains(t, out.String(), "100.00%")

	require.NoError(t, o.Save())
	var saved []float64
	require.NoError(t, tracker.LoadData(path, &saved))
	require.Len(t, saved, 40)
}
