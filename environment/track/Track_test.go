package track

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestTrack(t *testing.T) *Track {
	t.Helper()
	tr, err := New(DefaultConfig())
	require.NoError(t, err)
	return tr
}

func TestStartObservation(t *testing.T) {
	tr := newTestTrack(t)

	step, err := tr.Observe()
	require.NoError(t, err)
	require.True(t, step.First())
	require.Equal(t, ObservationDim, step.Observation.Len())
	require.Equal(t, ObservationDim, tr.ObservationSpec().Dim())

	obs := step.Features()

	// At the centerline, facing along the track, the side sensors see
	// both walls at half the track width
	require.InDelta(t, 4, obs[0], 1e-9)
	require.InDelta(t, 4, obs[Sensors-1], 1e-9)

	// Straight ahead is the outer wall
	require.InDelta(t, math.Sqrt(24*24-20*20), obs[3], 1e-9)

	require.Zero(t, obs[Sensors])
	require.Zero(t, obs[Sensors+1])
}

func TestActionSpec(t *testing.T) {
	tr := newTestTrack(t)
	n, err := tr.ActionSpec().Actions()
	require.NoError(t, err)
	require.Equal(t, NumActions, n)
	require.Equal(t, 4, n)
}

func TestAcceleratingMakesProgress(t *testing.T) {
	tr := newTestTrack(t)

	total := 0.0
	for i := 0; i < 40; i++ {
		step, err := tr.Step(Accelerate)
		require.NoError(t, err)
		require.Equal(t, i+1, step.Number)
		total += step.Reward
	}

	obs := tr.lastStep.Features()
	require.Greater(t, obs[Sensors], 0.0)
	require.Greater(t, total, 0.0)
	require.InDelta(t, total, obs[Sensors+1], 1e-9)
	require.Zero(t, tr.Crashes())
}

func TestCrashResets(t *testing.T) {
	tr := newTestTrack(t)

	crashed := false
	for i := 0; i < 500 && !crashed; i++ {
		action := Accelerate
		if i%2 == 0 {
			action = SteerRight
		}
		step, err := tr.Step(action)
		require.NoError(t, err)
		if tr.Crashes() > 0 {
			crashed = true
			require.Less(t, step.Reward, 0.0)
			require.Zero(t, step.Features()[Sensors])
			require.Zero(t, step.Features()[Sensors+1])
		}
	}
	require.True(t, crashed)
}

func TestVehicleCount(t *testing.T) {
	tr := newTestTrack(t)

	for _, n := range []int{0, 2} {
		tr.SetVehicles(n)
		require.Equal(t, n, tr.Vehicles())

		_, err := tr.Observe()
		require.True(t, errors.Is(err, ErrVehicleCount))
		_, err = tr.Step(Accelerate)
		require.True(t, errors.Is(err, ErrVehicleCount))
	}

	tr.SetVehicles(1)
	_, err := tr.Step(Accelerate)
	require.NoError(t, err)
}

func TestIllegalAction(t *testing.T) {
	tr := newTestTrack(t)
	_, err := tr.Step(NumActions)
	require.Error(t, err)
	_, err = tr.Step(-1)
	require.Error(t, err)
}

func TestJitteredStartsAreSeeded(t *testing.T) {
	c := DefaultConfig()
	c.StartJitter = 0.5
	c.Seed = 4

	a, err := New(c)
	require.NoError(t, err)
	b, err := New(c)
	require.NoError(t, err)

	require.Equal(t, a.lastStep.Features(), b.lastStep.Features())
	require.LessOrEqual(t, math.Abs(a.x-c.Radius), 0.5*c.HalfWidth)
}

func TestRayCircle(t *testing.T) {
	d, ok := rayCircle(0, 0, 1, 0, 5)
	require.True(t, ok)
	require.InDelta(t, 5, d, 1e-12)

	// Ray pointing away from a circle it starts outside of
	_, ok = rayCircle(10, 0, 1, 0, 5)
	require.False(t, ok)
}
