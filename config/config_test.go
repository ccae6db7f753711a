package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/samuelfneumann/autoracer/agent/deepq"
	"github.com/samuelfneumann/autoracer/environment/track"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "autoracer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })

	c, _, err := Load("")
	require.NoError(t, err)
	require.Equal(t, deepq.DefaultConfig(), c.Agent)
	require.Equal(t, track.DefaultConfig(), c.Track)
	require.Equal(t, "info", c.Logging.Level)
	require.Equal(t, ClockWall, c.Session.Clock)
	require.Equal(t, 50*time.Millisecond, c.Session.TickRate)
	require.False(t, c.Metrics.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
agent:
  enabled: false
  batch_size: 8
  hidden: [16]
  solver: adam
  weight_init: HeU
  log_interval: 5s
track:
  half_width: 3
session:
  ticks: 100
  clock: tick
logging:
  format: json
`)

	c, v, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, v.ConfigFileUsed())

	require.False(t, c.Agent.Enabled)
	require.Equal(t, 8, c.Agent.BatchSize)
	require.Equal(t, []int{16}, c.Agent.Hidden)
	require.Equal(t, "adam", c.Agent.Solver)
	require.Equal(t, "HeU", c.Agent.WeightInit)
	require.Equal(t, 5*time.Second, c.Agent.LogInterval)
	require.Equal(t, 3.0, c.Track.HalfWidth)
	require.Equal(t, 100, c.Session.Ticks)
	require.Equal(t, ClockTick, c.Session.Clock)
	require.Equal(t, "json", c.Logging.Format)

	// Unset keys keep their defaults
	require.Equal(t, 0.99, c.Agent.Discount)
	require.Equal(t, "Zeroes", c.Agent.BiasInit)
	require.Equal(t, track.DefaultConfig().Radius, c.Track.Radius)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "agent:\n  batch_size: 8\n")
	t.Setenv("AUTORACER_AGENT_BATCH_SIZE", "16")
	t.Setenv("AUTORACER_AGENT_ENABLED", "false")
	t.Setenv("AUTORACER_SESSION_LEARNER", "true")

	c, _, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 16, c.Agent.BatchSize)
	require.False(t, c.Agent.Enabled)
	require.True(t, c.Session.Learner)
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	cases := []string{
		"agent:\n  discount: 1.5\n",
		"track:\n  half_width: 30\n",
		"session:\n  clock: sundial\n",
		"metrics:\n  enabled: true\n  addr: \"\"\n",
		"agent: [",
	}
	for _, body := range cases {
		_, _, err := Load(writeConfig(t, dir, body))
		require.Error(t, err, body)
	}

	_, _, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestWatch(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "agent:\n  enabled: true\n")
	c, v, err := Load(path)
	require.NoError(t, err)
	require.True(t, c.Agent.Enabled)

	log, _ := test.NewNullLogger()
	changes := make(chan *Config, 16)
	Watch(v, log, func(c *Config) { changes <- c })

	writeConfig(t, filepath.Dir(path), "agent:\n  enabled: false\n")

	// A rewrite may be seen part way through, so wait for the final
	// contents
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if !c.Agent.Enabled {
				return
			}
		case <-timeout:
			t.Fatal("configuration change not observed")
		}
	}
}
