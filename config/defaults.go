package config

import (
	"github.com/spf13/viper"

	"github.com/samuelfneumann/autoracer/agent/deepq"
	"github.com/samuelfneumann/autoracer/environment/track"
)

// setDefaults configures default values for all configuration
// parameters
func setDefaults(v *viper.Viper) {
	// Agent defaults
	a := deepq.DefaultConfig()
	v.SetDefault("agent.enabled", a.Enabled)
	v.SetDefault("agent.observation_dim", a.ObservationDim)
	v.SetDefault("agent.action_count", a.ActionCount)
	v.SetDefault("agent.buffer_capacity", a.BufferCapacity)
	v.SetDefault("agent.batch_size", a.BatchSize)
	v.SetDefault("agent.sampling", a.Sampling)
	v.SetDefault("agent.discount", a.Discount)
	v.SetDefault("agent.solver", a.Solver)
	v.SetDefault("agent.learning_rate", a.LearningRate)
	v.SetDefault("agent.momentum", a.Momentum)
	v.SetDefault("agent.nesterov", a.Nesterov)
	v.SetDefault("agent.epsilon_max", a.EpsilonMax)
	v.SetDefault("agent.epsilon_min", a.EpsilonMin)
	v.SetDefault("agent.decay", a.Decay)
	v.SetDefault("agent.target_sync_interval", a.TargetSyncInterval)
	v.SetDefault("agent.tau", a.Tau)
	v.SetDefault("agent.hidden", a.Hidden)
	v.SetDefault("agent.activation", a.Activation)
	v.SetDefault("agent.act_with", a.ActWith)
	v.SetDefault("agent.weight_init", a.WeightInit)
	v.SetDefault("agent.bias_init", a.BiasInit)
	v.SetDefault("agent.seed", a.Seed)
	v.SetDefault("agent.log_interval", a.LogInterval)
	v.SetDefault("agent.loss_window", a.LossWindow)

	// Track defaults
	t := track.DefaultConfig()
	v.SetDefault("track.radius", t.Radius)
	v.SetDefault("track.half_width", t.HalfWidth)
	v.SetDefault("track.sensor_range", t.SensorRange)
	v.SetDefault("track.max_speed", t.MaxSpeed)
	v.SetDefault("track.acceleration", t.Acceleration)
	v.SetDefault("track.braking", t.Braking)
	v.SetDefault("track.steer_rate", t.SteerRate)
	v.SetDefault("track.drag", t.Drag)
	v.SetDefault("track.dt", t.Dt)
	v.SetDefault("track.crash_penalty", t.CrashPenalty)
	v.SetDefault("track.start_jitter", t.StartJitter)
	v.SetDefault("track.seed", t.Seed)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	// Session defaults
	v.SetDefault("session.ticks", 0)
	v.SetDefault("session.tick_rate", "50ms")
	v.SetDefault("session.clock", ClockWall)
	v.SetDefault("session.learner", false)
	v.SetDefault("session.learner_interval", 0)
	v.SetDefault("session.tracker_dir", "")
	v.SetDefault("session.progress", false)
}
