// Package config loads the configuration of a driving session from a
// YAML file and AUTORACER_ environment variables
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/samuelfneumann/autoracer/agent/deepq"
	"github.com/samuelfneumann/autoracer/environment/track"
	"github.com/samuelfneumann/autoracer/logger"
)

// EnvPrefix prefixes environment variable overrides, e.g.
// AUTORACER_AGENT_ENABLED=false
const EnvPrefix = "AUTORACER"

// Clocks driving the exploration schedule
const (
	ClockWall = "wall"
	ClockTick = "tick"
)

// Config is the root configuration of a session
type Config struct {
	Agent   deepq.Config  `mapstructure:"agent"`
	Track   track.Config  `mapstructure:"track"`
	Logging logger.Config `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Session SessionConfig `mapstructure:"session"`
}

// MetricsConfig contains metrics serving settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// SessionConfig describes how the host loop drives the agent
type SessionConfig struct {
	Ticks    int           `mapstructure:"ticks"`     // 0 runs until interrupted
	TickRate time.Duration `mapstructure:"tick_rate"` // 0 ticks as fast as possible
	Clock    string        `mapstructure:"clock"`

	// Background learner
	Learner         bool          `mapstructure:"learner"`
	LearnerInterval time.Duration `mapstructure:"learner_interval"`

	TrackerDir string `mapstructure:"tracker_dir"` // empty disables trackers
	Progress   bool   `mapstructure:"progress"`
}

// Load reads the configuration at path, applying environment
// overrides on top. When path is empty autoracer.yaml is searched for
// in the working directory and ./config, and defaults are used if it
// does not exist. The returned viper instance can be passed to Watch.
func Load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.SetConfigName("autoracer")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, fmt.Errorf("load: failed to read config file: %w",
				err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	c, err := decode(v)
	if err != nil {
		return nil, nil, fmt.Errorf("load: %w", err)
	}
	return c, v, nil
}

// Watch calls onChange with the reloaded configuration every time the
// file read by v changes. Invalid configurations are logged and
// ignored.
func Watch(v *viper.Viper, log logrus.FieldLogger, onChange func(*Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		log := log.WithField("file", e.Name)

		c, err := decode(v)
		if err != nil {
			log.WithError(err).Warn("ignoring invalid configuration")
			return
		}

		log.Info("configuration reloaded")
		onChange(c)
	})
	v.WatchConfig()
}

// decode unmarshals and validates the configuration held by v
func decode(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every section of the configuration is valid
func (c *Config) Validate() error {
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.Track.Validate(); err != nil {
		return fmt.Errorf("track: %w", err)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics: address required when enabled")
	}

	s := c.Session
	if s.Ticks < 0 || s.TickRate < 0 || s.LearnerInterval < 0 {
		return fmt.Errorf("session: ticks, tick rate and learner interval " +
			"must not be negative")
	}
	if s.Clock != ClockWall && s.Clock != ClockTick {
		return fmt.Errorf("session: unknown clock %q", s.Clock)
	}
	return nil
}
