// Command autoracer runs a headless driving session in which a deep
// Q-learning agent learns to drive around a ring track online
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/samuelfneumann/autoracer/agent/deepq"
	"github.com/samuelfneumann/autoracer/config"
	"github.com/samuelfneumann/autoracer/environment/track"
	"github.com/samuelfneumann/autoracer/experiment"
	"github.com/samuelfneumann/autoracer/experiment/tracker"
	"github.com/samuelfneumann/autoracer/exploration"
	"github.com/samuelfneumann/autoracer/logger"
	"github.com/samuelfneumann/autoracer/metrics"
	"github.com/samuelfneumann/autoracer/utils/progressbar"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := pflag.StringP("config", "c", "",
		"path to the configuration file")
	pflag.Parse()

	cfg, v, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "autoracer: %v\n", err)
		os.Exit(1)
	}

	session := uuid.New().String()
	log := logger.New(cfg.Logging).WithField("session", session)
	if file := v.ConfigFileUsed(); file != "" {
		log.WithField("file", file).Info("using config file")
	}

	if err := run(cfg, v, session, log); err != nil {
		log.WithError(err).Fatal("session failed")
	}
}

// run drives a session until its tick limit is reached or the process
// is interrupted
func run(cfg *config.Config, v *viper.Viper, session string,
	log *logrus.Entry) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()

	e, err := track.New(cfg.Track)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewAgent(reg)

	var clock exploration.Clock = exploration.NewWallClock()
	if cfg.Session.Clock == config.ClockTick {
		clock = exploration.NewTickClock(time.Duration(cfg.Track.Dt *
			float64(time.Second)))
	}

	opts := []deepq.Option{
		deepq.WithLogger(log),
		deepq.WithMetrics(m),
		deepq.WithClock(clock),
	}

	var learner *deepq.Learner
	if cfg.Session.Learner {
		learner, err = deepq.NewLearner(e, cfg.Agent,
			cfg.Session.LearnerInterval, log, m)
		if err != nil {
			return err
		}
		opts = append(opts, deepq.WithLearner(learner))
	}

	d, err := deepq.New(e, cfg.Agent, opts...)
	if err != nil {
		return err
	}

	exp := experiment.NewOnline(e, d, cfg.Session.Ticks,
		cfg.Session.TickRate, log)
	var rewards *tracker.Reward
	if dir := cfg.Session.TrackerDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create tracker directory: %w", err)
		}
		rewards = tracker.NewReward(filepath.Join(dir, session+"_reward.bin"))
		exp.Register(rewards)
		exp.Register(tracker.NewStatus(filepath.Join(dir,
			session+"_status.bin")))
	}
	if cfg.Session.Progress && cfg.Session.Ticks > 0 {
		exp.SetProgressBar(progressbar.New(os.Stdout, 50, cfg.Session.Ticks,
			100*time.Millisecond))
	}

	if v.ConfigFileUsed() != "" {
		config.Watch(v, log, func(c *config.Config) {
			d.SetEnabled(c.Agent.Enabled)
		})
	}

	g, ctx := errgroup.WithContext(ctx)
	if learner != nil {
		g.Go(func() error {
			return learner.Run(ctx)
		})
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		server := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}

		g.Go(func() error {
			log.WithField("addr", cfg.Metrics.Addr).Info("serving metrics")
			err := server.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(),
				shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		// The session ending stops every other goroutine
		defer stop()
		return exp.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if err := exp.Save(); err != nil {
		return err
	}

	fields := logrus.Fields{
		"ticks":           d.Ticks(),
		"rb_len":          d.BufferLen(),
		"skipped_updates": d.SkippedUpdates(),
		"crashes":         e.Crashes(),
	}
	if rewards != nil {
		fields["return"] = rewards.Total()
	}
	log.WithFields(fields).Info("session complete")
	return nil
}
