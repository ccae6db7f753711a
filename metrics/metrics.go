// Package metrics exposes prometheus collectors describing an online
// learning agent
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Agent holds the collectors of a single agent
type Agent struct {
	// Counters
	ticks          *prometheus.CounterVec
	gradientSteps  prometheus.Counter
	skippedUpdates prometheus.Counter
	targetSyncs    prometheus.Counter
	clampedActions prometheus.Counter

	// Gauges
	epsilon   prometheus.Gauge
	bufferLen prometheus.Gauge
	enabled   prometheus.Gauge

	// Histograms
	loss prometheus.Histogram
}

// NewAgent creates the collectors of an agent and registers them with
// reg. Each agent needs its own Registerer.
func NewAgent(reg prometheus.Registerer) *Agent {
	factory := promauto.With(reg)

	return &Agent{
		ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "autoracer_ticks_total",
			Help: "Total number of agent ticks by outcome",
		}, []string{"status"}),
		gradientSteps: factory.NewCounter(prometheus.CounterOpts{
			Name: "autoracer_gradient_steps_total",
			Help: "Total number of applied gradient steps",
		}),
		skippedUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "autoracer_skipped_updates_total",
			Help: "Total number of updates skipped for a non-finite loss or gradient",
		}),
		targetSyncs: factory.NewCounter(prometheus.CounterOpts{
			Name: "autoracer_target_syncs_total",
			Help: "Total number of target network synchronisations",
		}),
		clampedActions: factory.NewCounter(prometheus.CounterOpts{
			Name: "autoracer_clamped_actions_total",
			Help: "Total number of out of range actions clamped before use",
		}),
		epsilon: factory.NewGauge(prometheus.GaugeOpts{
			Name: "autoracer_epsilon",
			Help: "Current exploration rate",
		}),
		bufferLen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "autoracer_replay_buffer_length",
			Help: "Number of transitions held by the replay buffer",
		}),
		enabled: factory.NewGauge(prometheus.GaugeOpts{
			Name: "autoracer_agent_enabled",
			Help: "Whether the agent is currently driving (1) or not (0)",
		}),
		loss: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "autoracer_td_loss",
			Help:    "Mean squared TD loss of applied gradient steps",
			Buckets: prometheus.ExponentialBuckets(1e-4, 4, 12),
		}),
	}
}

// IncrementTicks increments the tick counter for a tick outcome
func (m *Agent) IncrementTicks(status string) {
	m.ticks.WithLabelValues(status).Inc()
}

// IncrementGradientSteps increments the applied gradient step counter
func (m *Agent) IncrementGradientSteps() {
	m.gradientSteps.Inc()
}

// IncrementSkippedUpdates increments the skipped update counter
func (m *Agent) IncrementSkippedUpdates() {
	m.skippedUpdates.Inc()
}

// IncrementTargetSyncs increments the target sync counter
func (m *Agent) IncrementTargetSyncs() {
	m.targetSyncs.Inc()
}

// AddClampedActions adds n to the clamped action counter
func (m *Agent) AddClampedActions(n int64) {
	if n > 0 {
		m.clampedActions.Add(float64(n))
	}
}

// SetEpsilon records the current exploration rate
func (m *Agent) SetEpsilon(eps float64) {
	m.epsilon.Set(eps)
}

// SetBufferLen records the replay buffer length
func (m *Agent) SetBufferLen(n int) {
	m.bufferLen.Set(float64(n))
}

// SetEnabled records whether the agent is enabled
func (m *Agent) SetEnabled(enabled bool) {
	if enabled {
		m.enabled.Set(1)
	} else {
		m.enabled.Set(0)
	}
}

// ObserveLoss records the loss of an applied gradient step
func (m *Agent) ObserveLoss(loss float64) {
	m.loss.Observe(loss)
}

// Handler returns an HTTP handler serving the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
