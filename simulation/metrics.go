package simulation

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects per-run counters on a private registry. Batch jobs have no
// scrape endpoint, so the registry is written out in the node exporter
// textfile format with WriteToTextfile.
type Metrics struct {
	registry *prometheus.Registry

	runs       prometheus.Counter
	trials     prometheus.Counter
	plays      *prometheus.CounterVec
	wins       *prometheus.CounterVec
	identified prometheus.Counter
	regret     prometheus.Histogram
	duration   prometheus.Histogram
}

// NewMetrics registers the simulation metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bandit",
			Name:      "runs_total",
			Help:      "Completed simulation runs.",
		}),
		trials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bandit",
			Name:      "trials_total",
			Help:      "Trials played across all runs.",
		}),
		plays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bandit",
			Name:      "arm_plays_total",
			Help:      "Times each arm was chosen.",
		}, []string{"arm"}),
		wins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bandit",
			Name:      "arm_wins_total",
			Help:      "Rewarded plays per arm.",
		}, []string{"arm"}),
		identified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bandit",
			Name:      "best_arm_identified_total",
			Help:      "Runs whose most played arm has the highest true win rate.",
		}),
		regret: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bandit",
			Name:      "run_regret",
			Help:      "Expected regret per run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bandit",
			Name:      "run_duration_seconds",
			Help:      "Wall time per run.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}

	m.registry.MustRegister(m.runs, m.trials, m.plays, m.wins, m.identified, m.regret, m.duration)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Observe records a finished run. Arms are labelled 1-indexed, like the report.
func (m *Metrics) Observe(r *Result) {
	m.runs.Inc()
	m.trials.Add(float64(r.Trials))
	for i := range r.Wins {
		arm := strconv.Itoa(i + 1)
		m.plays.WithLabelValues(arm).Add(float64(r.Wins[i] + r.Losses[i]))
		m.wins.WithLabelValues(arm).Add(float64(r.Wins[i]))
	}
	if r.Stats().BestArm == r.TrueBestArm() {
		m.identified.Inc()
	}
	m.regret.Observe(r.Regret())
	m.duration.Observe(r.Duration.Seconds())
}

// WriteToTextfile writes all metrics to path atomically.
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
