// Package metrics holds the Prometheus collectors for verification runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ppiankov/veracity/internal/model"
)

const namespace = "veracity"

// Collectors groups the verification metrics. A nil *Collectors records nothing.
type Collectors struct {
	// lookups counts evidence lookups.
	// Labels: outcome (found, ambiguous, not_found, error)
	lookups *prometheus.CounterVec

	// lookupRetries counts retried lookup attempts
	lookupRetries prometheus.Counter

	// verdicts counts verdicts by label.
	// Labels: label
	verdicts *prometheus.CounterVec

	// scoring measures model scoring latency.
	// Labels: strategy, status (ok, failed)
	scoring *prometheus.HistogramVec

	// runs counts pipeline runs.
	// Labels: mode, status (ok, aborted)
	runs *prometheus.CounterVec
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Evidence lookups by outcome",
		}, []string{"outcome"}),
		lookupRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookup_retries_total",
			Help:      "Evidence lookup attempts retried after a temporary failure",
		}),
		verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_total",
			Help:      "Verdicts by label",
		}, []string{"label"}),
		scoring: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scoring_seconds",
			Help:      "Semantic scoring latency in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"strategy", "status"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by mode and status",
		}, []string{"mode", "status"}),
	}
}

// ObserveLookup records a lookup outcome; err takes precedence over the result
func (c *Collectors) ObserveLookup(result model.EvidenceResult, err error) {
	if c == nil {
		return
	}
	outcome := string(result.Kind)
	if err != nil {
		outcome = "error"
	}
	c.lookups.WithLabelValues(outcome).Inc()
}

// ObserveRetry records one retried lookup attempt
func (c *Collectors) ObserveRetry() {
	if c == nil {
		return
	}
	c.lookupRetries.Inc()
}

// ObserveScore records how long scoring took and whether it failed
func (c *Collectors) ObserveScore(strategy model.Strategy, result model.ScoreResult, elapsed time.Duration) {
	if c == nil {
		return
	}
	status := "ok"
	if result.Failed {
		status = "failed"
	}
	c.scoring.WithLabelValues(string(strategy), status).Observe(elapsed.Seconds())
}

// ObserveReport records a finished run and each of its verdicts
func (c *Collectors) ObserveReport(report *model.Report, runErr error) {
	if c == nil || report == nil {
		return
	}
	status := "ok"
	if runErr != nil {
		status = "aborted"
	}
	c.runs.WithLabelValues(string(report.Mode), status).Inc()
	for _, v := range report.Verdicts {
		c.verdicts.WithLabelValues(string(v.Label)).Inc()
	}
}
