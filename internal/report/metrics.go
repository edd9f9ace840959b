package report

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are boring counters about plan execution.
// No histograms, no percentiles: durations live in the mark store.
type Metrics struct {
	RunsStarted   atomic.Uint64
	RunsCompleted atomic.Uint64

	StepsStarted   atomic.Uint64
	StepsSucceeded atomic.Uint64 // exit_code=0
	StepsFailed    atomic.Uint64 // exit_code!=0 or failed to start
}

var globalMetrics = &Metrics{}

// Global returns the process-wide metrics instance
func Global() *Metrics {
	return globalMetrics
}

// RecordStep counts one finished step
func (m *Metrics) RecordStep(exitCode int, err error) {
	if err == nil && exitCode == 0 {
		m.StepsSucceeded.Add(1)
	} else {
		m.StepsFailed.Add(1)
	}
}

// Snapshot returns current counter values
func (m *Metrics) Snapshot() map[string]uint64 {
	return map[string]uint64{
		"runs_started":    m.RunsStarted.Load(),
		"runs_completed":  m.RunsCompleted.Load(),
		"steps_started":   m.StepsStarted.Load(),
		"steps_succeeded": m.StepsSucceeded.Load(),
		"steps_failed":    m.StepsFailed.Load(),
	}
}

var (
	runsDesc = prometheus.NewDesc(
		"perfpro_runs_total",
		"Plan runs by state",
		[]string{"state"},
		nil,
	)
	stepsDesc = prometheus.NewDesc(
		"perfpro_steps_total",
		"Plan steps by state",
		[]string{"state"},
		nil,
	)
)

// Describe implements prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- runsDesc
	ch <- stepsDesc
}

// Collect implements prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	s := m.Snapshot()
	ch <- prometheus.MustNewConstMetric(runsDesc, prometheus.CounterValue, float64(s["runs_started"]), "started")
	ch <- prometheus.MustNewConstMetric(runsDesc, prometheus.CounterValue, float64(s["runs_completed"]), "completed")
	ch <- prometheus.MustNewConstMetric(stepsDesc, prometheus.CounterValue, float64(s["steps_started"]), "started")
	ch <- prometheus.MustNewConstMetric(stepsDesc, prometheus.CounterValue, float64(s["steps_succeeded"]), "succeeded")
	ch <- prometheus.MustNewConstMetric(stepsDesc, prometheus.CounterValue, float64(s["steps_failed"]), "failed")
}
