package report

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/psantana5/perfpro/pkg/perf"
)

// Source is anything that can list durations for one namespace.
// *perf.Profiler and Report both satisfy it.
type Source interface {
	App() string
	AllDurations(limit, omit []string) []perf.MarkDuration
}

var (
	markDurationDesc = prometheus.NewDesc(
		"perfpro_mark_duration_seconds",
		"Duration between the first and latest mark, or to now for open marks",
		[]string{"app", "mark", "state"},
		nil,
	)
	marksDesc = prometheus.NewDesc(
		"perfpro_marks",
		"Number of distinct mark names recorded per app",
		[]string{"app"},
		nil,
	)
)

// Collector exposes mark durations as Prometheus gauges.
// Durations are computed at scrape time; nothing is cached.
type Collector struct {
	mu      sync.RWMutex
	sources []Source
}

// NewCollector creates a collector over the given sources
func NewCollector(sources ...Source) *Collector {
	return &Collector{sources: sources}
}

// Add registers another source
func (c *Collector) Add(s Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = append(c.sources, s)
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- markDurationDesc
	ch <- marksDesc
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	sources := make([]Source, len(c.sources))
	copy(sources, c.sources)
	c.mu.RUnlock()

	// Sources may share a namespace, e.g. two profilers with the same app
	// over different stores. Their marks are merged per app; when both hold
	// the same mark name the first source added wins.
	type series struct{ app, mark string }
	seen := make(map[series]bool)
	counts := make(map[string]int)
	apps := make([]string, 0, len(sources))

	for _, s := range sources {
		app := s.App()
		if _, ok := counts[app]; !ok {
			counts[app] = 0
			apps = append(apps, app)
		}

		for _, d := range s.AllDurations(nil, nil) {
			k := series{app: app, mark: d.Name}
			if seen[k] {
				continue
			}
			seen[k] = true
			counts[app]++

			ch <- prometheus.MustNewConstMetric(
				markDurationDesc,
				prometheus.GaugeValue,
				d.Duration.Seconds(),
				app, d.Name, state(d),
			)
		}
	}

	for _, app := range apps {
		ch <- prometheus.MustNewConstMetric(
			marksDesc,
			prometheus.GaugeValue,
			float64(counts[app]),
			app,
		)
	}
}
