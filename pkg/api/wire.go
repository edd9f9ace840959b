package api

import "github.com/psantana5/perfpro/pkg/perf"

// DurationJSON is the wire form of one duration
type DurationJSON struct {
	Name       string  `json:"name" yaml:"name"`
	DurationMS float64 `json:"duration_ms" yaml:"duration_ms"`
	Open       bool    `json:"open" yaml:"open"`
}

// ReportJSON is the wire form of one namespace's durations
type ReportJSON struct {
	App       string         `json:"app" yaml:"app"`
	Durations []DurationJSON `json:"durations" yaml:"durations"`
	Count     int            `json:"count" yaml:"count"`
}

// NewDurationJSON converts a single duration
func NewDurationJSON(d perf.MarkDuration) DurationJSON {
	return DurationJSON{
		Name:       d.Name,
		DurationMS: d.Milliseconds(),
		Open:       d.Open,
	}
}

// NewReportJSON converts the durations of app. Durations is never nil so it
// encodes as an empty list.
func NewReportJSON(app string, ds []perf.MarkDuration) ReportJSON {
	out := ReportJSON{
		App:       app,
		Durations: make([]DurationJSON, 0, len(ds)),
		Count:     len(ds),
	}
	for _, d := range ds {
		out.Durations = append(out.Durations, NewDurationJSON(d))
	}
	return out
}
