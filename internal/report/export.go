package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/psantana5/perfpro/pkg/api"
	"github.com/psantana5/perfpro/pkg/perf"
	"gopkg.in/yaml.v3"
)

// Format selects how a report is written
type Format string

const (
	FormatTable      Format = "table"
	FormatJSON       Format = "json"
	FormatYAML       Format = "yaml"
	FormatPrometheus Format = "prom"
)

// ErrUnknownFormat is returned by Render and ParseFormat for unsupported formats
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat maps a user supplied name to a Format
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "table", "text":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "prom", "prometheus":
		return FormatPrometheus, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Report is a point-in-time copy of one namespace's durations
type Report struct {
	Name      string
	Durations []perf.MarkDuration
}

// Snapshot captures the current durations of p
func Snapshot(p *perf.Profiler, limit, omit []string) Report {
	return Report{
		Name:      p.App(),
		Durations: p.AllDurations(limit, omit),
	}
}

// App returns the namespace the report was taken from
func (r Report) App() string {
	return r.Name
}

// AllDurations filters the captured rows the same way Profiler.AllDurations
// does: a non-nil limit keeps only the listed names, omit drops names.
func (r Report) AllDurations(limit, omit []string) []perf.MarkDuration {
	out := make([]perf.MarkDuration, 0, len(r.Durations))
	for _, d := range r.Durations {
		if limit != nil && !slices.Contains(limit, d.Name) {
			continue
		}
		if slices.Contains(omit, d.Name) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Wire converts the report for JSON or YAML encoding
func (r Report) Wire() api.ReportJSON {
	return api.NewReportJSON(r.Name, r.Durations)
}

// Render writes r to w in the given format
func Render(w io.Writer, format Format, r Report) error {
	switch format {
	case FormatTable:
		return renderTable(w, r)
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(r.Wire())
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(r.Wire()); err != nil {
			return err
		}
		return encoder.Close()
	case FormatPrometheus:
		return renderPrometheus(w, r)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func renderTable(w io.Writer, r Report) error {
	if len(r.Durations) == 0 {
		_, err := fmt.Fprintf(w, "No marks recorded for %s\n", r.Name)
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Mark", "Duration (ms)", "State")

	for _, d := range r.Durations {
		table.Append(
			displayName(d.Name),
			fmt.Sprintf("%.3f", d.Milliseconds()),
			state(d),
		)
	}

	table.Render()
	_, err := fmt.Fprintf(w, "\nTotal marks: %d\n", len(r.Durations))
	return err
}

func renderPrometheus(w io.Writer, r Report) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(r)); err != nil {
		return fmt.Errorf("failed to register collector: %w", err)
	}

	metricFamilies, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	encoder := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metricFamilies {
		if err := encoder.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// displayName makes the unnamed bucket visible in tables
func displayName(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return name
}

func state(d perf.MarkDuration) string {
	if d.Open {
		return "open"
	}
	return "closed"
}
