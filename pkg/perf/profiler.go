// Package perf records and queries named timing intervals ("marks") inside a
// process.
//
// A Profiler is a namespaced view over a mark store. Profilers created with the
// same application name over the same store see the same marks; different names
// never see each other's marks.
//
//	p := perf.New("api")
//	p.Mark("load")
//	loadConfig()
//	p.Mark("load")
//	d, ok := p.Duration("load")
//
// Calling Mark once opens an interval that Duration measures against the store
// clock. A second call closes it. Further calls move the end of the interval to
// the latest mark while the start stays at the first one.
package perf

import (
	"slices"
	"time"

	"github.com/psantana5/perfpro/pkg/logging"
	"github.com/psantana5/perfpro/pkg/markstore"
)

// DefaultApp is the namespace used when none is given
const DefaultApp = "perfpro"

// MarkDuration is one row of AllDurations
type MarkDuration struct {
	Name     string
	Duration time.Duration
	Open     bool // only one mark recorded, measured to now
}

// Milliseconds returns the duration as fractional milliseconds
func (m MarkDuration) Milliseconds() float64 {
	return float64(m.Duration) / float64(time.Millisecond)
}

// Profiler is a namespaced mark recorder
type Profiler struct {
	app    string
	store  markstore.Store
	logger *logging.Logger
}

// Option configures a Profiler
type Option func(*Profiler)

// WithStore makes the profiler use s instead of the process default store
func WithStore(s markstore.Store) Option {
	return func(p *Profiler) {
		if s != nil {
			p.store = s
		}
	}
}

// WithLogger sets the logger used for debug output
func WithLogger(l *logging.Logger) Option {
	return func(p *Profiler) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a profiler for app. An empty app falls back to DefaultApp.
func New(app string, opts ...Option) *Profiler {
	if app == "" {
		app = DefaultApp
	}
	p := &Profiler{
		app:    app,
		store:  markstore.Default(),
		logger: logging.NewDiscard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithField("app", app)
	return p
}

// App returns the profiler namespace
func (p *Profiler) App() string {
	return p.app
}

func (p *Profiler) key(name string) markstore.Key {
	return markstore.Key{Namespace: p.app, Name: name}
}

// Mark records a mark called name. Call it twice with the same name to set the
// start and end of an interval; a third or later call moves the end.
func (p *Profiler) Mark(name string) {
	p.store.Record(p.key(name))
}

// Duration returns the interval for name and whether the mark exists.
// With a single mark the interval runs to the current store clock reading,
// otherwise it spans the first and the latest mark.
func (p *Profiler) Duration(name string) (time.Duration, bool) {
	d, _, ok := p.duration(name)
	return d, ok
}

func (p *Profiler) duration(name string) (d time.Duration, open bool, ok bool) {
	entries := p.store.Query(p.key(name))
	switch len(entries) {
	case 0:
		return 0, false, false
	case 1:
		return p.store.Now() - entries[0].StartTime, true, true
	default:
		return entries[len(entries)-1].StartTime - entries[0].StartTime, false, true
	}
}

// Names returns the distinct mark names of this namespace in order of first
// appearance
func (p *Profiler) Names() []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, e := range p.store.QueryAll(markstore.KindMark) {
		if e.Key.Namespace != p.app {
			continue
		}
		if _, ok := seen[e.Key.Name]; ok {
			continue
		}
		seen[e.Key.Name] = struct{}{}
		names = append(names, e.Key.Name)
	}
	return names
}

// AllDurations returns the duration of every mark in this namespace.
// A non-nil limit keeps only the listed names; omit then drops names from what
// is left. Names in limit that were never marked are skipped.
func (p *Profiler) AllDurations(limit, omit []string) []MarkDuration {
	out := make([]MarkDuration, 0)
	for _, name := range p.Names() {
		if limit != nil && !slices.Contains(limit, name) {
			continue
		}
		if omit != nil && slices.Contains(omit, name) {
			continue
		}
		d, open, ok := p.duration(name)
		if !ok {
			// erased between enumeration and lookup
			continue
		}
		out = append(out, MarkDuration{Name: name, Duration: d, Open: open})
	}
	return out
}

// Clear removes every mark called name. An empty name clears the whole
// namespace; marks of other namespaces are left alone.
func (p *Profiler) Clear(name string) {
	if name != "" {
		p.store.Erase(p.key(name))
		p.logger.Debug("cleared mark", logging.Fields{"mark": name})
		return
	}

	names := p.Names()
	for _, n := range names {
		p.store.Erase(p.key(n))
	}
	p.logger.Debug("cleared namespace", logging.Fields{"marks": len(names)})
}

// ClearAll removes every mark in this namespace
func (p *Profiler) ClearAll() {
	p.Clear("")
}
