package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/psantana5/perfpro/pkg/perf"
)

// DurationsHandler serves a read-only view of one profiler's marks
type DurationsHandler struct {
	profiler *perf.Profiler
	gatherer prometheus.Gatherer
}

// NewDurationsHandler creates a handler for p. When gatherer is nil the
// /metrics route is not registered.
func NewDurationsHandler(p *perf.Profiler, gatherer prometheus.Gatherer) *DurationsHandler {
	return &DurationsHandler{
		profiler: p,
		gatherer: gatherer,
	}
}

// RegisterRoutes registers all API routes
func (h *DurationsHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/durations", h.ListDurations).Methods("GET")
	r.HandleFunc("/durations/{name}", h.GetDuration).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")
	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
}

// ListDurations returns every duration of the namespace.
// ?limit=a,b and ?omit=c filter the result.
func (h *DurationsHandler) ListDurations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := splitList(q, "limit")
	omit := splitList(q, "omit")

	writeJSON(w, http.StatusOK, NewReportJSON(h.profiler.App(), h.profiler.AllDurations(limit, omit)))
}

// GetDuration returns a single duration, or 404 when the mark does not exist
func (h *DurationsHandler) GetDuration(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	ds := h.profiler.AllDurations([]string{name}, nil)
	if len(ds) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "mark not found",
			"name":  name,
		})
		return
	}

	writeJSON(w, http.StatusOK, NewDurationJSON(ds[0]))
}

// Health reports liveness
func (h *DurationsHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// splitList reads a comma separated query parameter. A missing parameter is
// nil, which means "no filter"; an empty one is an empty list.
func splitList(q map[string][]string, key string) []string {
	values, ok := q[key]
	if !ok {
		return nil
	}
	out := make([]string, 0)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
