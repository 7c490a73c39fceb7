// Package health serves the liveness and readiness probes for the
// conversation backend.
//
//   - GET /healthz — liveness; a process that answers is alive.
//   - GET /readyz  — readiness; 503 while a required dependency is down.
//
// Dependencies register as named probes. Optional probes (an open speech
// breaker, say) mark the service degraded without making it unready, since
// conversations continue in text-only form while a speech provider is out.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// probeTimeout bounds a single readiness probe.
const probeTimeout = 5 * time.Second

// Probe is one named dependency check.
type Probe struct {
	// Name keys the probe's entry in the readiness report.
	Name string

	// Check reports the dependency's health. It must honor ctx cancellation.
	Check func(ctx context.Context) error

	// Optional probes degrade the service when failing instead of taking
	// readiness down.
	Optional bool
}

// Database builds the required probe over the learner store's connectivity
// check.
func Database(ping func(ctx context.Context) error) Probe {
	return Probe{Name: "database", Check: ping}
}

// Speech builds an optional probe that fails while any speech provider is
// unavailable. degraded lists the affected providers, typically
// [voice.Transport.DegradedProviders].
func Speech(degraded func() []string) Probe {
	return Probe{
		Name:     "speech",
		Optional: true,
		Check: func(context.Context) error {
			if names := degraded(); len(names) > 0 {
				return fmt.Errorf("providers unavailable: %s", strings.Join(names, ", "))
			}
			return nil
		},
	}
}

// probeReport is one probe's entry in the readiness response.
type probeReport struct {
	Status string `json:"status"` // up | down
	Error  string `json:"error,omitempty"`
}

// report is the readiness response body. Status is "up", "degraded" (an
// optional probe failed), or "down".
type report struct {
	Status string                 `json:"status"`
	Checks map[string]probeReport `json:"checks,omitempty"`
}

// Handler answers the probe endpoints. The probe list is fixed at
// construction, so it is safe for concurrent use.
type Handler struct {
	probes []Probe
}

// New creates a Handler evaluating the given probes, in order, on each
// readiness request.
func New(probes ...Probe) *Handler {
	return &Handler{probes: append([]Probe(nil), probes...)}
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, http.StatusOK, report{Status: "up"})
}

// Readyz runs every probe and reports per-dependency results. A failing
// required probe answers 503; failing optional probes leave the status
// "degraded" at 200.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	res := report{
		Status: "up",
		Checks: make(map[string]probeReport, len(h.probes)),
	}
	status := http.StatusOK

	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Check(ctx)
		cancel()

		if err == nil {
			res.Checks[p.Name] = probeReport{Status: "up"}
			continue
		}
		res.Checks[p.Name] = probeReport{Status: "down", Error: err.Error()}
		if p.Optional {
			if res.Status == "up" {
				res.Status = "degraded"
			}
			continue
		}
		res.Status = "down"
		status = http.StatusServiceUnavailable
	}

	writeReport(w, status, res)
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeReport(w http.ResponseWriter, status int, res report) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		http.Error(w, `{"status":"down"}`, http.StatusInternalServerError)
	}
}
