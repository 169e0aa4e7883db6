package telemetry

import (
	"context"
	"sort"
)

// CheckFunc reports a component's health; a non-nil error marks it
// unhealthy, with the error text surfaced in the report.
type CheckFunc func(ctx context.Context) error

// Health aggregates named component checks for GET /health. Checks are
// registered once at startup (app registers database, cache,
// worker_pool and queue_depth; there is no transport-reachability
// check) rather than the aggregator reaching into each component's
// concrete type directly.
type Health struct {
	checks map[string]CheckFunc
}

func NewHealth() *Health {
	return &Health{checks: make(map[string]CheckFunc)}
}

func (h *Health) Register(name string, check CheckFunc) {
	h.checks[name] = check
}

// Report is one named check's outcome.
type Report struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Summary is the full GET /health body: Healthy is false if any
// registered check failed.
type Summary struct {
	Healthy bool     `json:"healthy"`
	Checks  []Report `json:"checks"`
}

func (h *Health) Check(ctx context.Context) Summary {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	summary := Summary{Healthy: true}
	for _, name := range names {
		report := Report{Name: name, Healthy: true}
		if err := h.checks[name](ctx); err != nil {
			report.Healthy = false
			report.Detail = err.Error()
			summary.Healthy = false
		}
		summary.Checks = append(summary.Checks, report)
	}
	return summary
}
