// Package health provides health check implementations for external dependencies.
package health

import (
	"context"
	"time"
)

// Checker is a single dependency's health probe.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// checkTimeout bounds each individual probe.
const checkTimeout = 2 * time.Second

// Status is the aggregate health report.
type Status struct {
	Healthy bool              `json:"healthy"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Check runs all named checkers and aggregates the result.
// Each probe gets its own timeout so one stuck dependency cannot hold the
// endpoint open.
func Check(ctx context.Context, checkers map[string]Checker) Status {
	st := Status{Healthy: true}
	if len(checkers) == 0 {
		return st
	}

	st.Checks = make(map[string]string, len(checkers))
	for name, c := range checkers {
		probeCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.HealthCheck(probeCtx)
		cancel()
		if err != nil {
			st.Healthy = false
			st.Checks[name] = err.Error()
		} else {
			st.Checks[name] = "ok"
		}
	}
	return st
}
