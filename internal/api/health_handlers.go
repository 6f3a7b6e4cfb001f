package api

import (
	"net/http"

	"github.com/tundex/cinemarket/internal/health"
)

// HealthHandlers holds the dependency probes for the health endpoint.
type HealthHandlers struct {
	checkers map[string]health.Checker
}

// NewHealthHandlers creates a new HealthHandlers instance.
// checkers may be empty when the server runs without external dependencies.
func NewHealthHandlers(checkers map[string]health.Checker) *HealthHandlers {
	return &HealthHandlers{checkers: checkers}
}

// HandleHealth reports aggregate service health.
// GET /health
//
// Returns 200 when every dependency probe passes and 503 otherwise, with a
// per-dependency breakdown in the body.
func (h *HealthHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
		return
	}

	st := health.Check(ctx, h.checkers)
	status := http.StatusOK
	if !st.Healthy {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, ctx, status, st)
}
