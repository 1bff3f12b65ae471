package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	// Check probes a dependency such as the database. Nil reports healthy.
	Check func(ctx context.Context) error
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Check != nil {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := h.Check(checkCtx); err != nil {
			respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}
