package api

import (
	"context"
	"net/http"

	"github.com/okian/findna/internal/domain/model"
)

// HealthReporter returns the current pipeline health.
type HealthReporter interface {
	Health(ctx context.Context) model.HealthSnapshot
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	reporter HealthReporter
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(reporter HealthReporter) *HealthHandler {
	return &HealthHandler{reporter: reporter}
}

// HandleHealth handles GET /healthz requests. The process answers 200 while
// it serves; upstream trouble shows in overall_status and issues.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reporter.Health(r.Context()))
}
