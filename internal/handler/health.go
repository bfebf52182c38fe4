package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/execbox/internal/model"
)

// HealthHandler serves the probes the dispatch router and operational
// tooling use to watch this service.
type HealthHandler struct {
	engine   Engine
	language string
	logger   *slog.Logger
}

// NewHealthHandler creates a new HealthHandler bound to one language.
func NewHealthHandler(engine Engine, language string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		engine:   engine,
		language: language,
		logger:   logger,
	}
}

// HandleHealth reports liveness.
//
// HTTP: GET /health
//
// Answering at all is the health signal — dispatchers probing this endpoint
// treat any 200 as "route up". No sandbox is touched: a probe must stay
// cheap enough to run every few seconds without competing with executions.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.ServiceStatus{
		Status:  model.HealthHealthy,
		Service: h.language + "-executor",
	})
}

// HandleInfo describes this service: identity, toolchain version, the
// ceilings it enforces, and the libraries available inside its sandbox.
//
// HTTP: GET /info
func (h *HealthHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.engine.Info(r.Context(), h.language)
	if err != nil {
		h.logger.Error("service info unavailable", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
