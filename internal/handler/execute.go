// Package handler contains the HTTP handlers of the executor service.
//
// One deployed service speaks for exactly one language: a python-executor
// answers /execute and /validate for python and nothing else. The language
// field of incoming payloads is therefore overruled with the service's own
// language — which service you ask IS the language selection.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/execbox/internal/apperror"
	"github.com/sakif/execbox/internal/model"
)

// Engine is the slice of the execution engine the HTTP layer consumes.
// Handlers depend on this interface rather than the concrete service.Engine
// so tests can script outcomes without a sandbox backend behind them.
type Engine interface {
	Execute(ctx context.Context, req model.ExecutionRequest) model.ExecutionResult
	ValidateSyntax(ctx context.Context, req model.ValidationRequest) model.ValidationResult
	Info(ctx context.Context, language string) (model.ServiceInfo, error)
}

// ExecuteHandler serves POST /execute.
type ExecuteHandler struct {
	engine   Engine
	language string
	logger   *slog.Logger
}

// NewExecuteHandler creates a new ExecuteHandler bound to one language.
func NewExecuteHandler(engine Engine, language string, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		engine:   engine,
		language: language,
		logger:   logger,
	}
}

// HandleExecute runs one piece of submitted code and answers with the
// canonical result.
//
// HTTP: POST /execute
// REQUEST BODY: {"code": "...", "inputData": "...", "timeout": 10}
//
// Only requests the service cannot act on at all get an error status code
// (400 for unparseable or empty submissions). A program that fails to
// compile, crashes, or times out is still a 200 — the result's status field
// carries that story, and it must look identical whether the code ran here
// or in some other deployment's local sandbox.
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req model.ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "Invalid JSON body"))
		return
	}

	if strings.TrimSpace(req.Code) == "" {
		writeError(w, apperror.ValidationFailed("code", "Code is required"))
		return
	}

	// Whatever language the payload claims, this service executes its own.
	req.Language = h.language

	h.logger.Info("executing code",
		slog.String("language", h.language),
		slog.Int("code_bytes", len(req.Code)),
		slog.Int("timeout", req.Timeout))

	result := h.engine.Execute(r.Context(), req)
	writeJSON(w, http.StatusOK, result)
}
