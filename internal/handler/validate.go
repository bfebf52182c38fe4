package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/execbox/internal/apperror"
	"github.com/sakif/execbox/internal/model"
)

// ValidateHandler serves POST /validate.
type ValidateHandler struct {
	engine   Engine
	language string
	logger   *slog.Logger
}

// NewValidateHandler creates a new ValidateHandler bound to one language.
func NewValidateHandler(engine Engine, language string, logger *slog.Logger) *ValidateHandler {
	return &ValidateHandler{
		engine:   engine,
		language: language,
		logger:   logger,
	}
}

// HandleValidate syntax-checks submitted code without executing it.
//
// HTTP: POST /validate
// REQUEST BODY: {"code": "..."}
//
// Invalid syntax is a 200 with isValid=false — the check worked, the code
// did not. 400 is reserved for submissions the checker never saw.
func (h *ValidateHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req model.ValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid validation request body", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "Invalid JSON body"))
		return
	}

	if strings.TrimSpace(req.Code) == "" {
		writeError(w, apperror.ValidationFailed("code", "Code is required"))
		return
	}

	req.Language = h.language

	result := h.engine.ValidateSyntax(r.Context(), req)
	writeJSON(w, http.StatusOK, result)
}
