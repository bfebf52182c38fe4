package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/execbox/internal/apperror"
	"github.com/sakif/execbox/internal/handler"
	"github.com/sakif/execbox/internal/model"
)

func TestHealthHandler_HandleHealth(t *testing.T) {
	h := handler.NewHealthHandler(&mockEngine{}, "go", testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	h.HandleHealth(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var res model.ServiceStatus
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, model.HealthHealthy, res.Status)
	assert.Equal(t, "go-executor", res.Service)
}

func TestHealthHandler_HandleInfo(t *testing.T) {
	logger := testLogger()

	t.Run("serves engine info", func(t *testing.T) {
		eng := &mockEngine{
			infoResult: model.ServiceInfo{
				Service:            "python-executor",
				Language:           "python",
				Version:            "3.12",
				MaxExecutionTime:   60,
				MaxMemoryMB:        128,
				MaxCodeSizeKB:      50,
				AvailableLibraries: []string{"json", "math"},
			},
		}
		h := handler.NewHealthHandler(eng, "python", logger)

		req := httptest.NewRequest(http.MethodGet, "/info", nil)
		rr := httptest.NewRecorder()

		h.HandleInfo(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "python", eng.capturedInfoLang)

		var res model.ServiceInfo
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "python-executor", res.Service)
		assert.Equal(t, "3.12", res.Version)
		assert.Equal(t, 60, res.MaxExecutionTime)
	})

	t.Run("maps unsupported language to 404", func(t *testing.T) {
		eng := &mockEngine{infoErr: apperror.NotSupported("cobol")}
		h := handler.NewHealthHandler(eng, "cobol", logger)

		req := httptest.NewRequest(http.MethodGet, "/info", nil)
		rr := httptest.NewRecorder()

		h.HandleInfo(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)

		var res handler.ErrorResponse
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, "not_supported", res.Error)
	})
}
