package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/commerce-gateway/services"
	"github.com/upb/commerce-gateway/utils"
	"go.uber.org/zap"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{"not found error", services.ErrAccountNotFound, http.StatusNotFound, "not_found"},
		{"validation error", services.ErrMissingMessage, http.StatusBadRequest, "bad_request"},
		{"unauthorized error", services.WrapError(services.ErrorTypeUnauthorized, "invalid credentials", nil), http.StatusUnauthorized, "unauthorized"},
		{"forbidden error", services.WrapError(services.ErrorTypeForbidden, "access forbidden", nil), http.StatusForbidden, "forbidden"},
		{"conflict error", services.ErrDuplicateUsername, http.StatusConflict, "conflict"},
		{"unavailable error", services.WrapUnavailable("credential store unavailable", nil), http.StatusServiceUnavailable, "service_unavailable"},
		{"external provider error", services.WrapExternal("provider unavailable", nil), http.StatusBadGateway, "bad_gateway"},
		{"internal error", services.WrapInternal("hash failed", nil), http.StatusInternalServerError, "internal_error"},
		{"unknown error", errors.New("some unknown error"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response utils.ErrorResponse
			err := json.NewDecoder(w.Body).Decode(&response)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedError, response.Error)
			assert.NotEmpty(t, response.Message)
		})
	}
}

func TestHandleServiceErrorHidesCause(t *testing.T) {
	err := services.WrapUnavailable("credential store unavailable", errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	w := httptest.NewRecorder()
	HandleServiceError(w, err, zap.NewNop())

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
	assert.Contains(t, w.Body.String(), "credential store unavailable")
}

func TestHandleServiceErrorWithDetails(t *testing.T) {
	err := services.ErrDuplicateUsername.WithDetail("username", "admin")

	w := httptest.NewRecorder()
	HandleServiceError(w, err, zap.NewNop())

	assert.Equal(t, http.StatusConflict, w.Code)

	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "admin", response.Details["username"])
}

func TestHandleServiceErrorNil(t *testing.T) {
	w := httptest.NewRecorder()

	HandleServiceError(w, nil, zap.NewNop())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandleValidationError(t *testing.T) {
	logger := zap.NewNop()

	t.Run("custom validation error", func(t *testing.T) {
		err := &utils.ValidationError{
			Message: "Validation failed",
			Fields:  map[string]string{"Username": "Username is required"},
		}

		w := httptest.NewRecorder()
		HandleValidationError(w, err, logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "Validation failed", response.Message)
		assert.Equal(t, "Username is required", response.Details["Username"])
	})

	t.Run("malformed body", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleValidationError(w, errors.New("invalid JSON body: unexpected EOF"), logger)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response utils.ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "Invalid request body", response.Message)
	})
}
