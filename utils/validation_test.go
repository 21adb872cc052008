package utils

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginBody struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,max=8"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		err := ValidateStruct(&loginBody{Username: "admin", Password: "1234"})
		assert.NoError(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		err := ValidateStruct(&loginBody{Password: "1234"})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
		assert.Equal(t, "Username is required", GetValidationFields(err)["Username"])
	})

	t.Run("too long", func(t *testing.T) {
		err := ValidateStruct(&loginBody{Username: "a", Password: "123456789"})
		require.Error(t, err)
		assert.Equal(t, "Password must be at most 8", GetValidationFields(err)["Password"])
	})
}

func TestDecodeJSON(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/login", strings.NewReader(`{"username":"admin","password":"1234"}`))
		var body loginBody
		require.NoError(t, DecodeJSON(req, &body))
		assert.Equal(t, "admin", body.Username)
	})

	t.Run("broken json", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/login", strings.NewReader(`{"username":`))
		var body loginBody
		err := DecodeJSON(req, &body)
		require.Error(t, err)
		assert.False(t, IsValidationError(err))
	})

	t.Run("fails validation", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/login", strings.NewReader(`{"username":"admin"}`))
		var body loginBody
		err := DecodeJSON(req, &body)
		assert.True(t, IsValidationError(err))
	})
}

func TestGetValidationFieldsNonValidationError(t *testing.T) {
	assert.Nil(t, GetValidationFields(assert.AnError))
	assert.False(t, IsValidationError(assert.AnError))
}
