package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithError(t *testing.T) {
	w := httptest.NewRecorder()
	RespondWithError(w, http.StatusForbidden, "role VIEWER is not allowed")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "role VIEWER is not allowed", resp.Error)
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Command string `json:"command"`
	}

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"command":"ls -la"}`))
		var b body
		require.NoError(t, DecodeJSON(r, &b))
		assert.Equal(t, "ls -la", b.Command)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"cmd":"ls"}`))
		var b body
		assert.Error(t, DecodeJSON(r, &b))
	})

	t.Run("malformed body rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		var b body
		assert.Error(t, DecodeJSON(r, &b))
	})
}
