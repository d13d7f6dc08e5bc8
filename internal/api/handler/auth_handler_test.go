package handler

import (
	"amortization-engine/internal/api/handler/dto"
	"amortization-engine/internal/config"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		Enabled:   true,
		JWTSecret: "test-secret",
	}
}

func TestGenerateBearerToken(t *testing.T) {
	fixed := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("issues a signed token", func(t *testing.T) {
		h := NewAuthHandler(newTestAuthConfig(), logger)
		h.now = func() time.Time { return fixed }

		req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"username":"analyst"}`))
		rec := httptest.NewRecorder()
		h.GenerateBearerToken(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp dto.TokenResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.True(t, strings.HasPrefix(resp.Token, "Bearer "))
		assert.Equal(t, "2030-01-02T00:00:00.000Z", resp.ExpiresAt)

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(strings.TrimPrefix(resp.Token, "Bearer "), claims, func(*jwt.Token) (any, error) {
			return []byte("test-secret"), nil
		})
		require.NoError(t, err)
		assert.Equal(t, "analyst", claims["username"])
	})

	t.Run("requires a username", func(t *testing.T) {
		h := NewAuthHandler(newTestAuthConfig(), logger)

		req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"username":"  "}`))
		rec := httptest.NewRecorder()
		h.GenerateBearerToken(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var resp dto.ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "username", resp.Error.Field)
	})

	t.Run("rejects an invalid body", func(t *testing.T) {
		h := NewAuthHandler(newTestAuthConfig(), logger)

		req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`not json`))
		rec := httptest.NewRecorder()
		h.GenerateBearerToken(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("fails when no secret is configured", func(t *testing.T) {
		h := NewAuthHandler(config.AuthConfig{Enabled: true}, logger)

		req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"username":"analyst"}`))
		rec := httptest.NewRecorder()
		h.GenerateBearerToken(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
