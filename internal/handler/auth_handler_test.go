package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"librehub/internal/dto"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/auth/signup", "", gin.H{
		"username": "alice",
		"password": "s3cretpass",
		"email":    "alice@example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = api.do(t, http.MethodPost, "/auth/login", "", gin.H{
		"username": "alice",
		"password": "s3cretpass",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "alice", resp.Username)
	assert.False(t, resp.IsAdmin)
	// expires_in follows the configured access-token TTL (15m here)
	assert.EqualValues(t, 900, resp.ExpiresIn)
}

func TestLogoutOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	api.signup(t, "alice", false)

	access, refresh, _, err := api.auth.Login("alice", "password123")
	require.NoError(t, err)

	w := api.do(t, http.MethodPost, "/auth/logout", access, gin.H{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, w.Code)

	// the revoked refresh token no longer passes the refresh endpoint
	w = api.do(t, http.MethodPost, "/auth/refresh", "", gin.H{"refresh_token": refresh})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	t.Run("RequiresAuthentication", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/auth/logout", "", gin.H{"refresh_token": refresh})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("UnknownTokenRejected", func(t *testing.T) {
		w := api.do(t, http.MethodPost, "/auth/logout", access, gin.H{"refresh_token": "not-a-token"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
