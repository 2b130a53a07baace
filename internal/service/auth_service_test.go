package service

import (
	"testing"
	"time"

	"librehub/internal/config"
	"librehub/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAuthEnv(t *testing.T) (AuthService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	cfg := &config.Config{
		JWTSecret:       "0123456789abcdef0123456789abcdef",
		AdminSetupKey:   "letmein",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
	svc := NewAuthService(
		repository.NewUserRepository(db),
		repository.NewRefreshTokenRepository(db),
		cfg,
	)
	return svc, db
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthEnv(t)

	user, err := svc.Register("Alice Liddell", "alice", "s3cretpass", "alice@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.IsAdmin)

	t.Run("DuplicateUsername", func(t *testing.T) {
		_, err := svc.Register("", "alice", "s3cretpass", "other@example.com")
		assert.ErrorIs(t, err, ErrNameInUse)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		_, err := svc.Register("", "alice2", "s3cretpass", "alice@example.com")
		assert.ErrorIs(t, err, ErrEmailInUse)
	})

	t.Run("LoginIssuesTokens", func(t *testing.T) {
		access, refresh, got, err := svc.Login("alice", "s3cretpass")
		require.NoError(t, err)
		assert.NotEmpty(t, access)
		assert.NotEmpty(t, refresh)
		assert.Equal(t, user.ID, got.ID)

		claims, err := svc.ValidateToken(access)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, "alice", claims.Username)
		assert.False(t, claims.IsAdmin)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, _, _, err := svc.Login("alice", "wrongpass")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		_, _, _, err := svc.Login("nobody", "whatever")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestRefreshAccessToken(t *testing.T) {
	svc, _ := newAuthEnv(t)

	_, err := svc.Register("", "alice", "s3cretpass", "alice@example.com")
	require.NoError(t, err)
	_, refresh, _, err := svc.Login("alice", "s3cretpass")
	require.NoError(t, err)

	access, err := svc.RefreshAccessToken(refresh)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	_, err = svc.RefreshAccessToken("not-a-token")
	assert.Error(t, err)
}

func TestLogout(t *testing.T) {
	svc, _ := newAuthEnv(t)

	_, err := svc.Register("", "alice", "s3cretpass", "alice@example.com")
	require.NoError(t, err)
	_, refresh, _, err := svc.Login("alice", "s3cretpass")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(refresh))

	// a revoked refresh token can no longer mint access tokens
	_, err = svc.RefreshAccessToken(refresh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "revoked")

	assert.ErrorIs(t, svc.Logout("not-a-token"), ErrInvalidToken)
}

func TestCreateAdmin(t *testing.T) {
	svc, _ := newAuthEnv(t)

	t.Run("WithSetupKey", func(t *testing.T) {
		admin, err := svc.CreateAdmin("letmein", "", "root", "s3cretpass", "root@example.com")
		require.NoError(t, err)
		assert.True(t, admin.IsAdmin)

		access, _, _, err := svc.Login("root", "s3cretpass")
		require.NoError(t, err)
		claims, err := svc.ValidateToken(access)
		require.NoError(t, err)
		assert.True(t, claims.IsAdmin)
	})

	t.Run("WrongSetupKey", func(t *testing.T) {
		_, err := svc.CreateAdmin("wrong", "", "root2", "s3cretpass", "root2@example.com")
		assert.ErrorIs(t, err, ErrSetupKeyMismatch)
	})
}

func TestValidateToken(t *testing.T) {
	svc, _ := newAuthEnv(t)

	_, err := svc.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// token signed with a different secret is rejected
	otherDB := newTestDB(t)
	other := NewAuthService(
		repository.NewUserRepository(otherDB),
		repository.NewRefreshTokenRepository(otherDB),
		&config.Config{
			JWTSecret:       "ffffffffffffffffffffffffffffffff",
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
		},
	)
	_, err = other.Register("", "alice", "s3cretpass", "alice@example.com")
	require.NoError(t, err)
	access, _, _, err := other.Login("alice", "s3cretpass")
	require.NoError(t, err)

	_, err = svc.ValidateToken(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
