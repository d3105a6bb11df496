package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/models"
)

func newTestOAuth(db *gorm.DB) *OAuthService {
	svc := NewOAuthService(db, OAuthConfig{
		GoogleClientID:     "client",
		GoogleClientSecret: "secret",
		CallbackBaseURL:    "https://bazaar.example.com",
	})
	svc.fetchIdentity = func(ctx context.Context, provider, code string) (*OAuthIdentity, error) {
		return &OAuthIdentity{
			Provider:    provider,
			ProviderKey: "remote-123",
			Email:       "oauth-user@example.com",
			DisplayName: "OAuth User",
		}, nil
	}
	return svc
}

func stateValueFromURL(t *testing.T, db *gorm.DB) *models.OAuthState {
	t.Helper()
	var row models.OAuthState
	require.NoError(t, db.Order("created_at desc").First(&row).Error)
	return &row
}

func TestOAuth_BeginCreatesState(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestOAuth(db)

	url, err := svc.Begin(context.Background(), ProviderGoogle, "", "", "")
	require.NoError(t, err)

	row := stateValueFromURL(t, db)
	assert.Contains(t, url, "state="+row.State)
	assert.Equal(t, ProviderGoogle, row.Provider)
	assert.False(t, row.IsExpired(time.Now()))
}

func TestOAuth_BeginUnknownProvider(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestOAuth(db)

	_, err := svc.Begin(context.Background(), "myspace", "", "", "")
	assert.ErrorIs(t, err, ErrInvalidOAuthState)
}

func TestOAuth_CompleteCreatesOAuthOnlyUser(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestOAuth(db)
	ctx := context.Background()

	_, err := svc.Begin(ctx, ProviderGoogle, "", "", "")
	require.NoError(t, err)
	row := stateValueFromURL(t, db)

	user, err := svc.Complete(ctx, row.State, "auth-code", "")
	require.NoError(t, err)
	assert.Equal(t, "oauth-user@example.com", user.Email)
	assert.True(t, user.IsOAuthOnly())
	assert.Equal(t, models.RoleBuyer, user.Role)

	// The password-less account holds its external login.
	var login models.ExternalLogin
	require.NoError(t, db.First(&login, "user_id = ?", user.ID).Error)
	assert.Equal(t, "remote-123", login.ProviderKey)
}

func TestOAuth_StateIsSingleUse(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestOAuth(db)
	ctx := context.Background()

	_, err := svc.Begin(ctx, ProviderGoogle, "", "", "")
	require.NoError(t, err)
	row := stateValueFromURL(t, db)

	_, err = svc.Complete(ctx, row.State, "auth-code", "")
	require.NoError(t, err)

	// A replayed callback finds the state consumed.
	_, err = svc.Complete(ctx, row.State, "auth-code", "")
	assert.ErrorIs(t, err, ErrInvalidOAuthState)
}

func TestOAuth_ExpiredState(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestOAuth(db)
	ctx := context.Background()

	_, err := svc.Begin(ctx, ProviderGoogle, "", "", "")
	require.NoError(t, err)
	row := stateValueFromURL(t, db)
	require.NoError(t, db.Model(&models.OAuthState{}).Where("id = ?", row.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)

	_, err = svc.Complete(ctx, row.State, "auth-code", "")
	assert.ErrorIs(t, err, ErrInvalidOAuthState)
}

func TestOAuth_UnknownState(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestOAuth(db)

	_, err := svc.Complete(context.Background(), "never-issued", "auth-code", "")
	assert.ErrorIs(t, err, ErrInvalidOAuthState)
}

func TestOAuth_PKCEVerifier(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestOAuth(db)
	ctx := context.Background()

	verifier := "correct-horse-battery-staple"
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	_, err := svc.Begin(ctx, ProviderGoogle, "", challenge, "S256")
	require.NoError(t, err)
	row := stateValueFromURL(t, db)

	_, err = svc.Complete(ctx, row.State, "auth-code", "wrong-verifier")
	assert.ErrorIs(t, err, ErrInvalidOAuthState)

	// The failed attempt consumed the state; start over with the right verifier.
	_, err = svc.Begin(ctx, ProviderGoogle, "", challenge, "S256")
	require.NoError(t, err)
	row = stateValueFromURL(t, db)

	user, err := svc.Complete(ctx, row.State, "auth-code", verifier)
	require.NoError(t, err)
	assert.NotNil(t, user)
}

func TestOAuth_CompleteLinksExistingEmail(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestOAuth(db)
	ctx := context.Background()

	hash := "$2a$10$0123456789012345678901"
	existing := &models.User{
		Email:        "oauth-user@example.com",
		PasswordHash: &hash,
		Role:         models.RoleBuyer,
	}
	require.NoError(t, db.Create(existing).Error)

	_, err := svc.Begin(ctx, ProviderGoogle, "", "", "")
	require.NoError(t, err)
	row := stateValueFromURL(t, db)

	user, err := svc.Complete(ctx, row.State, "auth-code", "")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID)
	assert.True(t, user.HasPassword())

	// A later callback for the same provider identity signs into the same account.
	_, err = svc.Begin(ctx, ProviderGoogle, "", "", "")
	require.NoError(t, err)
	row = stateValueFromURL(t, db)
	again, err := svc.Complete(ctx, row.State, "auth-code", "")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, again.ID)
}

func TestOAuth_DeleteExpiredStates(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestOAuth(db)
	ctx := context.Background()

	_, err := svc.Begin(ctx, ProviderGoogle, "", "", "")
	require.NoError(t, err)
	_, err = svc.Begin(ctx, ProviderGoogle, "", "", "")
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.OAuthState{}).
		Where("1 = 1").
		Update("expires_at", time.Now().UTC().Add(-time.Hour)).Error)

	reaped, err := svc.DeleteExpiredStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), reaped)
}
