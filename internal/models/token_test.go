package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefreshToken_IsActive(t *testing.T) {
	now := time.Now()

	fresh := RefreshToken{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, fresh.IsActive(now))
	assert.False(t, fresh.IsExpired(now))

	expired := RefreshToken{ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, expired.IsExpired(now))
	assert.False(t, expired.IsActive(now))

	revoked := RefreshToken{ExpiresAt: now.Add(time.Hour), IsRevoked: true}
	assert.False(t, revoked.IsActive(now))
}

func TestUser_OAuthOnly(t *testing.T) {
	hash := "$2a$10$abcdefghijklmnopqrstuv"
	withPassword := User{PasswordHash: &hash}
	assert.True(t, withPassword.HasPassword())
	assert.False(t, withPassword.IsOAuthOnly())

	empty := ""
	tests := []User{{PasswordHash: nil}, {PasswordHash: &empty}}
	for _, u := range tests {
		assert.False(t, u.HasPassword())
		assert.True(t, u.IsOAuthOnly())
	}
}

func TestOAuthState_IsExpired(t *testing.T) {
	now := time.Now()
	live := OAuthState{ExpiresAt: now.Add(5 * time.Minute)}
	assert.False(t, live.IsExpired(now))

	stale := OAuthState{ExpiresAt: now.Add(-time.Second)}
	assert.True(t, stale.IsExpired(now))
}
