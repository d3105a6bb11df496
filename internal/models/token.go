package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is one issued session credential. Tokens are revoked, never
// deleted: the ReplacedByToken pointer forms a rotation chain over rows in
// this table, which is what lets us recognize reuse of a stale token.
type RefreshToken struct {
	BaseModel
	Token           string    `gorm:"uniqueIndex" json:"-"`
	UserID          uuid.UUID `gorm:"type:uuid;index:idx_refresh_user_active" json:"user_id"`
	DeviceID        string    `gorm:"index" json:"device_id"`
	ExpiresAt       time.Time `json:"expires_at"`
	IsRevoked       bool      `gorm:"index:idx_refresh_user_active" json:"is_revoked"`
	ReasonRevoked   string    `json:"reason_revoked,omitempty"`
	ReplacedByToken string    `json:"-"`
}

// IsExpired reports whether the token has passed its expiry.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsActive reports whether the token may still be presented for refresh.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked && !t.IsExpired(now)
}

// OAuthState is a short-lived CSRF/PKCE record created when an OAuth flow
// starts. A state value is single-use: the callback consumes and deletes the
// row atomically with validation, and it is never valid past ExpiresAt.
type OAuthState struct {
	BaseModel
	State               string     `gorm:"uniqueIndex" json:"state"`
	Nonce               string     `json:"nonce,omitempty"`
	Provider            string     `json:"provider"`
	RedirectURI         string     `json:"redirect_uri,omitempty"`
	CodeChallenge       string     `json:"code_challenge,omitempty"`
	CodeChallengeMethod string     `json:"code_challenge_method,omitempty"`
	ExpiresAt           time.Time  `json:"expires_at"`
	UserID              *uuid.UUID `gorm:"type:uuid" json:"user_id,omitempty"`
}

// IsExpired reports whether the state row may no longer be consumed.
func (s *OAuthState) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
