package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role determines what a user may do on the marketplace.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// IsValid reports whether the role is one of the known values.
func (r Role) IsValid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// User represents a marketplace account. PasswordHash is nullable: accounts
// created through an OAuth callback carry no password and must hold at least
// one ExternalLogin instead. Users are soft-deleted, never removed.
type User struct {
	BaseModel
	Email            string          `gorm:"uniqueIndex" json:"email"`
	PasswordHash     *string         `json:"-"`
	DisplayName      string          `json:"display_name"`
	Role             Role            `gorm:"default:buyer" json:"role"`
	IsVerified       bool            `json:"is_verified"`
	IsSellerApproved bool            `json:"is_seller_approved"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"-"`
	ExternalLogins   []ExternalLogin `json:"external_logins,omitempty"`
}

// HasPassword reports whether the account can authenticate with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// IsOAuthOnly reports whether the account can only sign in through a provider.
func (u *User) IsOAuthOnly() bool {
	return !u.HasPassword()
}

// ExternalLogin links a user to an identity at an OAuth provider.
type ExternalLogin struct {
	BaseModel
	UserID      uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Provider    string    `gorm:"uniqueIndex:idx_external_provider_key" json:"provider"`
	ProviderKey string    `gorm:"uniqueIndex:idx_external_provider_key" json:"provider_key"`
}
