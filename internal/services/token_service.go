package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/utils"
)

// Revocation reasons recorded on refresh token rows.
const (
	RevokeReasonRotated  = "rotated"
	RevokeReasonReuse    = "reuse_detected"
	RevokeReasonLogout   = "logout"
	RevokeReasonNewLogin = "new_login"
)

const refreshTokenBytes = 32

// TokenService rotates opaque refresh tokens. Each use of a token revokes it
// and issues a successor linked through ReplacedByToken; presenting a token
// that was already rotated away is read as theft, and the whole chain plus
// the device's active tokens are revoked so the session must re-authenticate.
type TokenService struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewTokenService constructs a TokenService issuing tokens valid for ttl.
func NewTokenService(db *gorm.DB, ttl time.Duration) *TokenService {
	return &TokenService{db: db, ttl: ttl}
}

// Issue creates a fresh refresh token for a new session. Any token still
// active for the same (user, device) pair is revoked first, keeping at most
// one active token per device.
func (s *TokenService) Issue(ctx context.Context, userID uuid.UUID, deviceID string) (*models.RefreshToken, error) {
	var token *models.RefreshToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.RefreshToken{}).
			Where("user_id = ? AND device_id = ? AND is_revoked = ?", userID, deviceID, false).
			Updates(map[string]interface{}{
				"is_revoked":     true,
				"reason_revoked": RevokeReasonNewLogin,
			}).Error; err != nil {
			return err
		}

		var err error
		token, err = s.issueTx(tx, userID, deviceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (s *TokenService) issueTx(tx *gorm.DB, userID uuid.UUID, deviceID string) (*models.RefreshToken, error) {
	raw, err := utils.RandomToken(refreshTokenBytes)
	if err != nil {
		return nil, err
	}

	token := &models.RefreshToken{
		Token:     raw,
		UserID:    userID,
		DeviceID:  deviceID,
		ExpiresAt: time.Now().UTC().Add(s.ttl),
	}
	if err := tx.Create(token).Error; err != nil {
		return nil, err
	}
	return token, nil
}

// Rotate exchanges an active refresh token for its successor. The presented
// token is revoked with reason "rotated" and its row points at the new token,
// extending the chain. A revoked token is a reuse signal and returns
// ErrTokenReused after revoking everything reachable from it; an expired one
// returns ErrTokenExpired.
func (s *TokenService) Rotate(ctx context.Context, rawToken string) (*models.RefreshToken, error) {
	var current models.RefreshToken
	if err := s.db.WithContext(ctx).First(&current, "token = ?", rawToken).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("refresh token: %w", ErrNotFound)
		}
		return nil, err
	}

	if current.IsRevoked {
		if err := s.revokeReused(ctx, current.ID); err != nil {
			return nil, err
		}
		return nil, ErrTokenReused
	}
	if current.IsExpired(time.Now().UTC()) {
		return nil, ErrTokenExpired
	}

	var successor *models.RefreshToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		successor, err = s.issueTx(tx, current.UserID, current.DeviceID)
		if err != nil {
			return err
		}

		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND is_revoked = ?", current.ID, false).
			Updates(map[string]interface{}{
				"is_revoked":        true,
				"reason_revoked":    RevokeReasonRotated,
				"replaced_by_token": successor.Token,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another rotation of the same token won between our read and
			// this update; the losing presentation is itself a reuse.
			return ErrTokenReused
		}
		return nil
	})
	if errors.Is(err, ErrTokenReused) {
		if revErr := s.revokeReused(ctx, current.ID); revErr != nil {
			return nil, revErr
		}
		return nil, ErrTokenReused
	}
	if err != nil {
		return nil, err
	}
	return successor, nil
}

// revokeReused commits the theft response in its own transaction. It must
// not share a transaction with the ErrTokenReused return path: an error
// returned from a gorm transaction closure rolls the whole transaction back,
// which would quietly undo every revocation and leave the stolen session
// alive.
func (s *TokenService) revokeReused(ctx context.Context, tokenID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reused models.RefreshToken
		if err := tx.First(&reused, "id = ?", tokenID).Error; err != nil {
			return err
		}
		return s.revokeChain(tx, &reused)
	})
}

// revokeChain walks the ReplacedByToken pointers forward from the reused
// token and revokes every descendant, then sweeps any token still active for
// the same (user, device) pair. The chain is a singly-linked list over rows
// keyed by the opaque token value.
func (s *TokenService) revokeChain(tx *gorm.DB, from *models.RefreshToken) error {
	next := from.ReplacedByToken
	for next != "" {
		var descendant models.RefreshToken
		if err := tx.First(&descendant, "token = ?", next).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return err
		}
		if !descendant.IsRevoked {
			if err := tx.Model(&models.RefreshToken{}).
				Where("id = ?", descendant.ID).
				Updates(map[string]interface{}{
					"is_revoked":     true,
					"reason_revoked": RevokeReasonReuse,
				}).Error; err != nil {
				return err
			}
		}
		next = descendant.ReplacedByToken
	}

	return tx.Model(&models.RefreshToken{}).
		Where("user_id = ? AND device_id = ? AND is_revoked = ?", from.UserID, from.DeviceID, false).
		Updates(map[string]interface{}{
			"is_revoked":     true,
			"reason_revoked": RevokeReasonReuse,
		}).Error
}

// Revoke marks a token revoked with the given reason. Used at logout;
// revoking an unknown or already-revoked token is not an error.
func (s *TokenService) Revoke(ctx context.Context, rawToken, reason string) error {
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token = ? AND is_revoked = ?", rawToken, false).
		Updates(map[string]interface{}{
			"is_revoked":     true,
			"reason_revoked": reason,
		}).Error
}

// RevokeAllForUser revokes every active token the user holds, across devices.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID uuid.UUID, reason string) error {
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND is_revoked = ?", userID, false).
		Updates(map[string]interface{}{
			"is_revoked":     true,
			"reason_revoked": reason,
		}).Error
}
