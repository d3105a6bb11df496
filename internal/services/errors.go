// Package services holds the marketplace engines: cart, checkout, fulfillment
// and the session/OAuth machinery. The sentinel errors below are shared across
// the engines so handlers can translate each failure into the right HTTP
// response and callers know which failures are retryable. Stock and
// concurrency conflicts are retryable with fresh data; transition and
// ownership failures are terminal for the request; token reuse and OAuth
// state failures force re-authentication.
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrConcurrencyConflict is returned when a cart row's version token no
// longer matches what the caller read. The caller must re-fetch and retry.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// ErrInsufficientStock is returned when a requested quantity exceeds the
// available stock, either on a cart bound check or during checkout.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrEmptyCart is returned when checkout is attempted with no cart rows.
var ErrEmptyCart = errors.New("cart is empty")

// ErrInvalidTransition is returned for an illegal fulfillment status move.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrForbidden is returned when a seller acts on an item they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidOAuthState is returned when a callback presents a state value
// that is missing, already consumed, or expired. It prevents replay.
var ErrInvalidOAuthState = errors.New("invalid oauth state")

// ErrTokenExpired is returned when a refresh token has passed its expiry.
var ErrTokenExpired = errors.New("refresh token expired")

// ErrTokenReused is returned when an already-revoked refresh token is
// presented again. This is treated as a theft signal: the whole rotation
// chain is revoked and the session must re-authenticate.
var ErrTokenReused = errors.New("refresh token reused")

// InsufficientStockError names the offending product and carries the stock
// actually available so the caller can clamp the quantity.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: %d available", e.ProductID, e.Available)
}

// Unwrap lets errors.Is match the ErrInsufficientStock sentinel.
func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}
