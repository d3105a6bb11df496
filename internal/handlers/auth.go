package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/config"
	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/services"
	"github.com/example/bazaar/internal/utils"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	db     *gorm.DB
	cfg    *config.Config
	tokens *services.TokenService
	oauth  *services.OAuthService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, tokens *services.TokenService, oauth *services.OAuthService) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg, tokens: tokens, oauth: oauth}
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"required"`
	Role        string `json:"role" validate:"omitempty,oneof=buyer seller"`
}

// Register creates a new user account with a password.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := validateBody(c, &req); err != nil {
		return err
	}

	var existing models.User
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return fiber.NewError(fiber.StatusConflict, "user already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	role := models.Role(req.Role)
	if role == "" {
		role = models.RoleBuyer
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: &passwordHash,
		DisplayName:  req.DisplayName,
		Role:         role,
	}
	if err := h.db.Create(&user).Error; err != nil {
		return err
	}

	return h.respondWithSession(c, &user, fiber.StatusCreated)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates an existing password-holding user.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := validateBody(c, &req); err != nil {
		return err
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
		}
		return err
	}

	// OAuth-only accounts have no password to check.
	if !user.HasPassword() || !utils.CheckPassword(*user.PasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}

	return h.respondWithSession(c, &user, fiber.StatusOK)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh rotates a refresh token and returns a new token pair. A reused
// token invalidates the whole session instead of erring transiently.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := validateBody(c, &req); err != nil {
		return err
	}

	rotated, err := h.tokens.Rotate(c.Context(), req.RefreshToken)
	if err != nil {
		// An unknown token is indistinguishable from a bad credential here.
		if errors.Is(err, services.ErrNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid refresh token")
		}
		return respondServiceError(c, err)
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", rotated.UserID).Error; err != nil {
		return err
	}

	accessToken, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, string(user.Role), h.cfg.AccessTokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"token":         accessToken,
		"refresh_token": rotated.Token,
	})
}

// Logout revokes the presented refresh token.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req refreshRequest
	if err := validateBody(c, &req); err != nil {
		return err
	}

	if err := h.tokens.Revoke(c.Context(), req.RefreshToken, services.RevokeReasonLogout); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// OAuthBegin starts an OAuth flow and returns the provider authorization URL.
func (h *AuthHandler) OAuthBegin(c *fiber.Ctx) error {
	authURL, err := h.oauth.Begin(c.Context(),
		c.Params("provider"),
		c.Query("redirect_uri"),
		c.Query("code_challenge"),
		c.Query("code_challenge_method"),
	)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "auth_url": authURL})
}

// OAuthCallback consumes the state, exchanges the code and signs the user in.
func (h *AuthHandler) OAuthCallback(c *fiber.Ctx) error {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing state or code")
	}

	user, err := h.oauth.Complete(c.Context(), state, code, c.Query("code_verifier"))
	if err != nil {
		return respondServiceError(c, err)
	}

	return h.respondWithSession(c, user, fiber.StatusOK)
}

func (h *AuthHandler) respondWithSession(c *fiber.Ctx, user *models.User, status int) error {
	deviceID := c.Get("X-Device-ID")
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	accessToken, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, string(user.Role), h.cfg.AccessTokenExpires)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	refresh, err := h.tokens.Issue(c.Context(), user.ID, deviceID)
	if err != nil {
		return err
	}

	return c.Status(status).JSON(fiber.Map{
		"success":       true,
		"user":          user,
		"token":         accessToken,
		"refresh_token": refresh.Token,
		"device_id":     deviceID,
	})
}
