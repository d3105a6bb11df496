package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	googleOAuth "golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/example/bazaar/internal/models"
	"github.com/example/bazaar/internal/utils"
)

// Supported OAuth providers.
const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// oauthStateTTL bounds how long a started flow may wait for its callback.
const oauthStateTTL = 10 * time.Minute

// OAuthIdentity is what a provider tells us about the authenticated user.
type OAuthIdentity struct {
	Provider    string
	ProviderKey string
	Email       string
	DisplayName string
}

// OAuthConfig holds provider credentials.
type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	GitHubClientID     string
	GitHubClientSecret string
	CallbackBaseURL    string
}

// OAuthService runs the authorization-code flow with CSRF/PKCE state rows.
// A state value is single-use: the callback consumes the row atomically with
// validation, so a replayed or expired callback fails with
// ErrInvalidOAuthState instead of minting a session.
type OAuthService struct {
	db      *gorm.DB
	configs map[string]*oauth2.Config

	// fetchIdentity exchanges the authorization code and resolves the
	// provider identity. Overridable in tests.
	fetchIdentity func(ctx context.Context, provider, code string) (*OAuthIdentity, error)
}

// NewOAuthService constructs an OAuthService for the configured providers.
func NewOAuthService(db *gorm.DB, cfg OAuthConfig) *OAuthService {
	s := &OAuthService{
		db: db,
		configs: map[string]*oauth2.Config{
			ProviderGoogle: {
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Endpoint:     googleOAuth.Endpoint,
				Scopes:       []string{"openid", "profile", "email"},
				RedirectURL:  cfg.CallbackBaseURL + "/api/auth/oauth/google/callback",
			},
			ProviderGitHub: {
				ClientID:     cfg.GitHubClientID,
				ClientSecret: cfg.GitHubClientSecret,
				Endpoint:     github.Endpoint,
				Scopes:       []string{"user:email"},
				RedirectURL:  cfg.CallbackBaseURL + "/api/auth/oauth/github/callback",
			},
		},
	}
	s.fetchIdentity = s.exchangeAndFetch
	return s
}

// Begin starts an OAuth flow: it persists a short-lived state row and
// returns the provider authorization URL carrying the state value and, when
// supplied, the PKCE challenge.
func (s *OAuthService) Begin(ctx context.Context, provider, redirectURI, codeChallenge, challengeMethod string) (string, error) {
	cfg, ok := s.configs[provider]
	if !ok {
		return "", fmt.Errorf("unknown provider %q: %w", provider, ErrInvalidOAuthState)
	}

	stateValue, err := utils.RandomToken(16)
	if err != nil {
		return "", err
	}
	nonce, err := utils.RandomToken(16)
	if err != nil {
		return "", err
	}

	row := models.OAuthState{
		State:               stateValue,
		Nonce:               nonce,
		Provider:            provider,
		RedirectURI:         redirectURI,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: challengeMethod,
		ExpiresAt:           time.Now().UTC().Add(oauthStateTTL),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", err
	}

	opts := []oauth2.AuthCodeOption{}
	if codeChallenge != "" {
		method := challengeMethod
		if method == "" {
			method = "S256"
		}
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", codeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", method),
		)
	}
	return cfg.AuthCodeURL(stateValue, opts...), nil
}

// Complete validates and consumes the state row, verifies the PKCE verifier
// when the flow started with a challenge, exchanges the authorization code
// and signs the provider identity into a local user. Accounts created here
// have no password; the linked ExternalLogin row is what authenticates them.
func (s *OAuthService) Complete(ctx context.Context, state, code, codeVerifier string) (*models.User, error) {
	var row models.OAuthState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&row, "state = ?", state).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidOAuthState
			}
			return err
		}

		// Single-use: whoever deletes the row wins; a raced duplicate
		// callback sees zero rows affected and is rejected.
		res := tx.Where("state = ?", state).Delete(&models.OAuthState{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidOAuthState
		}
		if row.IsExpired(time.Now().UTC()) {
			return ErrInvalidOAuthState
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if row.CodeChallenge != "" && !verifierMatches(row.CodeChallenge, row.CodeChallengeMethod, codeVerifier) {
		return nil, ErrInvalidOAuthState
	}

	identity, err := s.fetchIdentity(ctx, row.Provider, code)
	if err != nil {
		return nil, err
	}

	return s.upsertUser(ctx, identity)
}

// DeleteExpiredStates reaps flow rows whose callback never arrived.
func (s *OAuthService) DeleteExpiredStates(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", time.Now().UTC()).
		Delete(&models.OAuthState{})
	return res.RowsAffected, res.Error
}

func verifierMatches(challenge, method, verifier string) bool {
	if verifier == "" {
		return false
	}
	switch method {
	case "", "S256":
		sum := sha256.Sum256([]byte(verifier))
		derived := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) == 1
	case "plain":
		return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
	}
	return false
}

func (s *OAuthService) upsertUser(ctx context.Context, identity *OAuthIdentity) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var login models.ExternalLogin
		err := tx.First(&login, "provider = ? AND provider_key = ?", identity.Provider, identity.ProviderKey).Error
		switch {
		case err == nil:
			return tx.First(&user, "id = ?", login.UserID).Error
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		// Link to an existing account with the same email, or create a
		// password-less one. Either way the ExternalLogin row satisfies
		// the invariant that password-less users hold at least one.
		err = tx.First(&user, "email = ?", identity.Email).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user = models.User{
				Email:       identity.Email,
				DisplayName: identity.DisplayName,
				Role:        models.RoleBuyer,
				IsVerified:  true,
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		login = models.ExternalLogin{
			UserID:      user.ID,
			Provider:    identity.Provider,
			ProviderKey: identity.ProviderKey,
		}
		return tx.Create(&login).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *OAuthService) exchangeAndFetch(ctx context.Context, provider, code string) (*OAuthIdentity, error) {
	cfg, ok := s.configs[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q: %w", provider, ErrInvalidOAuthState)
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s token exchange: %w", provider, err)
	}

	switch provider {
	case ProviderGoogle:
		return fetchGoogleIdentity(ctx, token.AccessToken)
	case ProviderGitHub:
		return fetchGitHubIdentity(ctx, token.AccessToken)
	}
	return nil, fmt.Errorf("unknown provider %q: %w", provider, ErrInvalidOAuthState)
}

type googleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func fetchGoogleIdentity(ctx context.Context, accessToken string) (*OAuthIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://www.googleapis.com/oauth2/v2/userinfo", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google user info returned status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &OAuthIdentity{
		Provider:    ProviderGoogle,
		ProviderKey: info.ID,
		Email:       info.Email,
		DisplayName: info.Name,
	}, nil
}

type githubUserInfo struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"`
}

func fetchGitHubIdentity(ctx context.Context, accessToken string) (*OAuthIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://api.github.com/user", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github user info returned status %d", resp.StatusCode)
	}

	var info githubUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}

	if info.Email == "" {
		email, err := fetchGitHubPrimaryEmail(ctx, accessToken)
		if err != nil {
			return nil, err
		}
		info.Email = email
	}

	return &OAuthIdentity{
		Provider:    ProviderGitHub,
		ProviderKey: fmt.Sprintf("%d", info.ID),
		Email:       info.Email,
		DisplayName: info.Login,
	}, nil
}

type githubEmail struct {
	Email   string `json:"email"`
	Primary bool   `json:"primary"`
}

func fetchGitHubPrimaryEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://api.github.com/user/emails", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch emails: %w", err)
	}
	defer resp.Body.Close()

	var emails []githubEmail
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return "", fmt.Errorf("decode emails: %w", err)
	}

	for _, e := range emails {
		if e.Primary {
			return e.Email, nil
		}
	}
	if len(emails) > 0 {
		return emails[0].Email, nil
	}
	return "", fmt.Errorf("no email found for github user")
}
