// Package google provides the Google Calendar event source and sink.
package google

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/jmorrell/busysync/internal/config"
	"github.com/jmorrell/busysync/internal/crypto"
	"github.com/jmorrell/busysync/internal/database"
	"github.com/jmorrell/busysync/internal/util"
)

// OAuthManager handles Google OAuth token management.
type OAuthManager struct {
	config    *oauth2.Config
	db        *database.DB
	encryptor *crypto.Encryptor
	mu        sync.Mutex // Serialize token refresh

	// In-memory token cache
	cachedToken *oauth2.Token
	cacheExpiry time.Time
}

// NewOAuthManager creates a new OAuth manager.
func NewOAuthManager(cfg *config.Config, db *database.DB, encryptor *crypto.Encryptor) *OAuthManager {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURI,
		Scopes:       cfg.Google.Scopes,
		Endpoint:     google.Endpoint,
	}

	return &OAuthManager{
		config:    oauthConfig,
		db:        db,
		encryptor: encryptor,
	}
}

// IsConfigured checks if Google OAuth is configured.
func (m *OAuthManager) IsConfigured() bool {
	return m.config.ClientID != "" && m.config.ClientSecret != ""
}

// GetAuthURL returns the OAuth authorization URL. For headless servers,
// the user visits this URL in a browser and pastes the code back.
func (m *OAuthManager) GetAuthURL(state string) string {
	return m.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode exchanges an authorization code for tokens.
func (m *OAuthManager) ExchangeCode(ctx context.Context, code string) error {
	token, err := m.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code: %w", err)
	}

	if err := m.saveToken(ctx, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	m.mu.Lock()
	m.cachedToken = token
	m.cacheExpiry = token.Expiry
	m.mu.Unlock()

	util.Info("Google OAuth token saved successfully")
	return nil
}

// GetValidToken returns a valid OAuth token, refreshing if necessary.
func (m *OAuthManager) GetValidToken(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check cache first
	if m.cachedToken != nil && time.Now().Add(5*time.Minute).Before(m.cacheExpiry) {
		return m.cachedToken, nil
	}

	token, err := m.loadToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("no OAuth token configured: %w", err)
	}

	// Check if token needs refresh (5-minute buffer)
	if token.Expiry.Before(time.Now().Add(5 * time.Minute)) {
		util.Info("Access token expired or expiring, refreshing...")

		newToken, err := m.config.TokenSource(ctx, token).Token()
		if err != nil {
			util.Error("OAuth token refresh failed", "error", err)
			return nil, fmt.Errorf("token refresh failed: %w", err)
		}
		if newToken.RefreshToken == "" {
			newToken.RefreshToken = token.RefreshToken
		}

		// Save the new token (Google may rotate refresh token)
		if err := m.saveToken(ctx, newToken); err != nil {
			util.Error("Failed to save refreshed token", "error", err)
			// Continue anyway - we have a valid token in memory
		}

		token = newToken
		util.Info("OAuth token refreshed successfully")
	}

	m.cachedToken = token
	m.cacheExpiry = token.Expiry

	return token, nil
}

// saveToken saves a token to the database (encrypted).
func (m *OAuthManager) saveToken(ctx context.Context, token *oauth2.Token) error {
	// Only store the refresh token (access tokens are ephemeral)
	if token.RefreshToken == "" {
		return fmt.Errorf("no refresh token to save")
	}

	encryptedToken, err := m.encryptor.Encrypt(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}

	scopes := ""
	if extra := token.Extra("scope"); extra != nil {
		if s, ok := extra.(string); ok {
			scopes = s
		}
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (id, token_enc, scopes, updated_at)
		VALUES ('primary', ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			token_enc = excluded.token_enc,
			scopes = excluded.scopes,
			updated_at = datetime('now')
	`, encryptedToken, scopes)

	return err
}

// loadToken loads a token from the database.
func (m *OAuthManager) loadToken(ctx context.Context) (*oauth2.Token, error) {
	var (
		encryptedToken []byte
		scopes         sql.NullString
	)

	err := m.db.QueryRowContext(ctx, `
		SELECT token_enc, scopes
		FROM oauth_tokens
		WHERE id = 'primary'
	`).Scan(&encryptedToken, &scopes)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no OAuth token configured")
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	refreshToken, err := m.encryptor.Decrypt(encryptedToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}

	return &oauth2.Token{
		RefreshToken: refreshToken,
		// Expiry in the past forces a refresh
		Expiry: time.Now().Add(-1 * time.Hour),
	}, nil
}

// HasToken checks if an OAuth token is configured.
func (m *OAuthManager) HasToken(ctx context.Context) bool {
	var count int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM oauth_tokens WHERE id = 'primary'
	`).Scan(&count)

	return err == nil && count > 0
}

// DeleteToken removes the stored OAuth token.
func (m *OAuthManager) DeleteToken(ctx context.Context) error {
	m.mu.Lock()
	m.cachedToken = nil
	m.cacheExpiry = time.Time{}
	m.mu.Unlock()

	_, err := m.db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE id = 'primary'`)
	return err
}

// GetClient returns an HTTP client configured with OAuth credentials.
func (m *OAuthManager) GetClient(ctx context.Context) (*http.Client, error) {
	token, err := m.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return m.config.Client(ctx, token), nil
}
