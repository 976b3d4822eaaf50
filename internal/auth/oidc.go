package auth

import (
	"context"
	"errors"
	"fmt"
	"go-moodle-catalog/internal/config"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// ErrOIDCDisabled is returned when no issuer is configured.
var ErrOIDCDisabled = errors.New("oidc issuer not configured")

// Authenticator is a struct that holds the OIDC provider, OAuth2 config, and ID token verifier.
type Authenticator struct {
	*oidc.Provider
	*oauth2.Config
	*oidc.IDTokenVerifier
}

// NewAuthenticator discovers the provider at cfg.IssuerURL and builds the
// OAuth2 configuration for the admin login.
func NewAuthenticator(ctx context.Context, cfg *config.OIDCConfig) (*Authenticator, error) {
	if cfg.IssuerURL == "" {
		return nil, ErrOIDCDisabled
	}
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover oidc provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	return &Authenticator{
		Provider:        provider,
		Config:          oauth2Config,
		IDTokenVerifier: verifier,
	}, nil
}

// LoginURL returns the provider URL the browser is sent to.
func (a *Authenticator) LoginURL(state string) string {
	return a.AuthCodeURL(state)
}

// Subject exchanges an authorization code and returns the verified subject
// of the ID token.
func (a *Authenticator) Subject(ctx context.Context, code string) (string, error) {
	token, err := a.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange token: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return "", errors.New("no id_token field in oauth2 token")
	}
	// Verify checks signature, issuer, audience and expiry.
	idToken, err := a.Verify(ctx, rawIDToken)
	if err != nil {
		return "", fmt.Errorf("failed to verify id token: %w", err)
	}
	return idToken.Subject, nil
}
