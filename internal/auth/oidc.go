package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCProvider wraps the OIDC provider and OAuth2 config.
type OIDCProvider struct {
	oauth2Config   *oauth2.Config
	verifier       *oidc.IDTokenVerifier
	allowedDomains []string
}

// Claims are the ID token claims the editor uses.
type Claims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// OIDCOptions configures NewOIDCProvider.
type OIDCOptions struct {
	IssuerURL      string
	ClientID       string
	ClientSecret   string
	RedirectURL    string
	Scopes         []string
	AllowedDomains []string
}

// NewOIDCProvider runs discovery against the issuer.
func NewOIDCProvider(ctx context.Context, opts OIDCOptions) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(ctx, opts.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return &OIDCProvider{
		oauth2Config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       opts.Scopes,
		},
		verifier:       provider.Verifier(&oidc.Config{ClientID: opts.ClientID}),
		allowedDomains: opts.AllowedDomains,
	}, nil
}

// AuthCodeURL returns the authorization URL for state and nonce.
func (p *OIDCProvider) AuthCodeURL(state, nonce string) string {
	return p.oauth2Config.AuthCodeURL(state, oidc.Nonce(nonce))
}

// Exchange trades the code for tokens, verifies the ID token and returns
// its claims.
func (p *OIDCProvider) Exchange(ctx context.Context, code, nonce string) (*Claims, error) {
	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("no id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}
	if !ConstantTimeCompare(idToken.Nonce, nonce) {
		return nil, fmt.Errorf("nonce mismatch")
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	if err := ValidateClaims(&claims, p.allowedDomains); err != nil {
		return nil, err
	}
	return &claims, nil
}

// ValidateClaims requires an email and, when allowedDomains is set, one
// of those domains.
func ValidateClaims(claims *Claims, allowedDomains []string) error {
	if claims.Email == "" {
		return fmt.Errorf("email claim is required")
	}
	if len(allowedDomains) == 0 {
		return nil
	}

	at := strings.LastIndex(claims.Email, "@")
	if at <= 0 || at == len(claims.Email)-1 {
		return fmt.Errorf("invalid email format")
	}
	domain := strings.ToLower(claims.Email[at+1:])
	for _, d := range allowedDomains {
		if strings.EqualFold(d, domain) {
			return nil
		}
	}
	return fmt.Errorf("email domain %s is not allowed", domain)
}

// GenerateSecureString returns length random bytes, base64url encoded.
func GenerateSecureString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
