package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/samber/lo"
	"golang.org/x/oauth2"

	"github.com/digkill/lumina/internal/config"
)

// OIDC implements Federated against an OpenID Connect issuer such as Google.
type OIDC struct {
	config         *oauth2.Config
	verifier       *oidc.IDTokenVerifier
	allowedDomains []string
}

type idClaims struct {
	Subject      string `json:"sub"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	HostedDomain string `json:"hd"`
}

func NewOIDC(ctx context.Context, cfg config.OIDCConfig) (*OIDC, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc issuer: %w", err)
	}

	return &OIDC{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier:       provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		allowedDomains: normalizeDomains(cfg.AllowedDomains),
	}, nil
}

func (o *OIDC) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state)
}

func (o *OIDC) Exchange(ctx context.Context, code string) (*Principal, error) {
	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange code: %v", ErrProvider, err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("%w: token response has no id_token", ErrProvider)
	}
	idToken, err := o.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: verify id token: %v", ErrProvider, err)
	}

	var claims idClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: decode claims: %v", ErrProvider, err)
	}
	return principalFromClaims(claims, o.allowedDomains, token.AccessToken)
}

func principalFromClaims(claims idClaims, allowedDomains []string, accessToken string) (*Principal, error) {
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: id token has no email claim", ErrProvider)
	}
	if !domainAllowed(claims.Email, allowedDomains) {
		return nil, ErrUnauthorizedDomain
	}
	return &Principal{
		UID:           claims.Subject,
		Email:         claims.Email,
		DisplayName:   claims.Name,
		EmailVerified: true,
		AccessToken:   accessToken,
		Federated:     true,
	}, nil
}

// domainAllowed reports whether the address domain is on the list. An empty list
// allows every domain.
func domainAllowed(email string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	return lo.Contains(allowed, strings.ToLower(email[at+1:]))
}

func normalizeDomains(domains []string) []string {
	return lo.FilterMap(domains, func(d string, _ int) (string, bool) {
		d = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(d), "@")))
		return d, d != ""
	})
}
