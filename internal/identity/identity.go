// Package identity adapts external authentication services. A provider is the
// source of truth for whether a credential is valid and whether an email address
// has been verified.
package identity

import (
	"context"
	"errors"
)

var (
	ErrEmailInUse          = errors.New("email already in use")
	ErrAuthFailed          = errors.New("authentication failed")
	ErrUnauthorizedDomain  = errors.New("sign-in domain not authorized")
	ErrProvider            = errors.New("identity provider error")
	ErrInvalidVerification = errors.New("invalid or expired verification token")
)

// Principal is the provider's view of an authenticated actor.
type Principal struct {
	UID           string
	Email         string
	DisplayName   string
	EmailVerified bool
	// AccessToken is the provider session token, when the provider issues one.
	AccessToken string
	// Federated marks principals that came from the redirect flow.
	Federated bool
}

// Provider handles email and password credentials.
type Provider interface {
	// SignUp registers the account and triggers the verification email.
	SignUp(ctx context.Context, email, password, displayName string) (*Principal, error)
	SignIn(ctx context.Context, email, password string) (*Principal, error)
	SendVerificationEmail(ctx context.Context, principal *Principal) error
	SendPasswordReset(ctx context.Context, email string) error
	SignOut(ctx context.Context, principal *Principal) error
}

// Federated is a redirect-based sign-in flow. Principals it returns are treated
// as verified.
type Federated interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Principal, error)
}

// Confirmer is implemented by providers that verify addresses through a token
// handed back to this service, rather than through a link they host themselves.
type Confirmer interface {
	ConfirmEmail(ctx context.Context, token string) error
}
