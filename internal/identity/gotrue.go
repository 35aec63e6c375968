package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/digkill/lumina/internal/config"
)

// goTrueAPI is the subset of gotrue.Client the provider calls.
type goTrueAPI interface {
	Signup(req types.SignupRequest) (*types.SignupResponse, error)
	SignInWithEmailPassword(email, password string) (*types.TokenResponse, error)
	Recover(req types.RecoverRequest) error
	Magiclink(req types.MagiclinkRequest) error
}

// GoTrue talks to a Supabase Auth (GoTrue) server.
type GoTrue struct {
	client goTrueAPI
	logout func(accessToken string) error
}

func NewGoTrue(cfg config.GoTrueConfig) *GoTrue {
	client := gotrue.New(extractProjectRef(cfg.ProjectRef), cfg.APIKey)
	if cfg.URL != "" {
		client = client.WithCustomGoTrueURL(cfg.URL)
	}
	return &GoTrue{
		client: client,
		logout: func(accessToken string) error {
			return client.WithToken(accessToken).Logout()
		},
	}
}

// extractProjectRef accepts either a bare reference or a project URL such as
// https://abcd.supabase.co.
func extractProjectRef(raw string) string {
	raw = strings.TrimPrefix(raw, "https://")
	raw = strings.TrimPrefix(raw, "http://")
	ref, _, _ := strings.Cut(raw, ".")
	return ref
}

func (g *GoTrue) SignUp(_ context.Context, email, password, displayName string) (*Principal, error) {
	req := types.SignupRequest{Email: email, Password: password}
	if displayName != "" {
		req.Data = map[string]interface{}{"full_name": displayName}
	}
	resp, err := g.client.Signup(req)
	if err != nil {
		return nil, classifyGoTrueError("sign up", err)
	}

	principal := principalFromUser(resp.User, resp.AccessToken)
	if principal.Email == "" {
		principal.Email = email
	}
	if principal.DisplayName == "" {
		principal.DisplayName = displayName
	}
	return principal, nil
}

func (g *GoTrue) SignIn(_ context.Context, email, password string) (*Principal, error) {
	resp, err := g.client.SignInWithEmailPassword(email, password)
	if err != nil {
		if isUnconfirmed(err) {
			return &Principal{Email: email}, nil
		}
		return nil, ErrAuthFailed
	}
	return principalFromUser(resp.User, resp.AccessToken), nil
}

// SendVerificationEmail resends confirmation as a magic link, which confirms the
// address when followed.
func (g *GoTrue) SendVerificationEmail(_ context.Context, principal *Principal) error {
	if principal == nil || principal.Email == "" {
		return fmt.Errorf("%w: no principal", ErrProvider)
	}
	if err := g.client.Magiclink(types.MagiclinkRequest{Email: principal.Email}); err != nil {
		return classifyGoTrueError("send verification", err)
	}
	return nil
}

func (g *GoTrue) SendPasswordReset(_ context.Context, email string) error {
	if err := g.client.Recover(types.RecoverRequest{Email: email}); err != nil {
		return classifyGoTrueError("send password reset", err)
	}
	return nil
}

func (g *GoTrue) SignOut(_ context.Context, principal *Principal) error {
	if principal == nil || principal.AccessToken == "" {
		return nil
	}
	if err := g.logout(principal.AccessToken); err != nil {
		return classifyGoTrueError("sign out", err)
	}
	return nil
}

func principalFromUser(user types.User, accessToken string) *Principal {
	p := &Principal{
		Email:         user.Email,
		EmailVerified: user.EmailConfirmedAt != nil,
		AccessToken:   accessToken,
	}
	if user.ID != uuid.Nil {
		p.UID = user.ID.String()
	}
	for _, key := range []string{"full_name", "name", "display_name"} {
		if name, ok := user.UserMetadata[key].(string); ok && name != "" {
			p.DisplayName = name
			break
		}
	}
	return p
}

// classifyGoTrueError maps GoTrue error bodies onto the package sentinels.
func classifyGoTrueError(op string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "already registered"),
		strings.Contains(msg, "user_already_exists"),
		strings.Contains(msg, "email_exists"):
		return ErrEmailInUse
	case strings.Contains(msg, "invalid login credentials"),
		strings.Contains(msg, "invalid_credentials"):
		return ErrAuthFailed
	default:
		return fmt.Errorf("%w: %s: %v", ErrProvider, op, err)
	}
}

func isUnconfirmed(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "email not confirmed") || strings.Contains(msg, "email_not_confirmed")
}
