package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/digkill/lumina/internal/config"
	"github.com/digkill/lumina/internal/identity"
	"github.com/digkill/lumina/internal/models"
	"github.com/digkill/lumina/internal/repository"
)

var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrFederatedDisabled = errors.New("federated sign-in is not configured")
	ErrInvalidState      = errors.New("invalid or expired sign-in state")
	// ErrConfirmUnsupported means the provider confirms addresses through its own link.
	ErrConfirmUnsupported = errors.New("email confirmation is handled by the identity provider")
)

const (
	defaultSignupBonus = 5
	fallbackName       = "Explorer"
)

// SessionService turns provider principals into application sessions and keeps
// the user directory in step with the provider.
type SessionService struct {
	provider    identity.Provider
	federated   identity.Federated
	users       *repository.UserRepository
	notifier    Notifier
	states      *cache.Cache
	adminEmail  string
	signupBonus int
	log         *slog.Logger
}

// NewSessionService wires the orchestrator. federated may be nil.
func NewSessionService(cfg config.AuthConfig, log *slog.Logger, provider identity.Provider, federated identity.Federated, users *repository.UserRepository, notifier Notifier) *SessionService {
	bonus := cfg.SignupBonus
	if bonus <= 0 {
		bonus = defaultSignupBonus
	}
	ttl := cfg.OIDC.StateTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &SessionService{
		provider:    provider,
		federated:   federated,
		users:       users,
		notifier:    notifier,
		states:      cache.New(ttl, 2*ttl),
		adminEmail:  repository.NormalizeEmail(cfg.AdminEmail),
		signupBonus: bonus,
		log:         log,
	}
}

func (s *SessionService) FederatedEnabled() bool {
	return s.federated != nil
}

// SignUp registers the account, creates its directory record and signs the
// provider session straight back out. The caller stays anonymous until the
// address is verified. An address already in the directory, for example from
// federated sign-in, is refused so its record is never replaced.
func (s *SessionService) SignUp(ctx context.Context, email, password, displayName string) (*models.User, error) {
	existing, err := s.users.Get(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check directory user: %w", err)
	}
	if existing != nil {
		return nil, identity.ErrEmailInUse
	}

	principal, err := s.provider.SignUp(ctx, email, password, displayName)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.provider.SignOut(ctx, principal); err != nil {
			s.log.Warn("sign out after sign up failed", "email", principal.Email, "err", err)
		}
	}()

	user, created, err := s.users.Insert(ctx, s.newUser(principal, displayName))
	if err != nil {
		return nil, fmt.Errorf("create directory user: %w", err)
	}
	if !created {
		s.log.Warn("directory user appeared during sign up, keeping existing record", "user_id", user.ID, "email", user.Email)
		return nil, identity.ErrEmailInUse
	}
	s.log.Info("user signed up", "user_id", user.ID, "email", user.Email)
	s.notifier.UserSignedUp(ctx, *user)
	return user, nil
}

// SignIn authenticates with the provider. Unverified principals are signed out
// again and reported as PendingVerification.
func (s *SessionService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	principal, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !principal.EmailVerified {
		if err := s.provider.SignOut(ctx, principal); err != nil {
			s.log.Warn("sign out of unverified principal failed", "email", principal.Email, "err", err)
		}
		return &Session{State: StatePendingVerification, Principal: principal}, nil
	}
	return s.Resolve(ctx, principal)
}

// BeginFederated returns the provider URL to redirect the browser to.
func (s *SessionService) BeginFederated() (string, error) {
	if s.federated == nil {
		return "", ErrFederatedDisabled
	}
	state := uuid.NewString()
	s.states.SetDefault(state, struct{}{})
	return s.federated.AuthCodeURL(state), nil
}

// CompleteFederated consumes the one-time state and resolves the returned principal.
func (s *SessionService) CompleteFederated(ctx context.Context, state, code string) (*Session, error) {
	if s.federated == nil {
		return nil, ErrFederatedDisabled
	}
	if _, ok := s.states.Get(state); !ok || state == "" {
		return nil, ErrInvalidState
	}
	s.states.Delete(state)

	principal, err := s.federated.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	principal.EmailVerified = true
	return s.Resolve(ctx, principal)
}

// Resolve maps a principal onto its directory user. A verified principal with no
// directory record gets a default one, which repairs drift between the provider
// and the directory. Calling it repeatedly is safe.
func (s *SessionService) Resolve(ctx context.Context, principal *identity.Principal) (*Session, error) {
	if principal == nil {
		return Anonymous(), nil
	}
	if !principal.EmailVerified {
		return &Session{State: StatePendingVerification, Principal: principal}, nil
	}

	user, created, err := s.users.Insert(ctx, s.newUser(principal, ""))
	if err != nil {
		return nil, fmt.Errorf("resolve directory user: %w", err)
	}
	if created {
		s.log.Info("directory user created from provider principal", "user_id", user.ID, "email", user.Email)
	}
	return &Session{State: StateAuthenticated, Principal: principal, User: user}, nil
}

func (s *SessionService) SignOut(ctx context.Context, principal *identity.Principal) (*Session, error) {
	if principal != nil && !principal.Federated {
		if err := s.provider.SignOut(ctx, principal); err != nil {
			return nil, err
		}
	}
	return Anonymous(), nil
}

func (s *SessionService) ResendVerification(ctx context.Context, email string) error {
	return s.provider.SendVerificationEmail(ctx, &identity.Principal{Email: email})
}

// ConfirmEmail completes verification for providers that hand the token back to
// this service. The user still signs in afterwards.
func (s *SessionService) ConfirmEmail(ctx context.Context, token string) error {
	confirmer, ok := s.provider.(identity.Confirmer)
	if !ok {
		return ErrConfirmUnsupported
	}
	if err := confirmer.ConfirmEmail(ctx, token); err != nil {
		return err
	}
	s.log.Info("email confirmed")
	return nil
}

func (s *SessionService) ResetPassword(ctx context.Context, email string) error {
	return s.provider.SendPasswordReset(ctx, email)
}

func (s *SessionService) IsAdminEmail(email string) bool {
	return s.adminEmail != "" && repository.NormalizeEmail(email) == s.adminEmail
}

func (s *SessionService) newUser(principal *identity.Principal, displayName string) models.User {
	email := repository.NormalizeEmail(principal.Email)
	// Federated users without a profile name get the fallback name, not their
	// email local part.
	nameSource := email
	if principal.Federated {
		nameSource = ""
	}
	return models.User{
		ID:      principal.UID,
		Email:   email,
		Name:    pickName(displayName, principal.DisplayName, nameSource),
		Credits: s.signupBonus,
		IsAdmin: s.IsAdminEmail(email),
	}
}

// pickName prefers an explicit display name, then the provider's, then the email
// local part.
func pickName(explicit, provider, email string) string {
	for _, candidate := range []string{explicit, provider} {
		if name := strings.TrimSpace(candidate); name != "" {
			return name
		}
	}
	if local, _, _ := strings.Cut(email, "@"); local != "" {
		return local
	}
	return fallbackName
}
