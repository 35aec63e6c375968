package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

type MailKind string

const (
	MailVerification  MailKind = "verification"
	MailPasswordReset MailKind = "password_reset"
)

// Mail records an out-of-band message the memory provider would have sent.
// Verification mail carries the token that ConfirmEmail accepts.
type Mail struct {
	Kind  MailKind
	To    string
	Token string
}

type account struct {
	uid          string
	email        string
	displayName  string
	passwordHash []byte
	verified     bool
}

// Memory is an in-process provider for development and tests. Mail is not sent;
// it is kept in an outbox and, when a logger is attached, logged with its link.
type Memory struct {
	mu        sync.RWMutex
	accounts  map[string]*account
	tokens    map[string]string // verification token -> email
	outbox    []Mail
	cost      int
	log       *slog.Logger
	verifyURL string
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		cost:     bcrypt.DefaultCost,
	}
}

// WithMailLog logs every outgoing mail. verifyURL, when set, is the endpoint that
// receives the verification token as its token query parameter.
func (m *Memory) WithMailLog(log *slog.Logger, verifyURL string) *Memory {
	m.log = log
	m.verifyURL = verifyURL
	return m
}

// NewMemoryWithCost is NewMemory with a custom bcrypt cost.
func NewMemoryWithCost(cost int) *Memory {
	m := NewMemory()
	m.cost = cost
	return m
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m *Memory) SignUp(_ context.Context, email, password, displayName string) (*Principal, error) {
	email = normalize(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", ErrProvider)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrProvider, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %v", ErrProvider, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[email]; exists {
		return nil, ErrEmailInUse
	}
	acc := &account{
		uid:          uuid.NewString(),
		email:        email,
		displayName:  strings.TrimSpace(displayName),
		passwordHash: hash,
	}
	m.accounts[email] = acc
	m.sendVerificationLocked(email)
	return acc.principal(), nil
}

func (m *Memory) SignIn(_ context.Context, email, password string) (*Principal, error) {
	m.mu.RLock()
	acc, ok := m.accounts[normalize(email)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrAuthFailed
	}
	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)); err != nil {
		return nil, ErrAuthFailed
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return acc.principal(), nil
}

func (m *Memory) SendVerificationEmail(_ context.Context, principal *Principal) error {
	if principal == nil {
		return fmt.Errorf("%w: no principal", ErrProvider)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[normalize(principal.Email)]; !ok {
		return fmt.Errorf("%w: unknown account", ErrProvider)
	}
	m.sendVerificationLocked(normalize(principal.Email))
	return nil
}

// sendVerificationLocked issues a fresh token for email. m.mu must be held.
func (m *Memory) sendVerificationLocked(email string) {
	token := uuid.NewString()
	m.tokens[token] = email
	m.outbox = append(m.outbox, Mail{Kind: MailVerification, To: email, Token: token})
	if m.log != nil {
		m.log.Info("verification email", "to", email, "link", m.verificationLink(token))
	}
}

func (m *Memory) verificationLink(token string) string {
	if m.verifyURL == "" {
		return token
	}
	sep := "?"
	if strings.Contains(m.verifyURL, "?") {
		sep = "&"
	}
	return m.verifyURL + sep + "token=" + url.QueryEscape(token)
}

// ConfirmEmail verifies the address a token was issued for. Tokens are single use.
func (m *Memory) ConfirmEmail(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email, ok := m.tokens[token]
	if !ok || token == "" {
		return ErrInvalidVerification
	}
	delete(m.tokens, token)
	acc, ok := m.accounts[email]
	if !ok {
		return ErrInvalidVerification
	}
	acc.verified = true
	return nil
}

// SendPasswordReset succeeds for unknown addresses too; only known accounts get mail.
func (m *Memory) SendPasswordReset(_ context.Context, email string) error {
	email = normalize(email)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[email]; ok {
		m.outbox = append(m.outbox, Mail{Kind: MailPasswordReset, To: email})
		if m.log != nil {
			m.log.Info("password reset email", "to", email)
		}
	}
	return nil
}

func (m *Memory) SignOut(context.Context, *Principal) error {
	return nil
}

func (m *Memory) Outbox() []Mail {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Mail(nil), m.outbox...)
}

func (a *account) principal() *Principal {
	return &Principal{
		UID:           a.uid,
		Email:         a.email,
		DisplayName:   a.displayName,
		EmailVerified: a.verified,
	}
}
