package service

import (
	"github.com/digkill/lumina/internal/identity"
	"github.com/digkill/lumina/internal/models"
)

type SessionState string

const (
	StateAnonymous           SessionState = "anonymous"
	StatePendingVerification SessionState = "pending_verification"
	StateAuthenticated       SessionState = "authenticated"
)

// Session is the resolved view of who is using the app. Only Authenticated
// sessions carry a directory user.
type Session struct {
	State     SessionState
	Principal *identity.Principal
	User      *models.User
}

func (s *Session) Authenticated() bool {
	return s != nil && s.State == StateAuthenticated && s.User != nil
}

var anonymous = Session{State: StateAnonymous}

func Anonymous() *Session {
	s := anonymous
	return &s
}
