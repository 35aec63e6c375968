package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/digkill/lumina/internal/config"
	"github.com/digkill/lumina/internal/identity"
)

func (s *ServiceSuite) TestSignUpCreatesUserAndStaysAnonymous() {
	user, err := s.sessions.SignUp(s.ctx, "a@x.com", "secret1", "Ada")
	s.Require().NoError(err)
	s.Equal(5, user.Credits)
	s.False(user.IsAdmin)
	s.Equal("Ada", user.Name)

	stored, err := s.users.Get(s.ctx, "a@x.com")
	s.Require().NoError(err)
	s.Equal(user, stored)
	s.Len(s.notifier.signups, 1)
	outbox := s.provider.Outbox()
	s.Require().Len(outbox, 1)
	s.Equal(identity.MailVerification, outbox[0].Kind)
	s.Equal("a@x.com", outbox[0].To)

	session, err := s.sessions.SignIn(s.ctx, "a@x.com", "secret1")
	s.Require().NoError(err)
	s.Equal(StatePendingVerification, session.State)
	s.False(session.Authenticated())
	s.Nil(session.User)
}

func (s *ServiceSuite) TestSignUpAdminAndDuplicate() {
	admin, err := s.sessions.SignUp(s.ctx, "Admin@Lumina.ai", "secret1", "")
	s.Require().NoError(err)
	s.True(admin.IsAdmin)
	s.Equal("admin", admin.Name)

	_, err = s.sessions.SignUp(s.ctx, "admin@lumina.ai", "secret1", "")
	s.ErrorIs(err, identity.ErrEmailInUse)
}

func (s *ServiceSuite) TestSignUpKeepsFederatedUser() {
	url, err := s.sessions.BeginFederated()
	s.Require().NoError(err)
	session, err := s.sessions.CompleteFederated(s.ctx, url[len("https://accounts.example.com/auth?state="):], "code")
	s.Require().NoError(err)
	_, err = s.ledger.SetBalance(s.ctx, session.User.ID, 500)
	s.Require().NoError(err)
	_, err = s.history.Append(s.ctx, session.User.ID, "mine", "url", "1:1")
	s.Require().NoError(err)

	_, err = s.sessions.SignUp(s.ctx, "FED@lumina.ai", "attacker1", "Mallory")
	s.ErrorIs(err, identity.ErrEmailInUse)
	s.Empty(s.provider.Outbox(), "no provider account is created")
	s.Empty(s.notifier.signups)

	stored, err := s.users.Get(s.ctx, "fed@lumina.ai")
	s.Require().NoError(err)
	s.Equal("g-1", stored.ID)
	s.Equal(500, stored.Credits)
	s.Equal("Fed", stored.Name)

	history, err := s.history.ListForUser(s.ctx, "g-1")
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *ServiceSuite) TestFederatedNameFallback() {
	s.federated.principal.DisplayName = ""
	url, err := s.sessions.BeginFederated()
	s.Require().NoError(err)

	session, err := s.sessions.CompleteFederated(s.ctx, url[len("https://accounts.example.com/auth?state="):], "code")
	s.Require().NoError(err)
	s.Equal("Explorer", session.User.Name)
}

func (s *ServiceSuite) TestConfirmEmail() {
	_, err := s.sessions.SignUp(s.ctx, "a@x.com", "secret1", "")
	s.Require().NoError(err)
	token := s.provider.Outbox()[0].Token

	s.ErrorIs(s.sessions.ConfirmEmail(s.ctx, "bogus"), identity.ErrInvalidVerification)
	s.Require().NoError(s.sessions.ConfirmEmail(s.ctx, token))

	session, err := s.sessions.SignIn(s.ctx, "a@x.com", "secret1")
	s.Require().NoError(err)
	s.True(session.Authenticated())

	hosted := NewSessionService(config.AuthConfig{}, s.log, passwordOnly{s.provider}, nil, s.users, nil)
	s.ErrorIs(hosted.ConfirmEmail(s.ctx, token), ErrConfirmUnsupported)
}

func (s *ServiceSuite) TestSignInVerified() {
	session := s.signedIn("a@x.com", "Ada")
	s.Equal(StateAuthenticated, session.State)
	s.Equal("a@x.com", session.User.Email)
	s.Equal(5, session.User.Credits)

	_, err := s.sessions.SignIn(s.ctx, "a@x.com", "wrong")
	s.ErrorIs(err, identity.ErrAuthFailed)
}

func (s *ServiceSuite) TestResolveHealsMissingDirectoryUser() {
	p := &identity.Principal{UID: "uid-9", Email: "admin@lumina.ai", EmailVerified: true}

	session, err := s.sessions.Resolve(s.ctx, p)
	s.Require().NoError(err)
	s.True(session.Authenticated())
	s.Equal("uid-9", session.User.ID)
	s.Equal(5, session.User.Credits)
	s.True(session.User.IsAdmin)
	s.Equal("admin", session.User.Name)

	_, err = s.ledger.SetBalance(s.ctx, "uid-9", 42)
	s.Require().NoError(err)

	again, err := s.sessions.Resolve(s.ctx, p)
	s.Require().NoError(err)
	s.Equal(42, again.User.Credits)

	users, err := s.users.List(s.ctx)
	s.Require().NoError(err)
	s.Len(users, 1)
}

func (s *ServiceSuite) TestResolveUnverifiedAndNil() {
	session, err := s.sessions.Resolve(s.ctx, nil)
	s.Require().NoError(err)
	s.Equal(StateAnonymous, session.State)

	session, err = s.sessions.Resolve(s.ctx, &identity.Principal{UID: "u", Email: "u@x.com"})
	s.Require().NoError(err)
	s.Equal(StatePendingVerification, session.State)

	none, err := s.users.Get(s.ctx, "u@x.com")
	s.Require().NoError(err)
	s.Nil(none)
}

func (s *ServiceSuite) TestFederatedFlow() {
	url, err := s.sessions.BeginFederated()
	s.Require().NoError(err)
	state := url[len("https://accounts.example.com/auth?state="):]

	session, err := s.sessions.CompleteFederated(s.ctx, state, "code")
	s.Require().NoError(err)
	s.True(session.Authenticated())
	s.Equal("Fed", session.User.Name)
	s.Equal("g-1", session.User.ID)

	_, err = s.sessions.CompleteFederated(s.ctx, state, "code")
	s.ErrorIs(err, ErrInvalidState, "state is single use")

	_, err = s.sessions.CompleteFederated(s.ctx, "forged", "code")
	s.ErrorIs(err, ErrInvalidState)
}

func (s *ServiceSuite) TestFederatedUnauthorizedDomain() {
	s.federated.err = identity.ErrUnauthorizedDomain
	url, err := s.sessions.BeginFederated()
	s.Require().NoError(err)
	state := url[len("https://accounts.example.com/auth?state="):]

	_, err = s.sessions.CompleteFederated(s.ctx, state, "code")
	s.ErrorIs(err, identity.ErrUnauthorizedDomain)
}

func (s *ServiceSuite) TestSignOutAndMail() {
	session := s.signedIn("a@x.com", "")
	out, err := s.sessions.SignOut(s.ctx, session.Principal)
	s.Require().NoError(err)
	s.Equal(StateAnonymous, out.State)

	s.Require().NoError(s.sessions.ResendVerification(s.ctx, "a@x.com"))
	s.Require().NoError(s.sessions.ResetPassword(s.ctx, "a@x.com"))
	s.Len(s.provider.Outbox(), 3)
}

func TestPickName(t *testing.T) {
	tests := []struct {
		explicit, provider, email, want string
	}{
		{"Ada", "Provider", "a@x.com", "Ada"},
		{"  ", "Provider", "a@x.com", "Provider"},
		{"", "", "grace@x.com", "grace"},
		{"", "", "", "Explorer"},
		{"", "", "@x.com", "Explorer"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pickName(tt.explicit, tt.provider, tt.email))
	}
}

func TestFederatedDisabled(t *testing.T) {
	svc := &SessionService{}
	_, err := svc.BeginFederated()
	assert.ErrorIs(t, err, ErrFederatedDisabled)
	assert.False(t, svc.FederatedEnabled())
}
