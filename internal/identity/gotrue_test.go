package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supabase-community/gotrue-go/types"
)

type fakeGoTrue struct {
	signupErr  error
	signinErr  error
	signinUser types.User
	recovered  []string
	magic      []string
}

func (f *fakeGoTrue) Signup(req types.SignupRequest) (*types.SignupResponse, error) {
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	resp := &types.SignupResponse{}
	resp.User = types.User{ID: uuid.MustParse("7f2c1b8e-5c1a-4a53-9d36-6a3e1c1f0a11"), Email: req.Email}
	return resp, nil
}

func (f *fakeGoTrue) SignInWithEmailPassword(string, string) (*types.TokenResponse, error) {
	if f.signinErr != nil {
		return nil, f.signinErr
	}
	resp := &types.TokenResponse{}
	resp.AccessToken = "access"
	resp.User = f.signinUser
	return resp, nil
}

func (f *fakeGoTrue) Recover(req types.RecoverRequest) error {
	f.recovered = append(f.recovered, req.Email)
	return nil
}

func (f *fakeGoTrue) Magiclink(req types.MagiclinkRequest) error {
	f.magic = append(f.magic, req.Email)
	return nil
}

func TestClassifyGoTrueError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{msg: "response status code 422: {\"msg\":\"User already registered\"}", want: ErrEmailInUse},
		{msg: "response status code 422: {\"error_code\":\"user_already_exists\"}", want: ErrEmailInUse},
		{msg: "response status code 400: {\"error\":\"invalid_grant\",\"error_description\":\"Invalid login credentials\"}", want: ErrAuthFailed},
		{msg: "dial tcp: connection refused", want: ErrProvider},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.ErrorIs(t, classifyGoTrueError("op", errors.New(tt.msg)), tt.want)
		})
	}
}

func TestGoTrueSignUp(t *testing.T) {
	g := &GoTrue{client: &fakeGoTrue{}}
	p, err := g.SignUp(context.Background(), "a@x.com", "secret1", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "7f2c1b8e-5c1a-4a53-9d36-6a3e1c1f0a11", p.UID)
	assert.Equal(t, "Ada", p.DisplayName)
	assert.False(t, p.EmailVerified)

	g = &GoTrue{client: &fakeGoTrue{signupErr: errors.New("User already registered")}}
	_, err = g.SignUp(context.Background(), "a@x.com", "secret1", "Ada")
	assert.ErrorIs(t, err, ErrEmailInUse)
}

func TestGoTrueSignIn(t *testing.T) {
	confirmed := time.Now()
	fake := &fakeGoTrue{signinUser: types.User{
		ID:               uuid.MustParse("7f2c1b8e-5c1a-4a53-9d36-6a3e1c1f0a11"),
		Email:            "a@x.com",
		EmailConfirmedAt: &confirmed,
		UserMetadata:     map[string]interface{}{"full_name": "Ada"},
	}}
	g := &GoTrue{client: fake}

	p, err := g.SignIn(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)
	assert.True(t, p.EmailVerified)
	assert.Equal(t, "Ada", p.DisplayName)
	assert.Equal(t, "access", p.AccessToken)

	fake.signinErr = errors.New("response status code 400: Email not confirmed")
	p, err = g.SignIn(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)
	assert.False(t, p.EmailVerified)
	assert.Equal(t, "a@x.com", p.Email)

	fake.signinErr = errors.New("response status code 500: boom")
	_, err = g.SignIn(context.Background(), "a@x.com", "secret1")
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestGoTrueMailAndSignOut(t *testing.T) {
	fake := &fakeGoTrue{}
	var loggedOut []string
	g := &GoTrue{client: fake, logout: func(tok string) error {
		loggedOut = append(loggedOut, tok)
		return nil
	}}
	ctx := context.Background()

	require.NoError(t, g.SendPasswordReset(ctx, "a@x.com"))
	require.NoError(t, g.SendVerificationEmail(ctx, &Principal{Email: "a@x.com"}))
	require.NoError(t, g.SignOut(ctx, &Principal{Email: "a@x.com"}))
	require.NoError(t, g.SignOut(ctx, &Principal{Email: "a@x.com", AccessToken: "tok"}))

	assert.Equal(t, []string{"a@x.com"}, fake.recovered)
	assert.Equal(t, []string{"a@x.com"}, fake.magic)
	assert.Equal(t, []string{"tok"}, loggedOut)
}

func TestExtractProjectRef(t *testing.T) {
	assert.Equal(t, "abcd", extractProjectRef("https://abcd.supabase.co"))
	assert.Equal(t, "abcd", extractProjectRef("abcd"))
}
