package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrincipalFromClaims(t *testing.T) {
	claims := idClaims{Subject: "sub-1", Email: "Ada@Lumina.ai", Name: "Ada"}

	p, err := principalFromClaims(claims, nil, "tok")
	require.NoError(t, err)
	assert.Equal(t, &Principal{UID: "sub-1", Email: "Ada@Lumina.ai", DisplayName: "Ada", EmailVerified: true, AccessToken: "tok", Federated: true}, p)

	p, err = principalFromClaims(claims, normalizeDomains([]string{" @lumina.ai "}), "")
	require.NoError(t, err)
	assert.True(t, p.EmailVerified)

	_, err = principalFromClaims(claims, []string{"example.com"}, "")
	assert.ErrorIs(t, err, ErrUnauthorizedDomain)

	_, err = principalFromClaims(idClaims{Subject: "sub-2"}, nil, "")
	assert.ErrorIs(t, err, ErrProvider)
}

func TestDomainAllowed(t *testing.T) {
	tests := []struct {
		email   string
		allowed []string
		want    bool
	}{
		{email: "a@x.com", allowed: nil, want: true},
		{email: "a@x.com", allowed: []string{"x.com"}, want: true},
		{email: "a@X.COM", allowed: []string{"x.com"}, want: true},
		{email: "a@y.com", allowed: []string{"x.com"}, want: false},
		{email: "nodomain", allowed: []string{"x.com"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, domainAllowed(tt.email, tt.allowed))
		})
	}
}
