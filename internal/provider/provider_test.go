package provider

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()

	g, err := r.Lookup(Google)
	require.NoError(t, err)
	require.Equal(t, AuthorizationCode, g.Style)
	require.NotEmpty(t, g.AuthURL)
	require.NotEmpty(t, g.TokenURL)
	require.NotEmpty(t, g.Scope)

	m, err := r.Lookup(Microsoft)
	require.NoError(t, err)
	require.Equal(t, AuthorizationCode, m.Style)

	sb, err := r.Lookup(SimplyBook)
	require.NoError(t, err)
	require.Equal(t, CredentialLogin, sb.Style)
	require.Empty(t, sb.AuthURL, "credential login has no redirect leg")
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Default().Lookup("github")
	require.ErrorIs(t, err, ErrUnknown)
}

func TestOAuth_RejectsCredentialLogin(t *testing.T) {
	r := Default()

	_, err := r.OAuth(SimplyBook)
	require.ErrorIs(t, err, ErrUnknown)

	_, err = r.OAuth(Google)
	require.NoError(t, err)
}
