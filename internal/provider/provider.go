// Package provider holds the compiled-in descriptions of the identity
// providers the broker knows how to talk to. The set is closed on purpose:
// adding a provider is a code change, not configuration.
package provider

import (
	"errors"
	"fmt"
)

// AuthStyle distingue cómo se obtiene un token del provider.
type AuthStyle int

const (
	// AuthorizationCode: redirect-based OAuth2 code flow with refresh tokens.
	AuthorizationCode AuthStyle = iota
	// CredentialLogin: direct username/password exchange for an opaque token.
	CredentialLogin
)

func (s AuthStyle) String() string {
	switch s {
	case AuthorizationCode:
		return "authorization_code"
	case CredentialLogin:
		return "credential_login"
	default:
		return fmt.Sprintf("auth_style(%d)", int(s))
	}
}

// Provider describes one identity provider's endpoints and scope.
// Values are immutable; Lookup returns copies.
type Provider struct {
	Name     string
	Style    AuthStyle
	AuthURL  string
	TokenURL string
	Scope    string
}

// Well-known provider names.
const (
	Google     = "google"
	Microsoft  = "microsoft"
	SimplyBook = "simplybook"
)

// ErrUnknown is returned by Lookup for a provider name not in the registry.
var ErrUnknown = errors.New("unknown provider")

var defaults = map[string]Provider{
	Google: {
		Name:     Google,
		Style:    AuthorizationCode,
		AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL: "https://oauth2.googleapis.com/token",
		Scope:    "https://www.googleapis.com/auth/spreadsheets.readonly",
	},
	Microsoft: {
		Name:     Microsoft,
		Style:    AuthorizationCode,
		AuthURL:  "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		TokenURL: "https://login.microsoftonline.com/common/oauth2/v2.0/token",
		Scope:    "https://graph.microsoft.com/User.Read",
	},
	SimplyBook: {
		Name:     SimplyBook,
		Style:    CredentialLogin,
		TokenURL: "https://user-api.simplybook.me/login",
	},
}

// Registry resolves provider names to descriptors. The zero value is not
// usable; build one with Default() or NewRegistry() (tests).
type Registry struct {
	byName map[string]Provider
}

// Default returns the registry with the compiled-in provider set.
func Default() *Registry {
	return NewRegistry(defaults[Google], defaults[Microsoft], defaults[SimplyBook])
}

// NewRegistry builds a registry from explicit descriptors. Used by tests to
// point token URLs at fakes; production code uses Default().
func NewRegistry(ps ...Provider) *Registry {
	m := make(map[string]Provider, len(ps))
	for _, p := range ps {
		m[p.Name] = p
	}
	return &Registry{byName: m}
}

// Lookup returns the descriptor for name or ErrUnknown.
func (r *Registry) Lookup(name string) (Provider, error) {
	p, ok := r.byName[name]
	if !ok {
		return Provider{}, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return p, nil
}

// OAuth is Lookup restricted to authorization-code providers. Credential-login
// providers are rejected with ErrUnknown: they have no redirect flow.
func (r *Registry) OAuth(name string) (Provider, error) {
	p, err := r.Lookup(name)
	if err != nil {
		return Provider{}, err
	}
	if p.Style != AuthorizationCode {
		return Provider{}, fmt.Errorf("%w: %q is not an oauth provider", ErrUnknown, name)
	}
	return p, nil
}
