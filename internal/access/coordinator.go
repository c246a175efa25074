// Package access decides how a caller gets a usable access token: straight
// from the cache when still valid, via a refresh-token exchange when not.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/tokenbroker/internal/metrics"
	"github.com/dropDatabas3/tokenbroker/internal/oauth"
	"github.com/dropDatabas3/tokenbroker/internal/provider"
	"github.com/dropDatabas3/tokenbroker/internal/session"
	"github.com/dropDatabas3/tokenbroker/internal/tokenstore"
)

// Token sources.
const (
	SourceCache   = "cache"
	SourceRefresh = "refresh"
)

var (
	// ErrNoRefreshToken: nothing stored to refresh with; an interactive login
	// has to happen first.
	ErrNoRefreshToken = errors.New("no refresh token stored")
	// ErrMissingCredentials: the session never supplied client credentials
	// for this provider (or they expired).
	ErrMissingCredentials = errors.New("missing stored client credentials for session")
)

// Token is what callers get back: the access token and where it came from.
type Token struct {
	AccessToken string
	Source      string
}

// Refresher is the slice of the flow engine the coordinator needs.
type Refresher interface {
	RefreshAccessToken(ctx context.Context, p provider.Provider, refreshToken, clientID, clientSecret string) (*oauth.TokenResponse, error)
}

// CredentialSource is the slice of the correlator the coordinator needs.
type CredentialSource interface {
	Credentials(sessionID, provider string) (session.Credentials, bool)
}

// Coordinator wires cache, correlator and flow engine together.
type Coordinator struct {
	store    tokenstore.Store
	sessions CredentialSource
	engine   Refresher
}

// New builds a coordinator.
func New(store tokenstore.Store, sessions CredentialSource, engine Refresher) *Coordinator {
	return &Coordinator{store: store, sessions: sessions, engine: engine}
}

// GetToken returns a currently-valid access token for p, refreshing if the
// cached one expired. The cache-hit path performs no upstream call and no
// writes. Failure modes, in order: ErrNoRefreshToken, ErrMissingCredentials,
// then whatever the refresh exchange returns.
func (c *Coordinator) GetToken(ctx context.Context, p provider.Provider, sessionID string) (Token, error) {
	valid, err := c.store.IsValid(ctx, p.Name)
	if err != nil {
		return Token{}, fmt.Errorf("check cache: %w", err)
	}
	if valid {
		at, err := c.store.AccessToken(ctx, p.Name)
		if err != nil {
			return Token{}, fmt.Errorf("read cached token: %w", err)
		}
		return Token{AccessToken: at, Source: SourceCache}, nil
	}

	rt, err := c.store.RefreshToken(ctx, p.Name)
	if err == tokenstore.ErrNotFound {
		return Token{}, ErrNoRefreshToken
	}
	if err != nil {
		return Token{}, fmt.Errorf("read refresh token: %w", err)
	}

	creds, ok := c.sessions.Credentials(sessionID, p.Name)
	if !ok {
		return Token{}, ErrMissingCredentials
	}

	tr, err := c.engine.RefreshAccessToken(ctx, p, rt, creds.ClientID, creds.ClientSecret)
	metrics.ObserveUpstreamCall(p.Name, "refresh", err)
	if err != nil {
		return Token{}, err
	}

	if err := c.store.SaveOAuthToken(ctx, p.Name, tokenstore.Update{
		AccessToken:  tr.AccessToken,
		ExpiresIn:    tr.ExpiresIn,
		HasExpiresIn: tr.HasExpiresIn(),
		RefreshToken: tr.RefreshToken,
	}); err != nil {
		return Token{}, fmt.Errorf("save refreshed token: %w", err)
	}

	at, err := c.store.AccessToken(ctx, p.Name)
	if err != nil {
		return Token{}, fmt.Errorf("read refreshed token: %w", err)
	}
	return Token{AccessToken: at, Source: SourceRefresh}, nil
}
