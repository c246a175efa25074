// Package session correlates the two halves of an interactive login: the
// outbound redirect (which carries a CSRF state token) and the inbound
// callback (which must present that token exactly once). It also holds the
// per-session client credentials needed for the code exchange and later
// refreshes.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Credentials son las client credentials que el caller entrega al iniciar un
// login interactivo; se reutilizan en el callback y en cada refresh.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Pending links an outstanding state token back to who started the login.
type Pending struct {
	Provider  string
	SessionID string
}

const (
	// DefaultStateTTL bounds how long a redirect round-trip may take. Stale
	// states are swept by the cache; without this they would pile up forever.
	DefaultStateTTL = 10 * time.Minute
	// DefaultCredentialTTL bounds how long stored client credentials live.
	DefaultCredentialTTL = 12 * time.Hour
)

// Correlator owns both maps. It is safe for concurrent use; ResolveState is
// the only read-modify-write and runs under mu so exactly one concurrent
// callback wins a given token.
type Correlator struct {
	mu     sync.Mutex
	states *gocache.Cache
	creds  *gocache.Cache
}

// New builds a correlator. Zero TTLs fall back to the defaults.
func New(stateTTL, credentialTTL time.Duration) *Correlator {
	if stateTTL <= 0 {
		stateTTL = DefaultStateTTL
	}
	if credentialTTL <= 0 {
		credentialTTL = DefaultCredentialTTL
	}
	return &Correlator{
		states: gocache.New(stateTTL, time.Minute),
		creds:  gocache.New(credentialTTL, time.Minute),
	}
}

func credKey(sessionID, provider string) string {
	return sessionID + "\x00" + provider
}

// BeginLogin stores (overwriting) the credentials for (sessionID, provider)
// and returns a fresh single-use state token for the redirect URL.
func (c *Correlator) BeginLogin(provider, sessionID, clientID, clientSecret string) (string, error) {
	state, err := newStateToken()
	if err != nil {
		return "", err
	}
	c.creds.SetDefault(credKey(sessionID, provider), Credentials{
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
	c.states.SetDefault(state, Pending{Provider: provider, SessionID: sessionID})
	return state, nil
}

// ResolveState pops the pending entry for state. The second call with the
// same token (or any token never issued / already expired) returns false.
func (c *Correlator) ResolveState(state string) (Pending, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.states.Get(state)
	if !ok {
		return Pending{}, false
	}
	c.states.Delete(state)
	return v.(Pending), true
}

// Credentials returns the stored client credentials for (sessionID, provider).
func (c *Correlator) Credentials(sessionID, provider string) (Credentials, bool) {
	v, ok := c.creds.Get(credKey(sessionID, provider))
	if !ok {
		return Credentials{}, false
	}
	return v.(Credentials), true
}

// newStateToken returns 256 bits of crypto/rand as base64url, unguessable and
// safe to embed in a query string.
func newStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
