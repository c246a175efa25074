// Package controllers contains the HTTP endpoints of the broker. Controllers
// parse and validate the request, call into the domain packages and map their
// errors onto the wire; they hold no business logic of their own.
package controllers

import (
	"github.com/dropDatabas3/tokenbroker/internal/access"
	"github.com/dropDatabas3/tokenbroker/internal/oauth"
	"github.com/dropDatabas3/tokenbroker/internal/provider"
	"github.com/dropDatabas3/tokenbroker/internal/session"
	"github.com/dropDatabas3/tokenbroker/internal/tokenstore"
)

// Deps agrupa todo lo que necesitan los controllers.
type Deps struct {
	Registry    *provider.Registry
	Sessions    *session.Correlator
	Store       tokenstore.Store
	Engine      *oauth.Client
	Coordinator *access.Coordinator
	// RedirectURI is the externally registered callback URL; it must match
	// what the identity providers have on file, byte for byte.
	RedirectURI string
}

// Controllers agrupa los controllers del broker.
type Controllers struct {
	Auth       *AuthController
	Callback   *CallbackController
	SimplyBook *SimplyBookController
	Token      *TokenController
}

// New wires the controllers from shared dependencies.
func New(d Deps) *Controllers {
	return &Controllers{
		Auth:       &AuthController{registry: d.Registry, sessions: d.Sessions, redirectURI: d.RedirectURI},
		Callback:   &CallbackController{registry: d.Registry, sessions: d.Sessions, store: d.Store, engine: d.Engine, redirectURI: d.RedirectURI},
		SimplyBook: &SimplyBookController{registry: d.Registry, store: d.Store, engine: d.Engine},
		Token:      &TokenController{registry: d.Registry, coordinator: d.Coordinator},
	}
}
