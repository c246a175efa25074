package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	httperrors "github.com/dropDatabas3/tokenbroker/internal/http/errors"
	"github.com/dropDatabas3/tokenbroker/internal/oauth"
	"github.com/dropDatabas3/tokenbroker/internal/observability/logger"
	"github.com/dropDatabas3/tokenbroker/internal/provider"
	"github.com/dropDatabas3/tokenbroker/internal/session"
)

// AuthController starts an interactive login: it records the caller's client
// credentials, issues a CSRF state and redirects to the provider.
type AuthController struct {
	registry    *provider.Registry
	sessions    *session.Correlator
	redirectURI string
}

// Auth handles GET /auth/{provider}.
func (c *AuthController) Auth(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("Auth"))

	name := chi.URLParam(r, "provider")
	p, err := c.registry.OAuth(name)
	if err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Unsupported provider")
		return
	}

	q := r.URL.Query()
	sessionID := q.Get("session_id")
	clientID := q.Get("client_id")
	clientSecret := q.Get("client_secret")
	if sessionID == "" {
		httperrors.WriteError(w, http.StatusBadRequest, "Missing session_id")
		return
	}
	if clientID == "" || clientSecret == "" {
		httperrors.WriteError(w, http.StatusBadRequest, "Missing client_id or client_secret")
		return
	}

	state, err := c.sessions.BeginLogin(p.Name, sessionID, clientID, clientSecret)
	if err != nil {
		log.Error("begin login failed", logger.Provider(p.Name), logger.Err(err))
		httperrors.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Info("interactive login started",
		logger.Provider(p.Name),
		logger.SessionID(sessionID),
	)
	http.Redirect(w, r, oauth.AuthCodeURL(p, clientID, c.redirectURI, state), http.StatusFound)
}
