package controllers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/tokenbroker/internal/access"
	httperrors "github.com/dropDatabas3/tokenbroker/internal/http/errors"
	"github.com/dropDatabas3/tokenbroker/internal/metrics"
	"github.com/dropDatabas3/tokenbroker/internal/observability/logger"
	"github.com/dropDatabas3/tokenbroker/internal/provider"
)

// TokenController serves usable access tokens to callers, refreshing behind
// the scenes when the cached one has expired.
type TokenController struct {
	registry    *provider.Registry
	coordinator *access.Coordinator
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Source      string `json:"source"`
}

// Token handles GET /token/{provider}.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("Token"))

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		httperrors.WriteError(w, http.StatusBadRequest, "Missing session_id")
		return
	}

	name := chi.URLParam(r, "provider")
	p, err := c.registry.OAuth(name)
	if err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Unsupported provider")
		return
	}

	tok, err := c.coordinator.GetToken(ctx, p, sessionID)
	switch {
	case err == nil:
		// fall through
	case errors.Is(err, access.ErrNoRefreshToken):
		httperrors.WriteError(w, http.StatusBadRequest, "No refresh_token stored. Do one interactive login first.")
		return
	case errors.Is(err, access.ErrMissingCredentials):
		httperrors.WriteError(w, http.StatusBadRequest, "Missing stored client credentials for session")
		return
	default:
		log.Error("get token failed", logger.Provider(p.Name), logger.Err(err))
		httperrors.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if tok.Source == access.SourceRefresh {
		log.Info("access token refreshed", logger.Provider(p.Name), logger.SessionID(sessionID))
	}
	metrics.ObserveTokenServed(p.Name, tok.Source)
	httperrors.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: tok.AccessToken,
		Source:      tok.Source,
	})
}
