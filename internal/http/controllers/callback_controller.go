package controllers

import (
	"net/http"

	httperrors "github.com/dropDatabas3/tokenbroker/internal/http/errors"
	"github.com/dropDatabas3/tokenbroker/internal/metrics"
	"github.com/dropDatabas3/tokenbroker/internal/oauth"
	"github.com/dropDatabas3/tokenbroker/internal/observability/logger"
	"github.com/dropDatabas3/tokenbroker/internal/provider"
	"github.com/dropDatabas3/tokenbroker/internal/session"
	"github.com/dropDatabas3/tokenbroker/internal/tokenstore"
)

// CallbackController closes the redirect round-trip: it consumes the state,
// recovers the session's credentials and exchanges the code for tokens.
type CallbackController struct {
	registry    *provider.Registry
	sessions    *session.Correlator
	store       tokenstore.Store
	engine      *oauth.Client
	redirectURI string
}

// Callback handles GET /callback.
func (c *CallbackController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("Callback"))

	q := r.URL.Query()
	code := q.Get("code")
	state := q.Get("state")
	if code == "" || state == "" {
		httperrors.WriteError(w, http.StatusBadRequest, "Missing code or state")
		return
	}

	// Consume-once: a replayed or unknown state dies here.
	pending, ok := c.sessions.ResolveState(state)
	if !ok {
		log.Warn("state not found or replayed")
		httperrors.WriteError(w, http.StatusBadRequest, "Unknown or expired state")
		return
	}

	creds, ok := c.sessions.Credentials(pending.SessionID, pending.Provider)
	if !ok {
		httperrors.WriteError(w, http.StatusBadRequest, "Missing stored client credentials for session")
		return
	}

	p, err := c.registry.OAuth(pending.Provider)
	if err != nil {
		// Pending entries only ever reference registered oauth providers.
		log.Error("pending state references unknown provider",
			logger.Provider(pending.Provider), logger.Err(err))
		httperrors.WriteError(w, http.StatusBadRequest, "Unsupported provider")
		return
	}

	tr, err := c.engine.ExchangeAuthorizationCode(ctx, p, code, creds.ClientID, creds.ClientSecret, c.redirectURI)
	metrics.ObserveUpstreamCall(p.Name, "exchange", err)
	if err != nil {
		log.Warn("code exchange failed", logger.Provider(p.Name), logger.Err(err))
		httperrors.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := c.store.SaveOAuthToken(ctx, p.Name, tokenstore.Update{
		AccessToken:  tr.AccessToken,
		ExpiresIn:    tr.ExpiresIn,
		HasExpiresIn: tr.HasExpiresIn(),
		RefreshToken: tr.RefreshToken,
	}); err != nil {
		// Durability is gone; this is the one class worth an error-level log.
		log.Error("persist token failed", logger.Provider(p.Name), logger.Err(err))
		httperrors.WriteError(w, http.StatusBadRequest, "failed to persist token")
		return
	}

	log.Info("authorization completed",
		logger.Provider(p.Name),
		logger.SessionID(pending.SessionID),
	)
	httperrors.WriteRawJSON(w, http.StatusOK, tr.Raw)
}
