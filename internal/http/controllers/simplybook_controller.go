package controllers

import (
	"encoding/json"
	"net/http"

	httperrors "github.com/dropDatabas3/tokenbroker/internal/http/errors"
	"github.com/dropDatabas3/tokenbroker/internal/metrics"
	"github.com/dropDatabas3/tokenbroker/internal/oauth"
	"github.com/dropDatabas3/tokenbroker/internal/observability/logger"
	"github.com/dropDatabas3/tokenbroker/internal/provider"
	"github.com/dropDatabas3/tokenbroker/internal/tokenstore"
)

// SimplyBookController handles the credential-login provider. There is no
// redirect leg and no refresh token: login stores the raw response, the token
// endpoint reads it back. A stale token is never refreshed transparently.
type SimplyBookController struct {
	registry *provider.Registry
	store    tokenstore.Store
	engine   *oauth.Client
}

type simplybookLoginRequest struct {
	CompanyLogin string `json:"company_login"`
	UserLogin    string `json:"user_login"`
	Password     string `json:"password"`
}

type simplybookTokenResponse struct {
	Token  json.RawMessage `json:"token"`
	Source string          `json:"source"`
}

// Login handles POST /simplybook/login.
func (c *SimplyBookController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SimplyBook.Login"))

	var req simplybookLoginRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	if req.CompanyLogin == "" || req.UserLogin == "" || req.Password == "" {
		httperrors.WriteError(w, http.StatusBadRequest, "Missing company_login, user_login or password")
		return
	}

	p, err := c.registry.Lookup(provider.SimplyBook)
	if err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, "Unsupported provider")
		return
	}

	raw, err := c.engine.CredentialLogin(ctx, p, req.CompanyLogin, req.UserLogin, req.Password)
	metrics.ObserveUpstreamCall(p.Name, "credential_login", err)
	if err != nil {
		log.Warn("credential login failed", logger.Err(err))
		httperrors.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := c.store.SaveOpaqueToken(ctx, p.Name, raw); err != nil {
		log.Error("persist token failed", logger.Provider(p.Name), logger.Err(err))
		httperrors.WriteError(w, http.StatusBadRequest, "failed to persist token")
		return
	}

	log.Info("credential login completed", logger.Provider(p.Name))
	httperrors.WriteRawJSON(w, http.StatusOK, raw)
}

// Token handles GET /token/simplybook.
func (c *SimplyBookController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SimplyBook.Token"))

	result, err := c.store.OpaqueResult(ctx, provider.SimplyBook)
	if err == tokenstore.ErrNotFound {
		httperrors.WriteError(w, http.StatusBadRequest, "No SimplyBook token stored yet. Login first.")
		return
	}
	if err != nil {
		log.Error("read token failed", logger.Provider(provider.SimplyBook), logger.Err(err))
		httperrors.WriteError(w, http.StatusBadRequest, "failed to read stored token")
		return
	}

	metrics.ObserveTokenServed(provider.SimplyBook, "cache")
	httperrors.WriteJSON(w, http.StatusOK, simplybookTokenResponse{
		Token:  result,
		Source: "cache",
	})
}
