// Package oauth talks to provider endpoints: the authorization-code exchange,
// the refresh-token exchange and the SimplyBook credential login. Responses
// come back parsed plus raw, and nothing is retried; the caller decides what
// a failed exchange means.
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/tokenbroker/internal/provider"
)

// DefaultTimeout bounds every outbound call so an unreachable provider cannot
// hang a request.
const DefaultTimeout = 30 * time.Second

// maxErrBody limita cuánto body de error guardamos/loggeamos.
const maxErrBody = 2048

// TokenResponse is a parsed token-endpoint answer. Raw is the body byte for
// byte, so callers can relay exactly what the provider said.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`

	Raw json.RawMessage `json:"-"`
}

// HasExpiresIn reports whether the response carried an expires_in field.
func (t *TokenResponse) HasExpiresIn() bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(t.Raw, &probe); err != nil {
		return false
	}
	_, ok := probe["expires_in"]
	return ok
}

// Client performs the upstream exchanges. Safe for concurrent use.
type Client struct {
	http *http.Client
}

// NewClient builds a client with the given outbound timeout (0 → DefaultTimeout).
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// AuthCodeURL builds the provider authorize URL for the redirect leg.
// access_type=offline + prompt=consent so Google hands out a refresh token.
func AuthCodeURL(p provider.Provider, clientID, redirectURI, state string) string {
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", p.Scope)
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	q.Set("state", state)
	return p.AuthURL + "?" + q.Encode()
}

// ExchangeAuthorizationCode trades a one-time code for tokens.
func (c *Client) ExchangeAuthorizationCode(ctx context.Context, p provider.Provider, code, clientID, clientSecret, redirectURI string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("redirect_uri", redirectURI)
	return c.tokenRequest(ctx, p, form)
}

// RefreshAccessToken trades a refresh token for a fresh access token.
func (c *Client) RefreshAccessToken(ctx context.Context, p provider.Provider, refreshToken, clientID, clientSecret string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	return c.tokenRequest(ctx, p, form)
}

func (c *Client) tokenRequest(ctx context.Context, p provider.Provider, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name, Err: err}
	}
	if resp.StatusCode/100 != 2 {
		return nil, &UpstreamError{Provider: p.Name, Status: resp.StatusCode, Body: truncate(body)}
	}

	var tr TokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%s: decode token response: %w", p.Name, err)
	}
	tr.Raw = json.RawMessage(body)
	return &tr, nil
}

// rpcRequest is the JSON-RPC 2.0 envelope SimplyBook's user API expects.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

// CredentialLogin exchanges company/user/password for an opaque token via the
// SimplyBook user API. Returns the raw response body so the store can keep it
// verbatim. A non-null "error" field in a 2xx body becomes a *ProviderError.
func (c *Client) CredentialLogin(ctx context.Context, p provider.Provider, companyLogin, userLogin, password string) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "getUserToken",
		Params:  []any{companyLogin, userLogin, password},
		ID:      2,
	})
	if err != nil {
		return nil, fmt.Errorf("encode rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name, Err: err}
	}
	if resp.StatusCode/100 != 2 {
		return nil, &UpstreamError{Provider: p.Name, Status: resp.StatusCode, Body: truncate(body)}
	}

	var probe struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("%s: decode rpc response: %w", p.Name, err)
	}
	if len(probe.Error) > 0 && string(probe.Error) != "null" {
		return nil, &ProviderError{Provider: p.Name, Detail: probe.Error}
	}
	return json.RawMessage(body), nil
}

func truncate(b []byte) string {
	if len(b) > maxErrBody {
		return string(b[:maxErrBody]) + "..."
	}
	return string(b)
}
