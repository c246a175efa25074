package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tokenbroker/internal/access"
	"github.com/dropDatabas3/tokenbroker/internal/http/controllers"
	"github.com/dropDatabas3/tokenbroker/internal/oauth"
	"github.com/dropDatabas3/tokenbroker/internal/provider"
	"github.com/dropDatabas3/tokenbroker/internal/session"
	"github.com/dropDatabas3/tokenbroker/internal/tokenstore"
)

const redirectURI = "https://broker.example.com/callback"

// fakeUpstream plays both token endpoints and the SimplyBook RPC endpoint.
type fakeUpstream struct {
	exchangeResp string
	refreshResp  string
	rpcResp      string

	exchangeForms []url.Values
	refreshForms  []url.Values
}

func (f *fakeUpstream) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			require.NoError(t, r.ParseForm())
			w.Header().Set("Content-Type", "application/json")
			switch r.PostForm.Get("grant_type") {
			case "authorization_code":
				f.exchangeForms = append(f.exchangeForms, r.PostForm)
				_, _ = w.Write([]byte(f.exchangeResp))
			case "refresh_token":
				f.refreshForms = append(f.refreshForms, r.PostForm)
				_, _ = w.Write([]byte(f.refreshResp))
			default:
				w.WriteHeader(http.StatusBadRequest)
			}
		case "/rpc":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(f.rpcResp))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

type brokerFixture struct {
	router   http.Handler
	upstream *fakeUpstream
}

func newBroker(t *testing.T) *brokerFixture {
	t.Helper()

	up := &fakeUpstream{
		exchangeResp: `{"access_token":"AT","expires_in":3600,"refresh_token":"RT"}`,
		refreshResp:  `{"access_token":"AT2","expires_in":3600}`,
		rpcResp:      `{"jsonrpc":"2.0","result":"sb-tok","id":2}`,
	}
	srv := httptest.NewServer(up.handler(t))
	t.Cleanup(srv.Close)

	registry := provider.NewRegistry(
		provider.Provider{
			Name:     provider.Google,
			Style:    provider.AuthorizationCode,
			AuthURL:  srv.URL + "/authorize",
			TokenURL: srv.URL + "/token",
			Scope:    "sheets.readonly",
		},
		provider.Provider{
			Name:     provider.Microsoft,
			Style:    provider.AuthorizationCode,
			AuthURL:  srv.URL + "/authorize",
			TokenURL: srv.URL + "/token",
			Scope:    "User.Read",
		},
		provider.Provider{
			Name:     provider.SimplyBook,
			Style:    provider.CredentialLogin,
			TokenURL: srv.URL + "/rpc",
		},
	)

	store := tokenstore.NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	correlator := session.New(0, 0)
	engine := oauth.NewClient(0)
	coordinator := access.New(store, correlator, engine)

	ctrls := controllers.New(controllers.Deps{
		Registry:    registry,
		Sessions:    correlator,
		Store:       store,
		Engine:      engine,
		Coordinator: coordinator,
		RedirectURI: redirectURI,
	})

	return &brokerFixture{
		router:   NewRouter(ctrls, nil, nil),
		upstream: up,
	}
}

func (b *brokerFixture) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	b.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func (b *brokerFixture) postJSON(path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	b.router.ServeHTTP(rec, req)
	return rec
}

// beginLogin drives /auth and returns the state from the redirect URL.
func (b *brokerFixture) beginLogin(t *testing.T, providerName, sessionID string) string {
	t.Helper()
	rec := b.get("/auth/" + providerName + "?client_id=X&client_secret=Y&session_id=" + sessionID)
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestAuthRedirect(t *testing.T) {
	b := newBroker(t)

	rec := b.get("/auth/google?client_id=X&client_secret=Y&session_id=S1")
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(loc.Path, "/authorize"))

	q := loc.Query()
	require.Equal(t, "X", q.Get("client_id"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, redirectURI, q.Get("redirect_uri"))
	require.Equal(t, "sheets.readonly", q.Get("scope"))
	require.Equal(t, "offline", q.Get("access_type"))
	require.Equal(t, "consent", q.Get("prompt"))
	require.NotEmpty(t, q.Get("state"))
}

func TestAuthValidation(t *testing.T) {
	b := newBroker(t)

	rec := b.get("/auth/github?client_id=X&client_secret=Y&session_id=S1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Unsupported provider", errorBody(t, rec))

	// simplybook has no redirect flow
	rec = b.get("/auth/simplybook?client_id=X&client_secret=Y&session_id=S1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Unsupported provider", errorBody(t, rec))

	rec = b.get("/auth/google?client_id=X&client_secret=Y")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Missing session_id", errorBody(t, rec))

	rec = b.get("/auth/google?session_id=S1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Missing client_id or client_secret", errorBody(t, rec))
}

func TestFullAuthorizationFlow(t *testing.T) {
	b := newBroker(t)

	state := b.beginLogin(t, "google", "S1")

	rec := b.get("/callback?code=C&state=" + url.QueryEscape(state))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t,
		`{"access_token":"AT","expires_in":3600,"refresh_token":"RT"}`,
		rec.Body.String())

	require.Len(t, b.upstream.exchangeForms, 1)
	form := b.upstream.exchangeForms[0]
	require.Equal(t, "C", form.Get("code"))
	require.Equal(t, "X", form.Get("client_id"))
	require.Equal(t, "Y", form.Get("client_secret"))
	require.Equal(t, redirectURI, form.Get("redirect_uri"))

	rec = b.get("/token/google?session_id=S1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"access_token":"AT","source":"cache"}`, rec.Body.String())

	// Cache hit: no refresh call was made.
	require.Empty(t, b.upstream.refreshForms)
}

func TestCallbackValidation(t *testing.T) {
	b := newBroker(t)

	rec := b.get("/callback?code=C")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Missing code or state", errorBody(t, rec))

	rec = b.get("/callback?state=S")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Missing code or state", errorBody(t, rec))

	rec = b.get("/callback?code=C&state=never-issued")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Unknown or expired state", errorBody(t, rec))
}

func TestCallbackStateReplayRejected(t *testing.T) {
	b := newBroker(t)

	state := b.beginLogin(t, "google", "S1")

	rec := b.get("/callback?code=C&state=" + url.QueryEscape(state))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = b.get("/callback?code=C&state=" + url.QueryEscape(state))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Unknown or expired state", errorBody(t, rec))
}

func TestTokenRefreshFlow(t *testing.T) {
	b := newBroker(t)
	// expires_in of 10 is inside the 30s safety margin: invalid immediately.
	b.upstream.exchangeResp = `{"access_token":"AT","expires_in":10,"refresh_token":"RT"}`

	state := b.beginLogin(t, "google", "S1")
	rec := b.get("/callback?code=C&state=" + url.QueryEscape(state))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = b.get("/token/google?session_id=S1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"access_token":"AT2","source":"refresh"}`, rec.Body.String())

	require.Len(t, b.upstream.refreshForms, 1)
	form := b.upstream.refreshForms[0]
	require.Equal(t, "RT", form.Get("refresh_token"))
	require.Equal(t, "X", form.Get("client_id"))
	require.Equal(t, "Y", form.Get("client_secret"))
}

func TestTokenValidation(t *testing.T) {
	b := newBroker(t)

	rec := b.get("/token/google")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Missing session_id", errorBody(t, rec))

	rec = b.get("/token/github?session_id=S1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Unsupported provider", errorBody(t, rec))
}

func TestTokenWithoutLogin(t *testing.T) {
	b := newBroker(t)

	rec := b.get("/token/google?session_id=S1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "No refresh_token stored. Do one interactive login first.", errorBody(t, rec))
}

func TestTokenMissingCredentialsForOtherSession(t *testing.T) {
	b := newBroker(t)
	b.upstream.exchangeResp = `{"access_token":"AT","expires_in":10,"refresh_token":"RT"}`

	state := b.beginLogin(t, "google", "S1")
	rec := b.get("/callback?code=C&state=" + url.QueryEscape(state))
	require.Equal(t, http.StatusOK, rec.Code)

	// Token is expired and session S2 never supplied credentials.
	rec = b.get("/token/google?session_id=S2")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Missing stored client credentials for session", errorBody(t, rec))
	require.Empty(t, b.upstream.refreshForms)
}

func TestSimplyBookFlow(t *testing.T) {
	b := newBroker(t)

	rec := b.get("/token/simplybook")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "No SimplyBook token stored yet. Login first.", errorBody(t, rec))

	rec = b.postJSON("/simplybook/login",
		`{"company_login":"acme","user_login":"alice","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"jsonrpc":"2.0","result":"sb-tok","id":2}`, rec.Body.String())

	rec = b.get("/token/simplybook")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"token":"sb-tok","source":"cache"}`, rec.Body.String())
}

func TestSimplyBookLoginValidation(t *testing.T) {
	b := newBroker(t)

	rec := b.postJSON("/simplybook/login", `{"company_login":"acme"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Missing company_login, user_login or password", errorBody(t, rec))
}

func TestSimplyBookProviderError(t *testing.T) {
	b := newBroker(t)
	b.upstream.rpcResp = `{"jsonrpc":"2.0","error":{"code":-32001,"message":"Wrong credentials"},"id":2}`

	rec := b.postJSON("/simplybook/login",
		`{"company_login":"acme","user_login":"alice","password":"bad"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, errorBody(t, rec), "Wrong credentials")

	// The failed login must not leave anything in the cache.
	rec = b.get("/token/simplybook")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	b := newBroker(t)
	rec := b.get("/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestIndexServed(t *testing.T) {
	b := newBroker(t)
	rec := b.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "tokenbroker")
}
