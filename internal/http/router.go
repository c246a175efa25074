// Package http wires the broker's routes, middleware and server lifecycle.
package http

import (
	"embed"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/tokenbroker/internal/http/controllers"
)

//go:embed static/index.html
var staticFS embed.FS

// NewRouter builds the full handler chain. metricsHandler serves /metrics;
// pass nil to leave the route out (tests).
func NewRouter(c *controllers.Controllers, metricsHandler http.Handler, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(WithRequestID, WithLogging, WithRecover, WithSecurityHeaders)

	r.Method(http.MethodGet, "/auth/{provider}",
		WithMetrics("/auth/{provider}", http.HandlerFunc(c.Auth.Auth)))
	r.Method(http.MethodGet, "/callback",
		WithMetrics("/callback", http.HandlerFunc(c.Callback.Callback)))
	r.Method(http.MethodPost, "/simplybook/login",
		WithMetrics("/simplybook/login", http.HandlerFunc(c.SimplyBook.Login)))

	// /token/simplybook must win over /token/{provider}; chi routes static
	// segments before params, so both can coexist.
	r.Method(http.MethodGet, "/token/simplybook",
		WithMetrics("/token/simplybook", http.HandlerFunc(c.SimplyBook.Token)))
	r.Method(http.MethodGet, "/token/{provider}",
		WithMetrics("/token/{provider}", http.HandlerFunc(c.Token.Token)))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		b, err := staticFS.ReadFile("static/index.html")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(b)
	})

	return WithCORS(r, corsOrigins)
}
