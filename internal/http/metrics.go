package http

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/tokenbroker/internal/metrics"
)

// WithMetrics instrumenta una ruta con el patrón declarado (no el path real).
func WithMetrics(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.ObserveHTTPRequest(r.Method, route, rec.status, time.Since(start))
	})
}
