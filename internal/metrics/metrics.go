// Package metrics registers the broker's prometheus collectors. Register once
// in startup; the Observe helpers are no-ops until then so unit tests don't
// need a registry.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	tokensServedTotal   *prometheus.CounterVec
	upstreamCallsTotal  *prometheus.CounterVec
)

// Register registra los collectors y devuelve el handler para /metrics.
// Registerer nil usa el default.
func Register(reg prometheus.Registerer) http.Handler {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	once.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenbroker_http_requests_total",
			Help: "Requests procesadas por método, ruta y status",
		}, []string{"method", "route", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tokenbroker_http_request_duration_seconds",
			Help:    "Latencia de requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})

		tokensServedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenbroker_tokens_served_total",
			Help: "Tokens servidos por provider y origen (cache|refresh)",
		}, []string{"provider", "source"})

		upstreamCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenbroker_upstream_calls_total",
			Help: "Llamadas a endpoints de providers por operación y resultado",
		}, []string{"provider", "op", "result"})

		reg.MustRegister(httpRequestsTotal, httpRequestDuration, tokensServedTotal, upstreamCallsTotal)
	})

	return promhttp.Handler()
}

// ObserveHTTPRequest records one served request. route is the chi pattern,
// not the raw path, so session ids don't blow up the cardinality.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveTokenServed cuenta un token entregado a un caller.
func ObserveTokenServed(provider, source string) {
	if tokensServedTotal != nil {
		tokensServedTotal.WithLabelValues(provider, source).Inc()
	}
}

// ObserveUpstreamCall cuenta una llamada saliente (result: ok|error).
func ObserveUpstreamCall(provider, op string, err error) {
	if upstreamCallsTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	upstreamCallsTotal.WithLabelValues(provider, op, result).Inc()
}
