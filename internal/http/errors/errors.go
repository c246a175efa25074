// Package errors centralizes the broker's HTTP response helpers. Every
// failure, whatever its origin, leaves the process as {"error": message} —
// no stack traces, no internal state.
package errors

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

type apiError struct {
	Error string `json:"error"`
}

// WriteError emits {"error": msg} with the given status.
func WriteError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Error: msg})
}

// WriteJSON: respuesta JSON estándar.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteRawJSON relays a body we already hold as JSON bytes (e.g. a provider
// response) without re-encoding it.
func WriteRawJSON(w http.ResponseWriter, status int, raw []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// ReadJSON decodifica el body de forma tolerante (campos extra no rompen).
// Valida Content-Type y limita el body a 1MB. Devuelve false si ya respondió.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.Contains(ct, "application/json") {
		WriteError(w, http.StatusBadRequest, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
