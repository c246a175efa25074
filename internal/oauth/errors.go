package oauth

import (
	"encoding/json"
	"fmt"
)

// UpstreamError is a transport failure or non-2xx answer from a provider
// endpoint. Body is truncated, never parsed; it exists for diagnostics.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: upstream request failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: upstream returned %d: %s", e.Provider, e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ProviderError is an application-level error embedded in an otherwise
// successful response, e.g. the JSON-RPC "error" field.
type ProviderError struct {
	Provider string
	Detail   json.RawMessage
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Provider, string(e.Detail))
}
