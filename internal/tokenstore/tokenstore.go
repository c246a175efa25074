// Package tokenstore is the durable cache of provider credentials. One record
// per provider, merged on write so that a refresh response without a
// refresh_token never erases the one we already have.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ExpirySlack se resta del lifetime reportado por el provider para que
// IsValid nunca devuelva true con un token a punto de vencer en vuelo.
const ExpirySlack = 30 * time.Second

// ErrNotFound indica que no hay valor almacenado para ese provider/clave.
var ErrNotFound = errors.New("tokenstore: not found")

// Record is the persisted shape for an authorization-code provider.
// Extra holds fields written by other (newer) versions of the broker; they
// round-trip untouched so the document stays forward-readable.
type Record struct {
	AccessToken  string `json:"access_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Update carries the fields of an upstream token response that participate in
// a merge. HasExpiresIn distinguishes "expires_in: 0" from absent.
type Update struct {
	AccessToken  string
	ExpiresIn    int
	HasExpiresIn bool
	RefreshToken string
}

// Merge applies upd to r. Present fields overwrite, absent fields are kept.
func (r *Record) Merge(upd Update, now time.Time) {
	if upd.AccessToken != "" {
		r.AccessToken = upd.AccessToken
	}
	if upd.HasExpiresIn {
		r.ExpiresAt = now.Add(time.Duration(upd.ExpiresIn)*time.Second - ExpirySlack).Unix()
	}
	if upd.RefreshToken != "" {
		r.RefreshToken = upd.RefreshToken
	}
}

// Valid reports whether the record holds an access token that is still usable
// at now. The comparison is strict: a token expiring exactly now is invalid.
func (r *Record) Valid(now time.Time) bool {
	return r.AccessToken != "" && now.Unix() < r.ExpiresAt
}

func (r *Record) MarshalJSON() ([]byte, error) {
	m := make(map[string]json.RawMessage, len(r.Extra)+3)
	for k, v := range r.Extra {
		m[k] = v
	}
	if r.AccessToken != "" {
		m["access_token"], _ = json.Marshal(r.AccessToken)
	}
	if r.ExpiresAt != 0 {
		m["expires_at"], _ = json.Marshal(r.ExpiresAt)
	}
	if r.RefreshToken != "" {
		m["refresh_token"], _ = json.Marshal(r.RefreshToken)
	}
	return json.Marshal(m)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = Record{}
	for k, v := range m {
		switch k {
		case "access_token":
			if err := json.Unmarshal(v, &r.AccessToken); err != nil {
				return err
			}
		case "expires_at":
			if err := json.Unmarshal(v, &r.ExpiresAt); err != nil {
				return err
			}
		case "refresh_token":
			if err := json.Unmarshal(v, &r.RefreshToken); err != nil {
				return err
			}
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]json.RawMessage)
			}
			r.Extra[k] = v
		}
	}
	return nil
}

// Store is the token cache contract. Every implementation serializes its
// read-merge-write cycle; callers never see a partially merged record.
type Store interface {
	// SaveOAuthToken merges upd into the provider's record and persists it.
	SaveOAuthToken(ctx context.Context, provider string, upd Update) error
	// SaveOpaqueToken stores raw verbatim under key, replacing any prior value.
	SaveOpaqueToken(ctx context.Context, key string, raw json.RawMessage) error
	// IsValid reports whether provider has a stored, unexpired access token.
	IsValid(ctx context.Context, provider string) (bool, error)
	// AccessToken returns the stored access token or ErrNotFound.
	AccessToken(ctx context.Context, provider string) (string, error)
	// RefreshToken returns the stored refresh token or ErrNotFound.
	RefreshToken(ctx context.Context, provider string) (string, error)
	// OpaqueResult returns the "result" field of the raw value stored under
	// key, or ErrNotFound when nothing (or nothing useful) is stored.
	OpaqueResult(ctx context.Context, key string) (json.RawMessage, error)
}

// opaqueResult extrae el campo "result" de una respuesta JSON-RPC guardada.
func opaqueResult(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, ErrNotFound
	}
	var body struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	if len(body.Result) == 0 || string(body.Result) == "null" {
		return nil, ErrNotFound
	}
	return body.Result, nil
}
