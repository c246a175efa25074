package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dropDatabas3/tokenbroker/internal/util/atomicwrite"
)

// FileStore keeps the whole cache in a single JSON document on disk, rewritten
// atomically on every save. One mutex serializes the read-merge-write cycle;
// with a handful of providers and interactive traffic that is plenty.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileStore creates a store backed by the JSON document at path. The file
// is created lazily on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// readAll loads the whole document. A missing file is an empty store; any
// other I/O or decode failure propagates (durability is correctness here).
func (s *FileStore) readAll() (map[string]json.RawMessage, error) {
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if doc == nil {
		doc = map[string]json.RawMessage{}
	}
	return doc, nil
}

func (s *FileStore) writeAll(doc map[string]json.RawMessage) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if err := atomicwrite.WriteFile(s.path, b, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) record(provider string) (*Record, error) {
	doc, err := s.readAll()
	if err != nil {
		return nil, err
	}
	raw, ok := doc[provider]
	if !ok {
		return nil, ErrNotFound
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record %q: %w", provider, err)
	}
	return &rec, nil
}

func (s *FileStore) SaveOAuthToken(_ context.Context, provider string, upd Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readAll()
	if err != nil {
		return err
	}
	var rec Record
	if raw, ok := doc[provider]; ok {
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode record %q: %w", provider, err)
		}
	}
	rec.Merge(upd, s.now())
	raw, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("encode record %q: %w", provider, err)
	}
	doc[provider] = raw
	return s.writeAll(doc)
}

func (s *FileStore) SaveOpaqueToken(_ context.Context, key string, raw json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readAll()
	if err != nil {
		return err
	}
	doc[key] = raw
	return s.writeAll(doc)
}

func (s *FileStore) IsValid(_ context.Context, provider string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.record(provider)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Valid(s.now()), nil
}

func (s *FileStore) AccessToken(_ context.Context, provider string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.record(provider)
	if err != nil {
		return "", err
	}
	if rec.AccessToken == "" {
		return "", ErrNotFound
	}
	return rec.AccessToken, nil
}

func (s *FileStore) RefreshToken(_ context.Context, provider string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.record(provider)
	if err != nil {
		return "", err
	}
	if rec.RefreshToken == "" {
		return "", ErrNotFound
	}
	return rec.RefreshToken, nil
}

func (s *FileStore) OpaqueResult(_ context.Context, key string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readAll()
	if err != nil {
		return nil, err
	}
	raw, ok := doc[key]
	if !ok {
		return nil, ErrNotFound
	}
	return opaqueResult(raw)
}
