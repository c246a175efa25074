package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists records in a single token_records table, one jsonb row per
// provider. The merge runs inside a transaction with SELECT ... FOR UPDATE so
// concurrent broker instances sharing a database cannot interleave merges.
type PGStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS token_records (
	provider   text PRIMARY KEY,
	record     jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
)`

// NewPGStore connects and ensures the schema exists.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg schema: %w", err)
	}
	return &PGStore{pool: pool, now: time.Now}, nil
}

// Close releases the underlying pool.
func (s *PGStore) Close() { s.pool.Close() }

func (s *PGStore) get(ctx context.Context, name string) (json.RawMessage, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM token_records WHERE provider = $1`, name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg select %q: %w", name, err)
	}
	return raw, nil
}

func (s *PGStore) upsert(ctx context.Context, tx pgx.Tx, name string, raw json.RawMessage) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO token_records (provider, record, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (provider)
		DO UPDATE SET record = EXCLUDED.record, updated_at = now()`,
		name, []byte(raw))
	if err != nil {
		return fmt.Errorf("pg upsert %q: %w", name, err)
	}
	return nil
}

func (s *PGStore) SaveOAuthToken(ctx context.Context, provider string, upd Update) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pg begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var rec Record
	var raw []byte
	err = tx.QueryRow(ctx,
		`SELECT record FROM token_records WHERE provider = $1 FOR UPDATE`, provider).Scan(&raw)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// first token for this provider
	case err != nil:
		return fmt.Errorf("pg select %q: %w", provider, err)
	default:
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode record %q: %w", provider, err)
		}
	}

	rec.Merge(upd, s.now())
	out, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("encode record %q: %w", provider, err)
	}
	if err := s.upsert(ctx, tx, provider, out); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pg commit: %w", err)
	}
	return nil
}

func (s *PGStore) SaveOpaqueToken(ctx context.Context, key string, raw json.RawMessage) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pg begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.upsert(ctx, tx, key, raw); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pg commit: %w", err)
	}
	return nil
}

func (s *PGStore) record(ctx context.Context, provider string) (*Record, error) {
	raw, err := s.get(ctx, provider)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record %q: %w", provider, err)
	}
	return &rec, nil
}

func (s *PGStore) IsValid(ctx context.Context, provider string) (bool, error) {
	rec, err := s.record(ctx, provider)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Valid(s.now()), nil
}

func (s *PGStore) AccessToken(ctx context.Context, provider string) (string, error) {
	rec, err := s.record(ctx, provider)
	if err != nil {
		return "", err
	}
	if rec.AccessToken == "" {
		return "", ErrNotFound
	}
	return rec.AccessToken, nil
}

func (s *PGStore) RefreshToken(ctx context.Context, provider string) (string, error) {
	rec, err := s.record(ctx, provider)
	if err != nil {
		return "", err
	}
	if rec.RefreshToken == "" {
		return "", ErrNotFound
	}
	return rec.RefreshToken, nil
}

func (s *PGStore) OpaqueResult(ctx context.Context, key string) (json.RawMessage, error) {
	raw, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}
	return opaqueResult(raw)
}
