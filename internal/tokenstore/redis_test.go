package tokenstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	now := time.Unix(1_700_000_000, 0)
	s := NewRedisStore(rdb, "test:")
	s.now = func() time.Time { return now }
	return s, &now
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, now := newTestRedisStore(t)

	require.NoError(t, s.SaveOAuthToken(ctx, "google", Update{
		AccessToken: "a", ExpiresIn: 3600, HasExpiresIn: true, RefreshToken: "r",
	}))

	valid, err := s.IsValid(ctx, "google")
	require.NoError(t, err)
	require.True(t, valid)

	at, err := s.AccessToken(ctx, "google")
	require.NoError(t, err)
	require.Equal(t, "a", at)

	*now = now.Add(time.Hour)
	valid, err = s.IsValid(ctx, "google")
	require.NoError(t, err)
	require.False(t, valid)
}

func TestRedisStore_MergePreservesRefreshToken(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t)

	require.NoError(t, s.SaveOAuthToken(ctx, "google", Update{AccessToken: "a1", RefreshToken: "r1"}))
	require.NoError(t, s.SaveOAuthToken(ctx, "google", Update{AccessToken: "a2"}))

	rt, err := s.RefreshToken(ctx, "google")
	require.NoError(t, err)
	require.Equal(t, "r1", rt)
}

func TestRedisStore_Opaque(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t)

	_, err := s.OpaqueResult(ctx, "simplybook")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveOpaqueToken(ctx, "simplybook", json.RawMessage(`{"result":"tok"}`)))
	res, err := s.OpaqueResult(ctx, "simplybook")
	require.NoError(t, err)
	require.JSONEq(t, `"tok"`, string(res))
}
