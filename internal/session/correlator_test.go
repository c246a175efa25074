package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBeginLogin_IssuesDistinctResolvableStates(t *testing.T) {
	c := New(0, 0)

	s1, err := c.BeginLogin("google", "sess-1", "id-1", "secret-1")
	require.NoError(t, err)
	s2, err := c.BeginLogin("google", "sess-1", "id-2", "secret-2")
	require.NoError(t, err)
	require.NotEqual(t, s1, s2)

	// Credentials were overwritten by the second call.
	creds, ok := c.Credentials("sess-1", "google")
	require.True(t, ok)
	require.Equal(t, "id-2", creds.ClientID)
	require.Equal(t, "secret-2", creds.ClientSecret)

	// Both states resolve independently.
	p1, ok := c.ResolveState(s1)
	require.True(t, ok)
	require.Equal(t, Pending{Provider: "google", SessionID: "sess-1"}, p1)

	p2, ok := c.ResolveState(s2)
	require.True(t, ok)
	require.Equal(t, Pending{Provider: "google", SessionID: "sess-1"}, p2)
}

func TestResolveState_ConsumeOnce(t *testing.T) {
	c := New(0, 0)

	state, err := c.BeginLogin("microsoft", "sess-1", "id", "secret")
	require.NoError(t, err)

	_, ok := c.ResolveState(state)
	require.True(t, ok)

	// Replay must fail.
	_, ok = c.ResolveState(state)
	require.False(t, ok)
}

func TestResolveState_UnknownToken(t *testing.T) {
	c := New(0, 0)
	_, ok := c.ResolveState("never-issued")
	require.False(t, ok)
}

func TestResolveState_ConcurrentCallbacksOneWinner(t *testing.T) {
	c := New(0, 0)

	state, err := c.BeginLogin("google", "sess-1", "id", "secret")
	require.NoError(t, err)

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.ResolveState(state); ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	require.Equal(t, 1, count, "exactly one caller may consume a state")
}

func TestCredentials_NotFound(t *testing.T) {
	c := New(0, 0)
	_, ok := c.Credentials("nope", "google")
	require.False(t, ok)
}

func TestCredentials_ScopedPerProvider(t *testing.T) {
	c := New(0, 0)

	_, err := c.BeginLogin("google", "sess-1", "gid", "gsecret")
	require.NoError(t, err)
	_, err = c.BeginLogin("microsoft", "sess-1", "mid", "msecret")
	require.NoError(t, err)

	g, ok := c.Credentials("sess-1", "google")
	require.True(t, ok)
	require.Equal(t, "gid", g.ClientID)

	m, ok := c.Credentials("sess-1", "microsoft")
	require.True(t, ok)
	require.Equal(t, "mid", m.ClientID)
}

func TestPendingStateExpires(t *testing.T) {
	c := New(20*time.Millisecond, 0)

	state, err := c.BeginLogin("google", "sess-1", "id", "secret")
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	_, ok := c.ResolveState(state)
	require.False(t, ok, "expired states must not resolve")
}

func TestStateTokenLooksRandom(t *testing.T) {
	c := New(0, 0)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		s, err := c.BeginLogin("google", "sess", "id", "secret")
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(s), 43, "32 bytes base64url is 43 chars")
		require.False(t, seen[s], "states must never repeat")
		seen[s] = true
	}
}
