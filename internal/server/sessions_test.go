package server

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCreate(t *testing.T, s *SessionStore, userID int64) string {
	t.Helper()
	value, err := s.Create(userID)
	require.NoError(t, err)
	return value
}

func TestSessionStore_CreateLookupDestroy(t *testing.T) {
	s := NewSessionStore("secret", time.Hour)

	value := mustCreate(t, s, 42)
	id, ok := s.Lookup(value)
	require.True(t, ok)
	assert.EqualValues(t, 42, id)

	s.Destroy(value)
	_, ok = s.Lookup(value)
	assert.False(t, ok)
	assert.Zero(t, s.Len())
}

func TestSessionStore_RejectsTampering(t *testing.T) {
	s := NewSessionStore("secret", time.Hour)
	value := mustCreate(t, s, 7)

	// Flip one character in the middle of the encoded value
	flipped := []byte(value)
	mid := len(flipped) / 2
	if flipped[mid] == 'A' {
		flipped[mid] = 'B'
	} else {
		flipped[mid] = 'A'
	}

	// Correctly signed, but the payload is not a session id
	forged, err := securecookie.New([]byte("secret"), nil).
		SetSerializer(securecookie.JSONEncoder{}).
		Encode(SessionCookie, "not-a-uuid")
	require.NoError(t, err)

	// Signed for a different cookie name
	renamed, err := securecookie.New([]byte("secret"), nil).
		SetSerializer(securecookie.JSONEncoder{}).
		Encode("other.sid", "6f1c2b9e-4d0a-4a53-9a5e-1f6f3a8e2b11")
	require.NoError(t, err)

	other := NewSessionStore("other-secret", time.Hour)

	tests := []struct {
		name  string
		value string
		store *SessionStore
	}{
		{"modified value", string(flipped), s},
		{"truncated", value[:len(value)-4], s},
		{"not a uuid", forged, s},
		{"other cookie name", renamed, s},
		{"different secret", value, other},
		{"garbage", "abc.def", s},
		{"empty", "", s},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := tt.store.Lookup(tt.value)
			assert.False(t, ok)
		})
	}

	_, ok := s.Lookup(value)
	assert.True(t, ok, "original cookie still valid")
}

func TestSessionStore_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewSessionStore("secret", time.Hour)
	s.now = func() time.Time { return now }

	keep := mustCreate(t, s, 1)
	drop := mustCreate(t, s, 2)

	now = now.Add(45 * time.Minute)
	_, ok := s.Lookup(keep) // refreshes keep
	require.True(t, ok)

	now = now.Add(30 * time.Minute)
	assert.Equal(t, 1, s.Prune())

	_, ok = s.Lookup(drop)
	assert.False(t, ok)
	_, ok = s.Lookup(keep)
	assert.True(t, ok)
}

func TestSessionStore_CookieOlderThanTTL(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the cookie timestamp to age")
	}

	s := NewSessionStore("secret", time.Second)
	// Keep the map entry alive so only the cookie age can reject it
	s.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	value := mustCreate(t, s, 3)
	_, ok := s.Lookup(value)
	require.True(t, ok)

	time.Sleep(2100 * time.Millisecond)

	_, ok = s.Lookup(value)
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len(), "map entry is left for Prune")
}

func TestSessionStore_RunCleanupStops(t *testing.T) {
	s := NewSessionStore("secret", time.Millisecond)
	mustCreate(t, s, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := s.RunCleanup(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup goroutine did not stop")
	}
}
