package server

import (
	"context"
	"sync"
	"time"

	"github.com/clmpro/clmsetup/internal/logging"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

// SessionCookie is the name of the session cookie.
const SessionCookie = "clmsetup.sid"

const sessionCleanupInterval = 24 * time.Hour

type session struct {
	userID  int64
	expires time.Time
}

// SessionStore keeps sessions in memory. Cookie values carry only the
// session id, signed and timestamped by securecookie; the codec rejects
// cookies older than the TTL.
type SessionStore struct {
	codec *securecookie.SecureCookie
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]session
}

func newCookieCodec(secret string, ttl time.Duration) *securecookie.SecureCookie {
	codec := securecookie.New([]byte(secret), nil)
	codec.SetSerializer(securecookie.JSONEncoder{})
	// MaxAge 0 disables the age check, so sub-second TTLs rely on the map alone
	codec.MaxAge(int(ttl / time.Second))
	return codec
}

// NewSessionStore creates a store signing with secret.
func NewSessionStore(secret string, ttl time.Duration) *SessionStore {
	return &SessionStore{
		codec:    newCookieCodec(secret, ttl),
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]session),
	}
}

// Create starts a session for userID and returns the signed cookie value.
func (s *SessionStore) Create(userID int64) (string, error) {
	id := uuid.NewString()
	value, err := s.codec.Encode(SessionCookie, id)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.sessions[id] = session{userID: userID, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()

	return value, nil
}

// Lookup returns the user of a valid, unexpired session. Lookups refresh
// the expiry.
func (s *SessionStore) Lookup(value string) (int64, bool) {
	id, ok := s.verify(value)
	if !ok {
		return 0, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return 0, false
	}
	now := s.now()
	if now.After(sess.expires) {
		delete(s.sessions, id)
		return 0, false
	}
	sess.expires = now.Add(s.ttl)
	s.sessions[id] = sess
	return sess.userID, true
}

// Destroy ends the session named by value. Unknown values are ignored.
func (s *SessionStore) Destroy(value string) {
	id, ok := s.verify(value)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Prune removes expired sessions and returns how many were removed.
func (s *SessionStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if now.After(sess.expires) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunCleanup prunes expired sessions every interval until ctx is cancelled.
// The returned channel is closed when the goroutine exits.
func (s *SessionStore) RunCleanup(ctx context.Context, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = sessionCleanupInterval
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.Prune(); n > 0 {
					logging.Debug("Pruned expired sessions", zap.Int("count", n))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return done
}

func (s *SessionStore) verify(value string) (string, bool) {
	if value == "" {
		return "", false
	}
	var id string
	if err := s.codec.Decode(SessionCookie, value, &id); err != nil {
		logging.Debug("Rejected session cookie", zap.Error(err))
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}
