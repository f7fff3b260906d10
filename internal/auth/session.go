package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"sync"
	"time"

	"github.com/keithlinneman/quarry/internal/xerrors"
)

// DefaultSessionTTL is how long a panel session stays valid without
// re-login.
const DefaultSessionTTL = 24 * time.Hour

const sweepInterval = 10 * time.Minute

// Session is one logged-in panel session. Only the SHA-256 of the
// token is kept in memory; the token itself lives in the cookie.
type Session struct {
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Sessions is an in-memory session store. Sessions do not survive a
// restart; panel users just log in again.
type Sessions struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	byHash map[string]Session
}

func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{
		ttl:    ttl,
		now:    time.Now,
		byHash: map[string]Session{},
	}
}

// Create issues a new session token for a user.
func (s *Sessions) Create(userID string) (token string, sess Session, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", Session{}, xerrors.Wrap(err, "generating session token")
	}
	token = base64.RawURLEncoding.EncodeToString(raw)

	now := s.now()
	sess = Session{
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.mu.Lock()
	s.byHash[hashToken(token)] = sess
	s.mu.Unlock()
	return token, sess, nil
}

// Lookup resolves a token to its session. Expired sessions are removed
// on sight.
func (s *Sessions) Lookup(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}
	h := hashToken(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byHash[h]
	if !ok {
		return Session{}, false
	}
	if s.now().After(sess.ExpiresAt) {
		delete(s.byHash, h)
		return Session{}, false
	}
	return sess, true
}

// Revoke removes one session.
func (s *Sessions) Revoke(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	delete(s.byHash, hashToken(token))
	s.mu.Unlock()
}

// RevokeUser removes every session of one user, for password changes
// and account deletion.
func (s *Sessions) RevokeUser(userID string) {
	s.mu.Lock()
	for h, sess := range s.byHash {
		if sess.UserID == userID {
			delete(s.byHash, h)
		}
	}
	s.mu.Unlock()
}

// Len returns the number of live sessions, expired ones included until
// the next sweep.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byHash)
}

// Sweep runs periodic cleanup of expired sessions until ctx is
// cancelled.
func (s *Sessions) Sweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Sessions) sweepOnce() {
	now := s.now()
	s.mu.Lock()
	for h, sess := range s.byHash {
		if now.After(sess.ExpiresAt) {
			delete(s.byHash, h)
		}
	}
	s.mu.Unlock()
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
