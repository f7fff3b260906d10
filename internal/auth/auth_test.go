package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	email, err := NormalizeEmail("  Admin@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", email)

	for _, bad := range []string{"", "not-an-email", "a@b", "two@@example.com"} {
		_, err := NormalizeEmail(bad)
		assert.Error(t, err, bad)
	}
}

func TestPasswordHashAndVerify(t *testing.T) {
	_, err := HashPassword("short")
	require.Error(t, err)

	hash, err := HashPassword("correct horse battery")
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "correct horse battery"))
	assert.False(t, VerifyPassword(hash, "wrong password!"))
	assert.False(t, VerifyPassword("", "anything at all"))
}

func TestSessions(t *testing.T) {
	s := NewSessions(time.Hour)

	token, sess, err := s.Create("admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", sess.UserID)

	got, ok := s.Lookup(token)
	require.True(t, ok)
	assert.Equal(t, "admin", got.UserID)

	_, ok = s.Lookup("bogus-token")
	assert.False(t, ok)
	_, ok = s.Lookup("")
	assert.False(t, ok)

	s.Revoke(token)
	_, ok = s.Lookup(token)
	assert.False(t, ok)
}

func TestSessionExpiry(t *testing.T) {
	s := NewSessions(time.Hour)
	now := time.Now()
	s.now = func() time.Time { return now }

	token, _, err := s.Create("admin")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, ok := s.Lookup(token)
	assert.False(t, ok)

	// expired entry was dropped by the lookup
	assert.Equal(t, 0, s.Len())
}

func TestRevokeUser(t *testing.T) {
	s := NewSessions(time.Hour)
	t1, _, err := s.Create("admin")
	require.NoError(t, err)
	t2, _, err := s.Create("admin")
	require.NoError(t, err)
	t3, _, err := s.Create("bob")
	require.NoError(t, err)

	s.RevokeUser("admin")
	_, ok := s.Lookup(t1)
	assert.False(t, ok)
	_, ok = s.Lookup(t2)
	assert.False(t, ok)
	_, ok = s.Lookup(t3)
	assert.True(t, ok)
}
