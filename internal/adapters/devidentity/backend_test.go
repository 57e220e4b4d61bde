package devidentity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestBackend(t *testing.T, c *clock) *Backend {
	t.Helper()
	users, err := ParseUsers("alice@example.com|alice|pw1;bob@example.com||pw2|disabled")
	require.NoError(t, err)
	b, err := NewBackend(Config{
		Users:       users,
		Secret:      []byte("test-secret"),
		SessionTTL:  time.Hour,
		MaxFailures: 3,
		Lockout:     time.Minute,
		BcryptCost:  bcrypt.MinCost,
		Now:         c.now,
	})
	require.NoError(t, err)
	return b
}

func TestParseUsers(t *testing.T) {
	users, err := ParseUsers(" a@b.com|a|x ; c@d.com||y|DISABLED ;")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, UserSpec{Email: "a@b.com", Username: "a", Password: "x"}, users[0])
	assert.True(t, users[1].Disabled)

	for _, bad := range []string{"a@b.com|x", "a@b.com|a|x|gone", "|a|x", "a@b.com|a|"} {
		_, err := ParseUsers(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewBackend_RequiresSecret(t *testing.T) {
	_, err := NewBackend(Config{})
	require.Error(t, err)
}

func TestBackend_LoginAndSession(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	b := newTestBackend(t, c)
	ctx := context.Background()

	res, err := b.Login(ctx, "ALICE@example.com", "pw1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "alice@example.com", res.User.Email)

	byName, err := b.Login(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.NotEqual(t, res.Token, byName.Token)

	info, err := b.Session(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", info.Email)
	assert.Equal(t, res.User.ID, info.SubjectID)

	user, ok := b.Validate(ctx, res.Token)
	assert.True(t, ok)
	assert.Equal(t, "alice", user.Username)
}

func TestBackend_LoginFailures(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	b := newTestBackend(t, c)
	ctx := context.Background()

	_, err := b.Login(ctx, "", "pw1")
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = b.Login(ctx, "nobody@example.com", "pw1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = b.Login(ctx, "bob@example.com", "pw2")
	require.ErrorIs(t, err, ErrAccountDisabled)
}

func TestBackend_RateLimit(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	b := newTestBackend(t, c)
	ctx := context.Background()

	for range 3 {
		_, err := b.Login(ctx, "alice@example.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := b.Login(ctx, "alice@example.com", "pw1")
	require.ErrorIs(t, err, ErrRateLimited)

	c.t = c.t.Add(2 * time.Minute)
	_, err = b.Login(ctx, "alice@example.com", "pw1")
	require.NoError(t, err)
}

func TestBackend_LogoutRevokesSession(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	b := newTestBackend(t, c)
	ctx := context.Background()

	res, err := b.Login(ctx, "alice@example.com", "pw1")
	require.NoError(t, err)

	b.Logout(ctx, res.Token)
	b.Logout(ctx, res.Token)
	b.Logout(ctx, "garbage")

	_, err = b.Session(ctx, res.Token)
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, ok := b.Validate(ctx, res.Token)
	assert.False(t, ok)
}

func TestBackend_SessionExpiryAndDisable(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	b := newTestBackend(t, c)
	ctx := context.Background()

	res, err := b.Login(ctx, "alice@example.com", "pw1")
	require.NoError(t, err)

	require.True(t, b.SetDisabled("alice@example.com", true))
	_, err = b.Session(ctx, res.Token)
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.True(t, b.SetDisabled("alice@example.com", false))
	_, err = b.Session(ctx, res.Token)
	require.NoError(t, err)

	c.t = c.t.Add(2 * time.Hour)
	_, err = b.Session(ctx, res.Token)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestBackend_RejectsForeignTokens(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	b := newTestBackend(t, c)
	other, err := NewBackend(Config{
		Users:      []UserSpec{{Email: "alice@example.com", Password: "pw1"}},
		Secret:     []byte("other-secret"),
		BcryptCost: bcrypt.MinCost,
		Now:        c.now,
	})
	require.NoError(t, err)

	res, err := other.Login(context.Background(), "alice@example.com", "pw1")
	require.NoError(t, err)
	_, err = b.Session(context.Background(), res.Token)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestBackend_ResetPassword(t *testing.T) {
	c := &clock{t: time.Now()}
	b := newTestBackend(t, c)

	require.NoError(t, b.ResetPassword(context.Background(), "Alice@Example.com"))
	require.ErrorIs(t, b.ResetPassword(context.Background(), "nobody@example.com"), ErrUnknownAccount)
	assert.Equal(t, []string{"alice@example.com"}, b.Resets())
}
