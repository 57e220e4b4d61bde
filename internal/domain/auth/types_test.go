package auth

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_Expired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, Session{}.Expired(now), "no expiry never expires")
	assert.True(t, Session{ExpiresAt: &past}.Expired(now))
	assert.True(t, Session{ExpiresAt: &now}.Expired(now))
	assert.False(t, Session{ExpiresAt: &future}.Expired(now))
}

func TestSession_NormalizedEmail(t *testing.T) {
	assert.Equal(t, "a@b.com", Session{Email: "  A@B.com "}.NormalizedEmail())
}

func TestAuthStatus_String(t *testing.T) {
	tests := map[AuthStatus]string{
		StatusUnknown:            "unknown",
		StatusUnauthenticated:    "unauthenticated",
		StatusAuthenticated:      "authenticated",
		StatusAuthenticatedAdmin: "authenticated_admin",
		AuthStatus(42):           "unknown",
	}
	for status, want := range tests {
		assert.Equal(t, want, status.String())
	}
	assert.True(t, StatusAuthenticatedAdmin.IsAuthenticated())
	assert.False(t, StatusUnknown.IsAuthenticated())
}

func TestAdminLookupConstructors(t *testing.T) {
	p := AdminPrincipal{Email: "a@b.com", Role: RoleOwner, IsActive: true}
	assert.Equal(t, LookupFound, Found(p).Outcome)
	assert.Equal(t, p, Found(p).Principal)
	assert.Equal(t, LookupNotFound, NotFound().Outcome)

	boom := errors.New("boom")
	failed := LookupFailed(boom)
	assert.Equal(t, LookupError, failed.Outcome)
	assert.ErrorIs(t, failed.Err, boom)
}

func TestError_KindMatching(t *testing.T) {
	err := fmt.Errorf("login: %w", &Error{Kind: KindCredential, Message: "invalid credentials", Status: 401})

	assert.ErrorIs(t, err, ErrCredential)
	assert.NotErrorIs(t, err, ErrAuthorization)
	assert.True(t, IsCredential(err))
	assert.True(t, IsUserFacing(err))
	assert.Equal(t, KindCredential, KindOf(err))
	assert.Equal(t, "login: invalid credentials", err.Error())
}

func TestError_RecoveryIsNotUserFacing(t *testing.T) {
	err := &Error{Kind: KindTokenRecoveryRequired, Code: "refresh_token_not_found"}

	assert.True(t, IsRecoveryRequired(err))
	assert.False(t, IsUserFacing(err))
	assert.Equal(t, "token_recovery_required", err.Error())
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := &Error{Kind: KindTransientNetwork, Message: "session probe failed", Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsTransientNetwork(err))
	assert.Contains(t, err.Error(), "connection refused")
}
