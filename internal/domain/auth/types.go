package auth

// Package auth contains domain-level types for sessions, administrative elevation,
// and cross-context synchronization. It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Session is the live proof of authentication for one subject.
// It is a value: the session store replaces it wholesale and never mutates it in place.
type Session struct {
	SubjectID string     `json:"subject_id"`
	Email     string     `json:"email"`
	Username  string     `json:"username,omitempty"`
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IssuedAt  time.Time  `json:"issued_at"`
}

// Expired reports whether the session carries an expiry that has passed at now.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// NormalizedEmail returns the lowercase, trimmed email used for directory lookups.
func (s Session) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(s.Email))
}

// Role is the administrative role recorded on an AdminPrincipal.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
)

// AdminPrincipal is a read-only projection of an administrative directory record.
// It grants elevation only while IsActive is true.
type AdminPrincipal struct {
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// LookupOutcome tags the result of an elevation check.
type LookupOutcome int

const (
	LookupNotFound LookupOutcome = iota
	LookupFound
	LookupError
)

// AdminLookup is the tagged result of fetching an AdminPrincipal.
// Exactly one of Principal (Found) or Err (Error) is meaningful.
type AdminLookup struct {
	Outcome   LookupOutcome
	Principal AdminPrincipal
	Err       error
}

// Found builds a Found lookup.
func Found(p AdminPrincipal) AdminLookup {
	return AdminLookup{Outcome: LookupFound, Principal: p}
}

// NotFound builds a NotFound lookup.
func NotFound() AdminLookup {
	return AdminLookup{Outcome: LookupNotFound}
}

// LookupFailed builds an Error lookup.
func LookupFailed(err error) AdminLookup {
	return AdminLookup{Outcome: LookupError, Err: err}
}

// AuthStatus is the computed authentication state of a context. It is never persisted.
type AuthStatus int

const (
	StatusUnknown AuthStatus = iota
	StatusUnauthenticated
	StatusAuthenticated
	StatusAuthenticatedAdmin
)

func (s AuthStatus) String() string {
	switch s {
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAuthenticatedAdmin:
		return "authenticated_admin"
	default:
		return "unknown"
	}
}

// IsAuthenticated reports whether the status represents a live session.
func (s AuthStatus) IsAuthenticated() bool {
	return s == StatusAuthenticated || s == StatusAuthenticatedAdmin
}

// MarshalText encodes the status using its string form.
func (s AuthStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// LoginState is the persisted login-state flag.
type LoginState string

const (
	LoginStateLoggedIn  LoginState = "logged-in"
	LoginStateLoggedOut LoginState = "logged-out"
)

// SignalKind identifies the direction of a SyncSignal.
type SignalKind string

const (
	SignalLogin  SignalKind = "login"
	SignalLogout SignalKind = "logout"
)

// SyncSignal is a transient login/logout notification exchanged between contexts.
// Receivers must treat every signal as idempotent.
type SyncSignal struct {
	Kind            SignalKind `json:"kind"`
	OriginTimestamp time.Time  `json:"origin_timestamp"`
	Origin          string     `json:"origin,omitempty"`
	SourceID        string     `json:"source_id,omitempty"`
}

// PeerState is the child context's shared login-state flag as observed by the host.
type PeerState struct {
	State     LoginState `json:"state"`
	ChangedAt time.Time  `json:"changed_at"`
	Source    string     `json:"source,omitempty"`
}

// LoggedOut reports whether the peer has flagged itself as logged out.
func (p PeerState) LoggedOut() bool { return p.State == LoginStateLoggedOut }
