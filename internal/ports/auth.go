package ports

// Package ports defines interfaces (hexagonal ports) for session and synchronization behavior.
// Implementations live in internal/adapters and internal/data; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/target/sitegate/internal/domain/auth"
)

// LoginInput carries the credentials for a login exchange.
type LoginInput struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password"   validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

// CredentialClient talks to the identity backend.
// It never touches the session store; callers commit what it returns.
type CredentialClient interface {
	Login(ctx context.Context, in LoginInput) (domainauth.Session, error)
	// Logout notifies the backend best-effort and cannot fail.
	Logout(ctx context.Context, token string)
	ResetPassword(ctx context.Context, email string) error
	// ValidateToken reports false for both invalid tokens and failed checks.
	ValidateToken(ctx context.Context, token string) bool
}

// SessionProbe queries the identity backend for the live session behind a token.
type SessionProbe interface {
	// FetchSession returns nil, nil when the backend reports no live session.
	FetchSession(ctx context.Context, token string) (*domainauth.Session, error)
}

// StorageWrite is an atomic multi-key write: every Set and Delete lands together.
type StorageWrite struct {
	Set    map[string]string
	Delete []string
}

// Storage is a key/value medium scoped to a single origin.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Apply(ctx context.Context, w StorageWrite) error
}

// AdminDirectory resolves administrative principals by email.
type AdminDirectory interface {
	// FindActiveByEmail only returns principals with IsActive = true.
	FindActiveByEmail(ctx context.Context, email string) domainauth.AdminLookup
	TouchLastLogin(ctx context.Context, email string, at time.Time) error
}

// SignalBus carries SyncSignals between contexts. Delivery is at-least-once and unordered.
type SignalBus interface {
	Publish(ctx context.Context, sig domainauth.SyncSignal) error
	// Subscribe blocks, invoking fn for each signal until ctx is done.
	Subscribe(ctx context.Context, fn func(domainauth.SyncSignal)) error
}

// SyncMessage is the structured message a child context posts to its host.
type SyncMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// HostNotifier posts SyncMessages from a child context to the allow-listed host origin.
type HostNotifier interface {
	PostMessage(ctx context.Context, msg SyncMessage) error
}

// PeerStateReader reads the child context's shared login-state flag.
type PeerStateReader interface {
	ReadPeerState(ctx context.Context) (domainauth.PeerState, error)
}
