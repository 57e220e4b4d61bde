package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/ports"
)

// Storage keys owned by the session store on the host origin.
const (
	KeySessionToken = "session.token"
	KeySessionUser  = "session.user"
	KeySessionState = "session.state"
)

// SessionEventKind distinguishes store writes.
type SessionEventKind int

const (
	SessionSet SessionEventKind = iota + 1
	SessionCleared
)

func (k SessionEventKind) String() string {
	if k == SessionSet {
		return "set"
	}
	return "cleared"
}

// SessionEvent is delivered to listeners after a write has landed.
type SessionEvent struct {
	Kind    SessionEventKind
	Session *domainauth.Session // nil for SessionCleared
	At      time.Time
}

// SessionListener observes session store writes.
type SessionListener func(SessionEvent)

// ErrSessionTokenRequired is returned by Set for a session without a token.
var ErrSessionTokenRequired = errors.New("session token is required")

// SessionStoreOptions groups dependencies for SessionStore.
type SessionStoreOptions struct {
	Storage ports.Storage // Required: origin-scoped storage medium
	Logger  *slog.Logger  // Optional: structured logger
	Now     func() time.Time
}

// SessionStore is the only writer of the session keys.
// Writes go through a single atomic storage write; listeners run afterwards,
// synchronously, in subscription order.
type SessionStore struct {
	storage ports.Storage
	logger  *slog.Logger
	now     func() time.Time

	writeMu sync.Mutex

	mu        sync.Mutex
	listeners []listenerEntry
	nextID    int
}

type listenerEntry struct {
	id int
	fn SessionListener
}

// userProjection is the cached identity stored under KeySessionUser.
type userProjection struct {
	SubjectID string     `json:"subject_id,omitempty"`
	Email     string     `json:"email"`
	Username  string     `json:"username,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IssuedAt  time.Time  `json:"issued_at"`
}

// NewSessionStore constructs a new SessionStore.
func NewSessionStore(opts SessionStoreOptions) *SessionStore {
	if opts.Storage == nil {
		panic("SessionStore requires Storage")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SessionStore{
		storage: opts.Storage,
		logger:  logger.With("component", "session_store"),
		now:     now,
	}
}

// Get returns the persisted session, or nil when none is stored.
// An unreadable user projection still yields the token so callers can probe the backend.
func (s *SessionStore) Get(ctx context.Context) (*domainauth.Session, error) {
	token, ok, err := s.storage.Get(ctx, KeySessionToken)
	if err != nil {
		return nil, fmt.Errorf("read session token: %w", err)
	}
	if !ok || token == "" {
		return nil, nil
	}

	sess := &domainauth.Session{Token: token}
	raw, ok, err := s.storage.Get(ctx, KeySessionUser)
	if err != nil {
		return nil, fmt.Errorf("read session user: %w", err)
	}
	if !ok {
		return sess, nil
	}
	var u userProjection
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		s.logger.WarnContext(ctx, "ignoring unreadable session user projection", "error", err)
		return sess, nil
	}
	sess.SubjectID = u.SubjectID
	sess.Email = u.Email
	sess.Username = u.Username
	sess.ExpiresAt = u.ExpiresAt
	sess.IssuedAt = u.IssuedAt
	return sess, nil
}

// Set replaces the stored session wholesale and marks the origin logged in.
func (s *SessionStore) Set(ctx context.Context, sess domainauth.Session) error {
	if strings.TrimSpace(sess.Token) == "" {
		return ErrSessionTokenRequired
	}
	payload, err := json.Marshal(userProjection{
		SubjectID: sess.SubjectID,
		Email:     sess.Email,
		Username:  sess.Username,
		ExpiresAt: sess.ExpiresAt,
		IssuedAt:  sess.IssuedAt,
	})
	if err != nil {
		return fmt.Errorf("encode session user: %w", err)
	}

	s.writeMu.Lock()
	err = s.storage.Apply(ctx, ports.StorageWrite{Set: map[string]string{
		KeySessionToken: sess.Token,
		KeySessionUser:  string(payload),
		KeySessionState: string(domainauth.LoginStateLoggedIn),
	}})
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}

	stored := sess
	s.notify(ctx, SessionEvent{Kind: SessionSet, Session: &stored, At: s.now().UTC()})
	return nil
}

// Clear removes the token and user projection and marks the origin logged out,
// all in one storage write. Clearing an empty store still notifies listeners.
func (s *SessionStore) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	err := s.storage.Apply(ctx, ports.StorageWrite{
		Delete: []string{KeySessionToken, KeySessionUser},
		Set:    map[string]string{KeySessionState: string(domainauth.LoginStateLoggedOut)},
	})
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	s.notify(ctx, SessionEvent{Kind: SessionCleared, At: s.now().UTC()})
	return nil
}

// LoginState reads the login-state flag. A missing flag reads as logged out.
func (s *SessionStore) LoginState(ctx context.Context) (domainauth.LoginState, error) {
	v, ok, err := s.storage.Get(ctx, KeySessionState)
	if err != nil {
		return "", fmt.Errorf("read login state: %w", err)
	}
	if !ok || domainauth.LoginState(v) != domainauth.LoginStateLoggedIn {
		return domainauth.LoginStateLoggedOut, nil
	}
	return domainauth.LoginStateLoggedIn, nil
}

// Subscribe registers fn and returns a function that removes it.
func (s *SessionStore) Subscribe(fn SessionListener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *SessionStore) notify(ctx context.Context, ev SessionEvent) {
	s.mu.Lock()
	listeners := make([]listenerEntry, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		s.invoke(ctx, l.fn, ev)
	}
}

func (s *SessionStore) invoke(ctx context.Context, fn SessionListener, ev SessionEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "session listener panicked", "event", ev.Kind.String(), "panic", r)
		}
	}()
	fn(ev)
}
