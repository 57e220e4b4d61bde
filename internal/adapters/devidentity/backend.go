package devidentity

// Package devidentity is a local stand-in for the identity backend, used for development and tests.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Errors returned by Backend. The HTTP layer maps them to the identity contract's statuses.
var (
	ErrInvalidInput       = errors.New("identifier and password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrRateLimited        = errors.New("too many failed attempts")
	ErrUnknownAccount     = errors.New("no account for that email")
	ErrSessionNotFound    = errors.New("refresh token not found")
)

const (
	defaultSessionTTL  = 8 * time.Hour
	defaultMaxFailures = 5
	defaultLockout     = 5 * time.Minute
)

// Config controls the dev backend.
type Config struct {
	// Users are the accounts the backend accepts; see ParseUsers.
	Users []UserSpec
	// Secret signs session tokens. Required.
	Secret      []byte
	SessionTTL  time.Duration // default 8h
	MaxFailures int           // failed logins per identifier before 429; default 5
	Lockout     time.Duration // how long the 429 lasts; default 5m
	BcryptCost  int           // default bcrypt.DefaultCost
	Logger      *slog.Logger
	Now         func() time.Time
}

type account struct {
	id       string
	email    string
	username string
	hash     []byte
	disabled bool
}

type session struct {
	accountID string
	issuedAt  time.Time
	expiresAt time.Time
	revoked   bool
}

type failures struct {
	count int
	until time.Time
}

// User is the public projection of an account.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// SessionInfo describes a live session.
type SessionInfo struct {
	SubjectID string    `json:"subjectId"`
	Email     string    `json:"email"`
	Username  string    `json:"username,omitempty"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string
	User      User
	ExpiresAt time.Time
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Backend implements the identity contract in memory.
type Backend struct {
	secret      []byte
	ttl         time.Duration
	maxFailures int
	lockout     time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu       sync.Mutex
	byEmail  map[string]*account
	byName   map[string]*account
	byID     map[string]*account
	sessions map[string]*session
	failed   map[string]*failures
	resets   []string
}

// NewBackend hashes the configured passwords and returns a ready backend.
func NewBackend(cfg Config) (*Backend, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("dev identity: signing secret is required")
	}
	b := &Backend{
		secret:      cfg.Secret,
		ttl:         cfg.SessionTTL,
		maxFailures: cfg.MaxFailures,
		lockout:     cfg.Lockout,
		logger:      cfg.Logger,
		now:         cfg.Now,
		byEmail:     make(map[string]*account),
		byName:      make(map[string]*account),
		byID:        make(map[string]*account),
		sessions:    make(map[string]*session),
		failed:      make(map[string]*failures),
	}
	if b.ttl <= 0 {
		b.ttl = defaultSessionTTL
	}
	if b.maxFailures <= 0 {
		b.maxFailures = defaultMaxFailures
	}
	if b.lockout <= 0 {
		b.lockout = defaultLockout
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.logger = b.logger.With("component", "dev_identity")
	if b.now == nil {
		b.now = time.Now
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	for _, u := range cfg.Users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", u.Email, err)
		}
		a := &account{
			id:       uuid.NewString(),
			email:    strings.ToLower(u.Email),
			username: u.Username,
			hash:     hash,
			disabled: u.Disabled,
		}
		if _, dup := b.byEmail[a.email]; dup {
			return nil, fmt.Errorf("duplicate dev user %q", a.email)
		}
		b.byEmail[a.email] = a
		b.byID[a.id] = a
		if a.username != "" {
			b.byName[strings.ToLower(a.username)] = a
		}
	}
	return b, nil
}

// Login checks credentials and issues a signed session token.
func (b *Backend) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	key := strings.ToLower(strings.TrimSpace(identifier))
	if key == "" || password == "" {
		return LoginResult{}, ErrInvalidInput
	}
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()
	if f := b.failed[key]; f != nil && now.Before(f.until) {
		return LoginResult{}, ErrRateLimited
	}

	a := b.byEmail[key]
	if a == nil {
		a = b.byName[key]
	}
	if a == nil || bcrypt.CompareHashAndPassword(a.hash, []byte(password)) != nil {
		b.recordFailure(key, now)
		b.logger.InfoContext(ctx, "dev login rejected", "identifier", key)
		return LoginResult{}, ErrInvalidCredentials
	}
	if a.disabled {
		return LoginResult{}, ErrAccountDisabled
	}
	delete(b.failed, key)

	sid := uuid.NewString()
	s := &session{accountID: a.id, issuedAt: now, expiresAt: now.Add(b.ttl)}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: a.email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sid,
			Subject:   a.id,
			IssuedAt:  jwt.NewNumericDate(s.issuedAt),
			ExpiresAt: jwt.NewNumericDate(s.expiresAt),
		},
	}).SignedString(b.secret)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign token: %w", err)
	}
	b.sessions[sid] = s
	return LoginResult{Token: token, User: a.user(), ExpiresAt: s.expiresAt}, nil
}

func (b *Backend) recordFailure(key string, now time.Time) {
	f := b.failed[key]
	if f == nil || (!f.until.IsZero() && !now.Before(f.until)) {
		f = &failures{}
		b.failed[key] = f
	}
	f.count++
	if f.count >= b.maxFailures {
		f.until = now.Add(b.lockout)
	}
}

// Logout revokes the session behind token. Unknown tokens are ignored.
func (b *Backend) Logout(_ context.Context, token string) {
	c, err := b.parse(token)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if s := b.sessions[c.ID]; s != nil {
		s.revoked = true
	}
}

// ResetPassword records a reset request for a known account.
func (b *Backend) ResetPassword(ctx context.Context, email string) error {
	key := strings.ToLower(strings.TrimSpace(email))
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.byEmail[key]; !ok {
		return ErrUnknownAccount
	}
	b.resets = append(b.resets, key)
	b.logger.InfoContext(ctx, "dev password reset requested", "email", key)
	return nil
}

// Resets returns the emails that requested a password reset.
func (b *Backend) Resets() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.resets...)
}

// Session returns the live session behind token, or ErrSessionNotFound when it
// is unknown, revoked, expired or belongs to a disabled account.
func (b *Backend) Session(_ context.Context, token string) (SessionInfo, error) {
	c, err := b.parse(token)
	if err != nil {
		return SessionInfo{}, ErrSessionNotFound
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.sessions[c.ID]
	if s == nil || s.revoked || !b.now().Before(s.expiresAt) {
		return SessionInfo{}, ErrSessionNotFound
	}
	a := b.byID[s.accountID]
	if a == nil || a.disabled {
		return SessionInfo{}, ErrSessionNotFound
	}
	return SessionInfo{
		SubjectID: a.id,
		Email:     a.email,
		Username:  a.username,
		IssuedAt:  s.issuedAt,
		ExpiresAt: s.expiresAt,
	}, nil
}

// Validate reports the user behind token when its session is live.
func (b *Backend) Validate(ctx context.Context, token string) (User, bool) {
	info, err := b.Session(ctx, token)
	if err != nil {
		return User{}, false
	}
	return User{ID: info.SubjectID, Email: info.Email, Username: info.Username}, true
}

// SetDisabled toggles an account. Existing sessions stop validating while disabled.
func (b *Backend) SetDisabled(email string, disabled bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.byEmail[strings.ToLower(email)]
	if ok {
		a.disabled = disabled
	}
	return ok
}

func (b *Backend) parse(token string) (*claims, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) { return b.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(b.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return &c, nil
}

func (a *account) user() User {
	return User{ID: a.id, Email: a.email, Username: a.username}
}
