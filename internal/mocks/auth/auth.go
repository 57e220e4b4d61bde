package auth

// Package auth contains simple hand-written test doubles for session ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"
	"time"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.Storage          = (*MemoryStorage)(nil)
	_ ports.CredentialClient = (*StubCredentialClient)(nil)
	_ ports.SessionProbe     = (*StubSessionProbe)(nil)
	_ ports.AdminDirectory   = (*MemoryAdminDirectory)(nil)
	_ ports.SignalBus        = (*MemorySignalBus)(nil)
	_ ports.HostNotifier     = (*RecordingNotifier)(nil)
	_ ports.PeerStateReader  = (*StaticPeerState)(nil)
)

// MemoryStorage is an in-memory origin-scoped Storage.
// ApplyErr, when set, fails every Apply without writing.
type MemoryStorage struct {
	mu       sync.Mutex
	data     map[string]string
	ApplyErr error
	applies  int
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string)}
}

func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStorage) Apply(_ context.Context, w ports.StorageWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ApplyErr != nil {
		return m.ApplyErr
	}
	m.applies++
	if m.data == nil {
		m.data = make(map[string]string)
	}
	for _, k := range w.Delete {
		delete(m.data, k)
	}
	maps.Copy(m.data, w.Set)
	return nil
}

// Snapshot returns a copy of the stored keys.
func (m *MemoryStorage) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.data)
}

// Applies returns the number of successful Apply calls.
func (m *MemoryStorage) Applies() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applies
}

// StubCredentialClient returns canned results and records logout calls.
type StubCredentialClient struct {
	LoginFunc    func(ctx context.Context, in ports.LoginInput) (domainauth.Session, error)
	ResetFunc    func(ctx context.Context, email string) error
	ValidateFunc func(ctx context.Context, token string) bool

	mu          sync.Mutex
	logoutCalls []string
}

func (s *StubCredentialClient) Login(ctx context.Context, in ports.LoginInput) (domainauth.Session, error) {
	if s.LoginFunc != nil {
		return s.LoginFunc(ctx, in)
	}
	return domainauth.Session{
		SubjectID: "user-1",
		Email:     in.Identifier,
		Token:     "token-" + strings.ToLower(in.Identifier),
		IssuedAt:  time.Now(),
	}, nil
}

func (s *StubCredentialClient) Logout(_ context.Context, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutCalls = append(s.logoutCalls, token)
}

func (s *StubCredentialClient) ResetPassword(ctx context.Context, email string) error {
	if s.ResetFunc != nil {
		return s.ResetFunc(ctx, email)
	}
	return nil
}

func (s *StubCredentialClient) ValidateToken(ctx context.Context, token string) bool {
	if s.ValidateFunc != nil {
		return s.ValidateFunc(ctx, token)
	}
	return token != ""
}

// LogoutCalls returns the tokens passed to Logout.
func (s *StubCredentialClient) LogoutCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.logoutCalls...)
}

// StubSessionProbe answers FetchSession from a function, or echoes a session for any non-empty token.
type StubSessionProbe struct {
	FetchFunc func(ctx context.Context, token string) (*domainauth.Session, error)

	mu    sync.Mutex
	calls int
}

func (s *StubSessionProbe) FetchSession(ctx context.Context, token string) (*domainauth.Session, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.FetchFunc != nil {
		return s.FetchFunc(ctx, token)
	}
	if token == "" {
		return nil, nil
	}
	return &domainauth.Session{Token: token, Email: "user@example.com"}, nil
}

// Calls returns how many probes were issued.
func (s *StubSessionProbe) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// MemoryAdminDirectory holds principals in memory.
// LookupErr forces every lookup to fail; TouchErr forces TouchLastLogin to fail.
type MemoryAdminDirectory struct {
	mu         sync.Mutex
	principals map[string]domainauth.AdminPrincipal
	LookupErr  error
	TouchErr   error
	touched    chan string
}

// NewMemoryAdminDirectory creates a directory seeded with principals.
func NewMemoryAdminDirectory(principals ...domainauth.AdminPrincipal) *MemoryAdminDirectory {
	d := &MemoryAdminDirectory{
		principals: make(map[string]domainauth.AdminPrincipal),
		touched:    make(chan string, 16),
	}
	for _, p := range principals {
		d.principals[strings.ToLower(p.Email)] = p
	}
	return d
}

func (d *MemoryAdminDirectory) FindActiveByEmail(_ context.Context, email string) domainauth.AdminLookup {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.LookupErr != nil {
		return domainauth.LookupFailed(d.LookupErr)
	}
	p, ok := d.principals[strings.ToLower(email)]
	if !ok || !p.IsActive {
		return domainauth.NotFound()
	}
	return domainauth.Found(p)
}

func (d *MemoryAdminDirectory) TouchLastLogin(_ context.Context, email string, at time.Time) error {
	d.mu.Lock()
	defer func() {
		d.mu.Unlock()
		select {
		case d.touched <- email:
		default:
		}
	}()
	if d.TouchErr != nil {
		return d.TouchErr
	}
	key := strings.ToLower(email)
	p, ok := d.principals[key]
	if !ok {
		return errors.New("principal not found")
	}
	p.LastLoginAt = &at
	d.principals[key] = p
	return nil
}

// Touched delivers the email of every TouchLastLogin attempt.
func (d *MemoryAdminDirectory) Touched() <-chan string { return d.touched }

// Get returns the stored principal for email.
func (d *MemoryAdminDirectory) Get(email string) (domainauth.AdminPrincipal, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.principals[strings.ToLower(email)]
	return p, ok
}

// MemorySignalBus fans signals out to every subscriber in-process.
type MemorySignalBus struct {
	mu        sync.Mutex
	subs      map[int]chan domainauth.SyncSignal
	next      int
	published []domainauth.SyncSignal
}

// NewMemorySignalBus creates an empty bus.
func NewMemorySignalBus() *MemorySignalBus {
	return &MemorySignalBus{subs: make(map[int]chan domainauth.SyncSignal)}
}

func (b *MemorySignalBus) Publish(_ context.Context, sig domainauth.SyncSignal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, sig)
	for _, ch := range b.subs {
		select {
		case ch <- sig:
		default:
		}
	}
	return nil
}

func (b *MemorySignalBus) Subscribe(ctx context.Context, fn func(domainauth.SyncSignal)) error {
	ch := make(chan domainauth.SyncSignal, 32)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-ch:
			fn(sig)
		}
	}
}

// Published returns every signal published so far.
func (b *MemorySignalBus) Published() []domainauth.SyncSignal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domainauth.SyncSignal(nil), b.published...)
}

// Subscribers returns the number of active subscriptions.
func (b *MemorySignalBus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// RecordingNotifier records posted messages; Err fails every post.
type RecordingNotifier struct {
	mu   sync.Mutex
	msgs []ports.SyncMessage
	Err  error
}

func (r *RecordingNotifier) PostMessage(_ context.Context, msg ports.SyncMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.Err
}

// Messages returns posted messages.
func (r *RecordingNotifier) Messages() []ports.SyncMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.SyncMessage(nil), r.msgs...)
}

// StaticPeerState serves a settable PeerState.
type StaticPeerState struct {
	mu    sync.Mutex
	state domainauth.PeerState
	Err   error
}

func (s *StaticPeerState) ReadPeerState(context.Context) (domainauth.PeerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.Err
}

// Set replaces the served state.
func (s *StaticPeerState) Set(state domainauth.PeerState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}
