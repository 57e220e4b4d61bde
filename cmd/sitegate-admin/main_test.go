package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/sitegate/internal/data"
	domainauth "github.com/target/sitegate/internal/domain/auth"
	apperrors "github.com/target/sitegate/internal/errors"
	"github.com/target/sitegate/internal/migrate"
)

type fakeStore struct {
	mu     sync.Mutex
	admins map[string]domainauth.AdminPrincipal
}

func newFakeStore(admins ...domainauth.AdminPrincipal) *fakeStore {
	s := &fakeStore{admins: map[string]domainauth.AdminPrincipal{}}
	for _, a := range admins {
		s.admins[a.Email] = a
	}
	return s
}

func (s *fakeStore) List(_ context.Context, limit, offset int) ([]domainauth.AdminPrincipal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domainauth.AdminPrincipal
	for _, a := range s.admins {
		out = append(out, a)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeStore) Create(_ context.Context, req data.CreateAdminRequest) (domainauth.AdminPrincipal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, ok := s.admins[email]; ok {
		return domainauth.AdminPrincipal{}, apperrors.Conflictf("duplicate %s", email)
	}
	p := domainauth.AdminPrincipal{Email: email, Role: req.Role, IsActive: true}
	s.admins[email] = p
	return p, nil
}

func (s *fakeStore) SetActive(_ context.Context, email string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.admins[email]
	if !ok {
		return apperrors.NotFoundf("admin principal %s not found", email)
	}
	p.IsActive = active
	s.admins[email] = p
	return nil
}

func (s *fakeStore) get(email string) domainauth.AdminPrincipal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admins[email]
}

func runCLI(t *testing.T, store adminStore, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newAdminApp(&out, slog.New(slog.NewTextHandler(io.Discard, nil)))
	app.withDB = func(context.Context, func(*sql.DB) error) error {
		return errors.New("no database in tests")
	}
	app.withStore = func(_ context.Context, fn func(adminStore) error) error {
		return fn(store)
	}
	root := newRootCmd(app)
	root.SetArgs(args)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAdminsAdd(t *testing.T) {
	store := newFakeStore()

	out, err := runCLI(t, store, "admins", "add", " Ada@Example.com ", "--role", "owner")
	require.NoError(t, err)
	assert.Equal(t, "added ada@example.com (owner)\n", out)
	assert.Equal(t, domainauth.RoleOwner, store.get("ada@example.com").Role)

	_, err = runCLI(t, store, "admins", "add", "ada@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = runCLI(t, store, "admins", "add", "bob@example.com", "--role", "superuser")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")

	_, err = runCLI(t, store, "admins", "add")
	require.Error(t, err)
}

func TestAdminsDisableEnable(t *testing.T) {
	store := newFakeStore(domainauth.AdminPrincipal{Email: "ada@example.com", Role: domainauth.RoleAdmin, IsActive: true})

	out, err := runCLI(t, store, "admins", "disable", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "disabled ada@example.com\n", out)
	assert.False(t, store.get("ada@example.com").IsActive)

	out, err = runCLI(t, store, "admins", "enable", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "enabled ada@example.com\n", out)
	assert.True(t, store.get("ada@example.com").IsActive)

	_, err = runCLI(t, store, "admins", "disable", "ghost@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no admin named ghost@example.com")
}

func TestAdminsList(t *testing.T) {
	last := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	store := newFakeStore(domainauth.AdminPrincipal{
		Email: "ada@example.com", Role: domainauth.RoleOwner, IsActive: true, LastLoginAt: &last,
	})

	out, err := runCLI(t, store, "admins", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"EMAIL", "ROLE", "ACTIVE", "LAST", "LOGIN"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"ada@example.com", "owner", "true", "2024-03-01T09:30:00Z"}, strings.Fields(lines[1]))
}

func TestMigrate_PropagatesConnectionError(t *testing.T) {
	_, err := runCLI(t, newFakeStore(), "migrate", "--timeout", "1s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database in tests")

	_, err = runCLI(t, newFakeStore(), "migrate", "status")
	require.Error(t, err)
}

func TestPrintMigrations(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	var out bytes.Buffer
	require.NoError(t, printMigrations(&out, []migrate.Migration{
		{Version: "0001_admin_users", AppliedAt: &at},
		{Version: "0002_next"},
	}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"0001_admin_users", "2024-01-02T03:04:05Z"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"0002_next", "pending"}, strings.Fields(lines[2]))
}

func TestParseRole(t *testing.T) {
	r, err := parseRole(" Editor ")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleEditor, r)

	_, err = parseRole("")
	require.Error(t, err)
}
