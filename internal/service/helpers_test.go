package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	domainauth "github.com/target/sitegate/internal/domain/auth"
	mockauth "github.com/target/sitegate/internal/mocks/auth"
	"github.com/target/sitegate/internal/observability/statsd"
)

// harness wires the host-side components over in-memory doubles.
type harness struct {
	storage   *mockauth.MemoryStorage
	store     *SessionStore
	probe     *mockauth.StubSessionProbe
	directory *mockauth.MemoryAdminDirectory
	resolver  *StatusResolver
	recovery  *RecoveryPolicy
	metrics   *statsd.Recorder
}

func newHarness(t *testing.T, principals ...domainauth.AdminPrincipal) *harness {
	t.Helper()
	return newHarnessOn(t, mockauth.NewMemoryStorage(), principals...)
}

// newHarnessOn builds a harness over storage, which several harnesses may share
// to stand in for host instances behind one Redis.
func newHarnessOn(t *testing.T, storage *mockauth.MemoryStorage, principals ...domainauth.AdminPrincipal) *harness {
	t.Helper()
	h := &harness{
		storage:   storage,
		probe:     &mockauth.StubSessionProbe{},
		directory: mockauth.NewMemoryAdminDirectory(principals...),
		metrics:   &statsd.Recorder{},
	}
	h.store = NewSessionStore(SessionStoreOptions{Storage: h.storage})
	h.recovery = NewRecoveryPolicy(RecoveryPolicyOptions{Sessions: h.store, Metrics: h.metrics})
	h.resolver = NewStatusResolver(StatusResolverOptions{
		Sessions:  h.store,
		Probe:     h.probe,
		Directory: h.directory,
		Recovery:  h.recovery,
		Config:    ResolverConfig{WatchdogTimeout: time.Second},
		Metrics:   h.metrics,
	})
	h.recovery.Register(h.resolver)
	t.Cleanup(h.resolver.Close)
	return h
}

func (h *harness) login(t *testing.T, email string) {
	t.Helper()
	require.NoError(t, h.store.Set(context.Background(), domainauth.Session{
		SubjectID: "u1",
		Email:     email,
		Token:     "t1",
		IssuedAt:  time.Now().UTC(),
	}))
}

func ownerPrincipal(email string) domainauth.AdminPrincipal {
	return domainauth.AdminPrincipal{Email: email, Role: domainauth.RoleOwner, IsActive: true}
}
