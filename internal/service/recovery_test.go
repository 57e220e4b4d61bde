package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/sitegate/internal/domain/auth"
	mockauth "github.com/target/sitegate/internal/mocks/auth"
	"github.com/target/sitegate/internal/observability/metrics"
)

type countingTarget struct {
	mu    sync.Mutex
	reset int
}

func (c *countingTarget) ResetForRecovery(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset++
}

func TestRecoveryPolicy_ClearsOnceUnderConcurrency(t *testing.T) {
	storage := mockauth.NewMemoryStorage()
	store := NewSessionStore(SessionStoreOptions{Storage: storage})
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, domainauth.Session{Email: "a@b.com", Token: "t1"}))

	var clears int
	var mu sync.Mutex
	store.Subscribe(func(ev SessionEvent) {
		if ev.Kind == SessionCleared {
			mu.Lock()
			clears++
			mu.Unlock()
		}
	})

	target := &countingTarget{}
	p := NewRecoveryPolicy(RecoveryPolicyOptions{Sessions: store})
	p.Register(target)

	cause := domainauth.NewError(domainauth.KindTokenRecoveryRequired, "refresh token not found")
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- p.Recover(ctx, cause)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	sess, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Equal(t, 1, clears)
	assert.Equal(t, 2, target.reset)
}

func TestRecoveryPolicy_NeverCallsBackendLogout(t *testing.T) {
	h := newHarness(t, ownerPrincipal("a@b.com"))
	creds := &mockauth.StubCredentialClient{}
	_ = NewAuthService(AuthServiceOptions{Credentials: creds, Sessions: h.store, Resolver: h.resolver})
	h.login(t, "a@b.com")
	require.Equal(t, domainauth.StatusAuthenticatedAdmin, h.resolver.Resolve(context.Background()))

	require.NoError(t, h.recovery.Recover(context.Background(), errors.New("invalid refresh token")))

	assert.Empty(t, creds.LogoutCalls())
	assert.Equal(t, domainauth.StatusUnauthenticated, h.resolver.Status())
	assert.Nil(t, h.resolver.Principal())
	assert.NotEmpty(t, h.metrics.Samples(metrics.RecoveryRun))
}

func TestRecoveryPolicy_StorageFailureIsReported(t *testing.T) {
	storage := mockauth.NewMemoryStorage()
	store := NewSessionStore(SessionStoreOptions{Storage: storage})
	require.NoError(t, store.Set(context.Background(), domainauth.Session{Token: "t1"}))
	storage.ApplyErr = errors.New("read-only")

	target := &countingTarget{}
	p := NewRecoveryPolicy(RecoveryPolicyOptions{Sessions: store})
	p.Register(target)

	require.Error(t, p.Recover(context.Background(), nil))
	assert.Equal(t, 1, target.reset)
}
