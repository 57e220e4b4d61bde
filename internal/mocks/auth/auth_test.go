package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/ports"
)

func TestMemoryStorage_ApplyIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.Apply(ctx, ports.StorageWrite{Set: map[string]string{"a": "1", "b": "2"}}))
	require.NoError(t, s.Apply(ctx, ports.StorageWrite{Set: map[string]string{"c": "3"}, Delete: []string{"a", "b"}}))
	assert.Equal(t, map[string]string{"c": "3"}, s.Snapshot())

	s.ApplyErr = errors.New("unavailable")
	require.Error(t, s.Apply(ctx, ports.StorageWrite{Delete: []string{"c"}}))
	v, ok, err := s.Get(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "3", v)
	assert.Equal(t, 2, s.Applies())
}

func TestMemoryAdminDirectory_OnlyActivePrincipals(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryAdminDirectory(
		domainauth.AdminPrincipal{Email: "Owner@Example.com", Role: domainauth.RoleOwner, IsActive: true},
		domainauth.AdminPrincipal{Email: "gone@example.com", Role: domainauth.RoleAdmin, IsActive: false},
	)

	assert.Equal(t, domainauth.LookupFound, d.FindActiveByEmail(ctx, "owner@example.com").Outcome)
	assert.Equal(t, domainauth.LookupNotFound, d.FindActiveByEmail(ctx, "gone@example.com").Outcome)
	assert.Equal(t, domainauth.LookupNotFound, d.FindActiveByEmail(ctx, "nobody@example.com").Outcome)

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, d.TouchLastLogin(ctx, "owner@example.com", at))
	p, ok := d.Get("owner@example.com")
	require.True(t, ok)
	require.NotNil(t, p.LastLoginAt)
	assert.Equal(t, at, *p.LastLoginAt)
	assert.Equal(t, "owner@example.com", <-d.Touched())

	d.LookupErr = errors.New("directory down")
	lookup := d.FindActiveByEmail(ctx, "owner@example.com")
	assert.Equal(t, domainauth.LookupError, lookup.Outcome)
	assert.EqualError(t, lookup.Err, "directory down")
}

func TestMemorySignalBus_FanOut(t *testing.T) {
	bus := NewMemorySignalBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan domainauth.SyncSignal, 1)
	done := make(chan error, 1)
	go func() { done <- bus.Subscribe(ctx, func(s domainauth.SyncSignal) { got <- s }) }()
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	sig := domainauth.SyncSignal{Kind: domainauth.SignalLogout, OriginTimestamp: time.Now()}
	require.NoError(t, bus.Publish(ctx, sig))
	assert.Equal(t, sig, <-got)
	assert.Len(t, bus.Published(), 1)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 0, bus.Subscribers())
}

func TestRecordingNotifier(t *testing.T) {
	n := &RecordingNotifier{}
	require.NoError(t, n.PostMessage(context.Background(), ports.SyncMessage{Type: "logout"}))
	n.Err = errors.New("blocked")
	require.Error(t, n.PostMessage(context.Background(), ports.SyncMessage{Type: "logout"}))
	assert.Len(t, n.Messages(), 2)
}
