package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/testutil"
)

func TestSignalBus_PublishSubscribe(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	bus := NewSignalBus(client, "sitegate:test:sync", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan domainauth.SyncSignal, 4)
	done := make(chan error, 1)
	go func() {
		done <- bus.Subscribe(ctx, func(sig domainauth.SyncSignal) { got <- sig })
	}()

	sent := domainauth.SyncSignal{
		Kind:            domainauth.SignalLogout,
		OriginTimestamp: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Origin:          "https://portal.example.com",
		SourceID:        "ctx-1",
	}

	// Retry publishing until the subscriber is confirmed and receives it.
	require.Eventually(t, func() bool {
		if err := bus.Publish(context.Background(), sent); err != nil {
			return false
		}
		select {
		case sig := <-got:
			return sig.Kind == sent.Kind && sig.SourceID == sent.SourceID &&
				sig.OriginTimestamp.Equal(sent.OriginTimestamp)
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("subscriber did not stop after cancel")
	}
}

func TestSignalBus_SkipsMalformedPayloads(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	bus := NewSignalBus(client, "sitegate:test:malformed", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan domainauth.SyncSignal, 4)
	go func() { _ = bus.Subscribe(ctx, func(sig domainauth.SyncSignal) { got <- sig }) }()

	require.Eventually(t, func() bool {
		_ = client.Publish(context.Background(), "sitegate:test:malformed", "not-json").Err()
		_ = bus.Publish(context.Background(), domainauth.SyncSignal{Kind: domainauth.SignalLogin})
		select {
		case sig := <-got:
			return sig.Kind == domainauth.SignalLogin
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}

func TestNewSignalBus_Defaults(t *testing.T) {
	bus := NewSignalBus(nil, "", nil)
	assert.Equal(t, DefaultSignalChannel, bus.channel)
}
