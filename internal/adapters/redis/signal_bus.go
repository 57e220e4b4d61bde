package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/ports"
)

// DefaultSignalChannel is the pub/sub channel carrying sync signals.
const DefaultSignalChannel = "sitegate:sync"

var _ ports.SignalBus = (*SignalBus)(nil)

// SignalBus publishes SyncSignals over Redis pub/sub.
type SignalBus struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

// NewSignalBus creates a bus on channel, defaulting to DefaultSignalChannel.
func NewSignalBus(client redis.UniversalClient, channel string, logger *slog.Logger) *SignalBus {
	if channel == "" {
		channel = DefaultSignalChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SignalBus{client: client, channel: channel, logger: logger.With("component", "signal_bus")}
}

func (b *SignalBus) Publish(ctx context.Context, sig domainauth.SyncSignal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe delivers signals to fn until ctx is done. Undecodable payloads are skipped.
func (b *SignalBus) Subscribe(ctx context.Context, fn func(domainauth.SyncSignal)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() {
		if err := sub.Close(); err != nil {
			b.logger.DebugContext(ctx, "close subscription", "error", err)
		}
	}()

	// Wait for the subscription to be confirmed so no publish after return is missed.
	if _, err := sub.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var sig domainauth.SyncSignal
			if err := json.Unmarshal([]byte(msg.Payload), &sig); err != nil {
				b.logger.WarnContext(ctx, "discarding malformed sync signal", "error", err)
				continue
			}
			fn(sig)
		}
	}
}
