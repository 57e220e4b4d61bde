package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/observability/metrics"
	"github.com/target/sitegate/internal/observability/statsd"
	"github.com/target/sitegate/internal/ports"
	"golang.org/x/sync/errgroup"
)

// Message types carried by ports.SyncMessage.
const (
	MessageLogout = "logout"
	MessageLogin  = "login"
)

// DefaultPollInterval is how often the host polls the child's login-state flag.
const DefaultPollInterval = time.Second

const publishTimeout = 2 * time.Second

// HostBridgeConfig holds host bridge settings.
type HostBridgeConfig struct {
	// SelfOrigin is the host origin stamped on published signals.
	SelfOrigin   string
	PollInterval time.Duration
	// SourceID identifies this context on the signal bus; generated when empty.
	SourceID string
}

// HostBridgeOptions groups dependencies for HostBridge.
type HostBridgeOptions struct {
	Sessions *SessionStore           // Required
	Resolver *StatusResolver         // Required
	Origins  *OriginAllowList        // Required: origins allowed to post messages
	Bus      ports.SignalBus         // Optional: cross-instance broadcast
	Peer     ports.PeerStateReader   // Optional: polling fallback
	Config   HostBridgeConfig
	Logger   *slog.Logger
	Metrics  statsd.Sink
}

// HostBridge keeps the host's login state consistent with child contexts.
// Logout is dominant: once accepted it latches the resolver before clearing
// the store, and repeated or stale logout signals are no-ops.
type HostBridge struct {
	sessions *SessionStore
	resolver *StatusResolver
	origins  *OriginAllowList
	bus      ports.SignalBus
	peer     ports.PeerStateReader
	cfg      HostBridgeConfig
	logger   *slog.Logger
	metrics  statsd.Sink
	unwatch  func()

	mu           sync.Mutex
	lastLoginAt  time.Time
	lastLogoutAt time.Time
	lastPeerAt   time.Time
	// peerZeroSeen marks an undated peer logout flag as applied until the peer logs in again.
	peerZeroSeen bool
}

// NewHostBridge constructs a HostBridge and subscribes it to the session store.
func NewHostBridge(opts HostBridgeOptions) *HostBridge {
	if opts.Sessions == nil || opts.Resolver == nil || opts.Origins == nil {
		panic("HostBridge requires Sessions, Resolver and Origins")
	}
	cfg := opts.Config
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.SourceID == "" {
		cfg.SourceID = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &HostBridge{
		sessions: opts.Sessions,
		resolver: opts.Resolver,
		origins:  opts.Origins,
		bus:      opts.Bus,
		peer:     opts.Peer,
		cfg:      cfg,
		logger:   logger.With("component", "host_bridge", "source_id", cfg.SourceID),
		metrics:  opts.Metrics,
	}
	b.unwatch = opts.Sessions.Subscribe(b.onSessionEvent)
	return b
}

// Close detaches the bridge from the session store.
func (b *HostBridge) Close() { b.unwatch() }

// SourceID returns this context's identifier on the signal bus.
func (b *HostBridge) SourceID() string { return b.cfg.SourceID }

// HandleMessage processes a message posted by a child context.
// Messages from origins outside the allow-list are dropped and report false.
func (b *HostBridge) HandleMessage(ctx context.Context, origin string, msg ports.SyncMessage) bool {
	if !b.origins.Allowed(origin) {
		b.logger.DebugContext(ctx, "dropping sync message from disallowed origin", "origin", origin)
		b.count("message", "rejected")
		return false
	}
	switch msg.Type {
	case MessageLogout:
		b.count("message", MessageLogout)
		b.applyLogout(ctx, msg.Timestamp, "message")
	case MessageLogin:
		b.count("message", MessageLogin)
		b.resolver.Resolve(ctx)
	default:
		b.logger.DebugContext(ctx, "ignoring unknown sync message", "type", msg.Type)
		return false
	}
	return true
}

// Run consumes the signal bus and polls the peer state until ctx is done.
func (b *HostBridge) Run(ctx context.Context) error {
	if sess, err := b.sessions.Get(ctx); err == nil && sess != nil {
		b.mu.Lock()
		b.lastLoginAt = sess.IssuedAt
		b.mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	if b.bus != nil {
		g.Go(func() error { return b.consumeBus(gctx) })
	}
	if b.peer != nil {
		g.Go(func() error { return b.pollLoop(gctx) })
	}
	b.logger.InfoContext(ctx, "host sync bridge started", "poll_interval", b.cfg.PollInterval,
		"bus", b.bus != nil, "poll", b.peer != nil)
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// consumeBus keeps a bus subscription alive, resubscribing with backoff after failures.
func (b *HostBridge) consumeBus(ctx context.Context) error {
	backoff := b.cfg.PollInterval
	for {
		err := b.bus.Subscribe(ctx, func(sig domainauth.SyncSignal) { b.onSignal(ctx, sig) })
		if ctx.Err() != nil {
			return nil
		}
		b.logger.WarnContext(ctx, "signal bus subscription ended, retrying", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}

func (b *HostBridge) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.PollOnce(ctx)
		}
	}
}

// PollOnce reads the peer's login-state flag and applies a logout it has not seen yet.
func (b *HostBridge) PollOnce(ctx context.Context) bool {
	if b.peer == nil {
		return false
	}
	state, err := b.peer.ReadPeerState(ctx)
	if err != nil {
		b.logger.DebugContext(ctx, "peer state poll failed", "error", err)
		return false
	}
	b.mu.Lock()
	if !state.LoggedOut() {
		b.peerZeroSeen = false
		b.mu.Unlock()
		return false
	}
	var seen bool
	if state.ChangedAt.IsZero() {
		seen = b.peerZeroSeen
		b.peerZeroSeen = true
	} else {
		seen = !state.ChangedAt.After(b.lastPeerAt)
		if !seen {
			b.lastPeerAt = state.ChangedAt
		}
	}
	b.mu.Unlock()
	if seen {
		return false
	}
	b.count("poll", MessageLogout)
	return b.applyLogout(ctx, state.ChangedAt, "poll")
}

func (b *HostBridge) onSignal(ctx context.Context, sig domainauth.SyncSignal) {
	if sig.SourceID == b.cfg.SourceID {
		return
	}
	if sig.Origin != "" && sig.Origin != b.cfg.SelfOrigin && !b.origins.Allowed(sig.Origin) {
		b.logger.DebugContext(ctx, "dropping signal from disallowed origin", "origin", sig.Origin)
		return
	}
	switch sig.Kind {
	case domainauth.SignalLogout:
		b.count("signal", string(sig.Kind))
		b.applyLogout(ctx, sig.OriginTimestamp, "signal")
	case domainauth.SignalLogin:
		b.count("signal", string(sig.Kind))
		b.mu.Lock()
		if sig.OriginTimestamp.After(b.lastLoginAt) {
			b.lastLoginAt = sig.OriginTimestamp
		}
		newer := sig.OriginTimestamp.After(b.lastLogoutAt)
		b.mu.Unlock()
		// A login on another instance only reaches the shared storage, so the
		// local session store never sees a Set that would lift the latch.
		if newer {
			b.resolver.ReleaseLatch(ctx)
		}
		b.resolver.Resolve(ctx)
	}
}

// applyLogout latches the resolver and clears the store. It is idempotent and
// ignores signals older than the last observed login or the stored session.
func (b *HostBridge) applyLogout(ctx context.Context, at time.Time, via string) bool {
	b.mu.Lock()
	stale := !at.IsZero() && at.Before(b.lastLoginAt)
	b.mu.Unlock()
	if !stale && !at.IsZero() {
		// The shared storage may already hold a session issued after this logout.
		if sess, err := b.sessions.Get(ctx); err == nil && sess != nil && sess.IssuedAt.After(at) {
			stale = true
		}
	}
	if stale {
		b.logger.DebugContext(ctx, "ignoring stale logout", "via", via, "signal_at", at)
		return false
	}

	b.mu.Lock()
	b.markLogoutLocked(at)
	b.mu.Unlock()
	b.resolver.ForceLoggedOut(ctx, via)

	sess, err := b.sessions.Get(ctx)
	if err == nil && sess == nil {
		if state, serr := b.sessions.LoginState(ctx); serr == nil && state == domainauth.LoginStateLoggedOut {
			return true
		}
	}
	if cerr := b.sessions.Clear(ctx); cerr != nil {
		b.logger.ErrorContext(ctx, "clear session on sync logout failed", "via", via, "error", cerr)
		return true
	}
	b.logger.InfoContext(ctx, "applied cross-context logout", "via", via)
	return true
}

func (b *HostBridge) onSessionEvent(ev SessionEvent) {
	sig := domainauth.SyncSignal{
		OriginTimestamp: ev.At,
		Origin:          b.cfg.SelfOrigin,
		SourceID:        b.cfg.SourceID,
	}
	switch ev.Kind {
	case SessionSet:
		b.mu.Lock()
		b.lastLoginAt = ev.At
		b.mu.Unlock()
		sig.Kind = domainauth.SignalLogin
	case SessionCleared:
		b.mu.Lock()
		b.markLogoutLocked(ev.At)
		b.mu.Unlock()
		sig.Kind = domainauth.SignalLogout
	}
	if b.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.bus.Publish(ctx, sig); err != nil {
		b.logger.WarnContext(ctx, "publish sync signal failed", "kind", sig.Kind, "error", err)
	}
}

// markLogoutLocked records the newest applied logout; undated logouts count as now.
func (b *HostBridge) markLogoutLocked(at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	if at.After(b.lastLogoutAt) {
		b.lastLogoutAt = at
	}
}

func (b *HostBridge) count(via, kind string) {
	if b.metrics != nil {
		b.metrics.Count(metrics.SyncSignal, 1, map[string]string{"via": via, "kind": kind})
	}
}
