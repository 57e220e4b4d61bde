package service

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/observability/metrics"
	"github.com/target/sitegate/internal/observability/statsd"
	"github.com/target/sitegate/internal/ports"
	"golang.org/x/sync/singleflight"
)

// DefaultWatchdogTimeout bounds how long the resolver may sit at StatusUnknown.
const DefaultWatchdogTimeout = 10 * time.Second

const touchLastLoginTimeout = 5 * time.Second

// Recoverer performs the forced session reset for an invalid refresh credential.
type Recoverer interface {
	Recover(ctx context.Context, cause error) error
}

// StatusListener observes status transitions.
type StatusListener func(prev, next domainauth.AuthStatus)

// ResolverConfig holds resolver tunables.
type ResolverConfig struct {
	WatchdogTimeout time.Duration
	Now             func() time.Time
}

// StatusResolverOptions groups dependencies for StatusResolver.
type StatusResolverOptions struct {
	Sessions  *SessionStore         // Required
	Probe     ports.SessionProbe    // Required: live session lookup
	Directory ports.AdminDirectory  // Required: elevation check
	Recovery  Recoverer             // Optional: invoked on TokenRecoveryRequired
	Config    ResolverConfig
	Logger    *slog.Logger
	Metrics   statsd.Sink
}

// StatusResolver owns the AuthStatus state machine.
//
// Concurrent Resolve calls for the same session generation share one backend
// round trip. Every session store write bumps the generation, and results
// computed for an older generation are dropped. ForceLoggedOut latches the
// status at Unauthenticated until the next local session Set or a login
// released through ReleaseLatch.
type StatusResolver struct {
	sessions  *SessionStore
	probe     ports.SessionProbe
	directory ports.AdminDirectory
	recovery  Recoverer
	watchdog  time.Duration
	now       func() time.Time
	logger    *slog.Logger
	metrics   statsd.Sink

	group   singleflight.Group
	unwatch func()
	bg      sync.WaitGroup

	mu           sync.Mutex
	status       domainauth.AuthStatus
	principal    *domainauth.AdminPrincipal
	generation   uint64
	latched      bool
	elevationErr error
	listeners    []statusListenerEntry
	nextID       int
}

type statusListenerEntry struct {
	id int
	fn StatusListener
}

// NewStatusResolver constructs a resolver subscribed to the session store.
func NewStatusResolver(opts StatusResolverOptions) *StatusResolver {
	if opts.Sessions == nil || opts.Probe == nil || opts.Directory == nil {
		panic("StatusResolver requires Sessions, Probe and Directory")
	}
	watchdog := opts.Config.WatchdogTimeout
	if watchdog <= 0 {
		watchdog = DefaultWatchdogTimeout
	}
	now := opts.Config.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &StatusResolver{
		sessions:  opts.Sessions,
		probe:     opts.Probe,
		directory: opts.Directory,
		recovery:  opts.Recovery,
		watchdog:  watchdog,
		now:       now,
		logger:    logger.With("component", "status_resolver"),
		metrics:   opts.Metrics,
		status:    domainauth.StatusUnknown,
	}
	r.unwatch = opts.Sessions.Subscribe(r.onSessionEvent)
	return r
}

// SetRecovery installs the recovery policy after construction.
func (r *StatusResolver) SetRecovery(rec Recoverer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recovery = rec
}

// Close detaches from the session store and waits for background work.
func (r *StatusResolver) Close() {
	r.unwatch()
	r.bg.Wait()
}

// Status returns the last settled status.
func (r *StatusResolver) Status() domainauth.AuthStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Principal returns a copy of the cached admin principal, or nil.
func (r *StatusResolver) Principal() *domainauth.AdminPrincipal {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.principal == nil {
		return nil
	}
	p := *r.principal
	return &p
}

// LastElevationError returns the error from the most recent failed admin lookup.
func (r *StatusResolver) LastElevationError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elevationErr
}

// Subscribe registers fn for status transitions and returns a function that removes it.
func (r *StatusResolver) Subscribe(fn StatusListener) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners = append(r.listeners, statusListenerEntry{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for i, l := range r.listeners {
				if l.id == id {
					r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Resolve recomputes the status against the identity backend and returns the settled value.
// If ctx ends first, the current status is returned and the shared resolve keeps running.
func (r *StatusResolver) Resolve(ctx context.Context) domainauth.AuthStatus {
	r.mu.Lock()
	gen := r.generation
	r.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	ch := r.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		return r.resolve(detached, gen), nil
	})
	select {
	case res := <-ch:
		return res.Val.(domainauth.AuthStatus)
	case <-ctx.Done():
		return r.Status()
	}
}

// ForceLoggedOut settles Unauthenticated and holds it until the next session Set.
// In-flight resolves started before the call cannot overwrite it.
func (r *StatusResolver) ForceLoggedOut(ctx context.Context, reason string) {
	r.mu.Lock()
	r.latched = true
	r.generation++
	r.logger.DebugContext(ctx, "logout latched", "reason", reason, "generation", r.generation)
	t := r.swapLocked(domainauth.StatusUnauthenticated, nil)
	r.mu.Unlock()
	r.notify(ctx, t, time.Time{})
}

// ReleaseLatch lifts a logout latch for a login that landed outside this
// resolver's session store, such as another host instance sharing the storage.
// Resolves started while latched are superseded. It reports whether a latch was held.
func (r *StatusResolver) ReleaseLatch(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.latched {
		return false
	}
	r.latched = false
	r.generation++
	r.logger.DebugContext(ctx, "logout latch released", "generation", r.generation)
	return true
}

// ResetForRecovery drops the cached principal and settles Unauthenticated.
func (r *StatusResolver) ResetForRecovery(ctx context.Context) {
	r.mu.Lock()
	r.generation++
	r.elevationErr = nil
	t := r.swapLocked(domainauth.StatusUnauthenticated, nil)
	r.mu.Unlock()
	r.notify(ctx, t, time.Time{})
}

func (r *StatusResolver) onSessionEvent(ev SessionEvent) {
	ctx := context.Background()
	r.mu.Lock()
	r.generation++
	if ev.Kind == SessionSet {
		r.latched = false
	}
	if ev.Kind == SessionCleared {
		t := r.swapLocked(domainauth.StatusUnauthenticated, nil)
		r.mu.Unlock()
		r.notify(ctx, t, time.Time{})
		return
	}
	r.mu.Unlock()
	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		r.Resolve(ctx)
	}()
}

// resolve runs one pass of the transition algorithm for generation gen.
func (r *StatusResolver) resolve(ctx context.Context, gen uint64) domainauth.AuthStatus {
	started := r.now()
	timer := time.AfterFunc(r.watchdog, func() { r.watchdogExpired(gen) })
	defer timer.Stop()

	unauthenticated := func() domainauth.AuthStatus {
		return r.settle(ctx, gen, domainauth.StatusUnauthenticated, nil, started)
	}

	stored, err := r.sessions.Get(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "read stored session failed", "error", err)
		return unauthenticated()
	}
	if stored == nil {
		return unauthenticated()
	}

	live, err := r.probe.FetchSession(ctx, stored.Token)
	if err != nil {
		if domainauth.IsRecoveryRequired(err) {
			r.recover(ctx, err)
			return unauthenticated()
		}
		r.logger.WarnContext(ctx, "session probe failed", "error", err)
		return unauthenticated()
	}
	if live == nil {
		return unauthenticated()
	}

	email := live.NormalizedEmail()
	if email == "" {
		email = stored.NormalizedEmail()
	}
	lookup := r.directory.FindActiveByEmail(ctx, email)
	metrics.EmitElevation(r.metrics, lookup)
	r.mu.Lock()
	r.elevationErr = lookup.Err
	r.mu.Unlock()

	switch lookup.Outcome {
	case domainauth.LookupFound:
		p := lookup.Principal
		status := r.settle(ctx, gen, domainauth.StatusAuthenticatedAdmin, &p, started)
		r.touchLastLogin(ctx, email)
		return status
	case domainauth.LookupError:
		r.logger.WarnContext(ctx, "admin lookup failed, continuing as non-admin", "error", lookup.Err)
		return r.settle(ctx, gen, domainauth.StatusAuthenticated, nil, started)
	default:
		return r.settle(ctx, gen, domainauth.StatusAuthenticated, nil, started)
	}
}

func (r *StatusResolver) recover(ctx context.Context, cause error) {
	r.mu.Lock()
	rec := r.recovery
	r.mu.Unlock()
	if rec == nil {
		r.logger.WarnContext(ctx, "refresh credential invalid but no recovery policy configured", "error", cause)
		return
	}
	if err := rec.Recover(ctx, cause); err != nil {
		r.logger.ErrorContext(ctx, "session recovery failed", "error", err)
	}
}

// settle applies a resolve result unless a newer generation superseded it.
func (r *StatusResolver) settle(
	ctx context.Context,
	gen uint64,
	status domainauth.AuthStatus,
	principal *domainauth.AdminPrincipal,
	started time.Time,
) domainauth.AuthStatus {
	r.mu.Lock()
	if gen != r.generation {
		current := r.status
		r.mu.Unlock()
		r.logger.DebugContext(ctx, "discarding superseded resolve", "generation", gen, "result", status.String())
		return current
	}
	if r.latched {
		status, principal = domainauth.StatusUnauthenticated, nil
	}
	t := r.swapLocked(status, principal)
	r.mu.Unlock()
	r.notify(ctx, t, started)
	return status
}

// transition is a status change to announce once the lock is released.
type transition struct {
	prev, next domainauth.AuthStatus
	listeners  []statusListenerEntry
}

// swapLocked stores status and principal. The caller holds r.mu, so the write
// happens in the same critical section as the caller's checks.
func (r *StatusResolver) swapLocked(status domainauth.AuthStatus, principal *domainauth.AdminPrincipal) transition {
	t := transition{prev: r.status, next: status}
	r.status = status
	r.principal = principal
	if t.prev != t.next {
		t.listeners = append(t.listeners, r.listeners...)
	}
	return t
}

// notify logs, counts and fans out a transition. It must run without r.mu held.
func (r *StatusResolver) notify(ctx context.Context, t transition, started time.Time) {
	if t.prev == t.next {
		return
	}
	var took time.Duration
	if !started.IsZero() {
		took = r.now().Sub(started)
	}
	r.logger.InfoContext(ctx, "auth status changed", "from", t.prev.String(), "to", t.next.String())
	metrics.EmitTransition(r.metrics, t.prev, t.next, took)
	for _, l := range t.listeners {
		l.fn(t.prev, t.next)
	}
}

func (r *StatusResolver) watchdogExpired(gen uint64) {
	r.mu.Lock()
	if r.status != domainauth.StatusUnknown || r.generation != gen {
		r.mu.Unlock()
		return
	}
	t := r.swapLocked(domainauth.StatusUnauthenticated, nil)
	r.mu.Unlock()

	ctx := context.Background()
	r.logger.WarnContext(ctx, "resolve watchdog expired", "timeout", r.watchdog)
	if r.metrics != nil {
		r.metrics.Count(metrics.WatchdogFired, 1, nil)
	}
	r.notify(ctx, t, time.Time{})
}

// touchLastLogin records the elevation in the background; its outcome never affects status.
func (r *StatusResolver) touchLastLogin(ctx context.Context, email string) {
	at := r.now().UTC()
	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), touchLastLoginTimeout)
		defer cancel()
		if err := r.directory.TouchLastLogin(tctx, email, at); err != nil {
			r.logger.WarnContext(tctx, "update admin last login failed", "email", email, "error", err)
		}
	}()
}
