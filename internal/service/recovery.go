package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/target/sitegate/internal/observability/metrics"
	"github.com/target/sitegate/internal/observability/statsd"
)

// RecoveryTarget holds derived auth state that a forced recovery must reset.
type RecoveryTarget interface {
	ResetForRecovery(ctx context.Context)
}

// RecoveryPolicyOptions groups dependencies for RecoveryPolicy.
type RecoveryPolicyOptions struct {
	Sessions *SessionStore // Required
	Logger   *slog.Logger
	Metrics  statsd.Sink
}

// RecoveryPolicy performs the forced reset used when the backend reports the
// refresh credential as invalid. It never calls the backend logout endpoint.
type RecoveryPolicy struct {
	sessions *SessionStore
	logger   *slog.Logger
	metrics  statsd.Sink

	mu      sync.Mutex
	targets []RecoveryTarget
}

// NewRecoveryPolicy constructs a new RecoveryPolicy.
func NewRecoveryPolicy(opts RecoveryPolicyOptions) *RecoveryPolicy {
	if opts.Sessions == nil {
		panic("RecoveryPolicy requires Sessions")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RecoveryPolicy{
		sessions: opts.Sessions,
		logger:   logger.With("component", "recovery_policy"),
		metrics:  opts.Metrics,
	}
}

// Register adds a target reset on every recovery.
func (p *RecoveryPolicy) Register(t RecoveryTarget) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.targets = append(p.targets, t)
}

// Recover clears the session store if it still holds a session and resets every target.
// Calls are serialized; a call that finds the store already empty skips the clear.
func (p *RecoveryPolicy) Recover(ctx context.Context, cause error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs error
	cleared := false
	sess, err := p.sessions.Get(ctx)
	if err != nil {
		errs = errors.Join(errs, fmt.Errorf("read session: %w", err))
	}
	if err != nil || sess != nil {
		if cerr := p.sessions.Clear(ctx); cerr != nil {
			errs = errors.Join(errs, cerr)
		} else {
			cleared = true
		}
	}
	for _, t := range p.targets {
		t.ResetForRecovery(ctx)
	}

	p.logger.InfoContext(ctx, "forced session recovery", "cause", cause, "cleared", cleared)
	metrics.EmitResult(p.metrics, metrics.RecoveryRun, errs, map[string]string{"cleared": strconv.FormatBool(cleared)})
	return errs
}
