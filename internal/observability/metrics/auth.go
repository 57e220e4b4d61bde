package metrics

// Package metrics defines the metric names and tag sets emitted by the session layer.

import (
	"time"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	obserrors "github.com/target/sitegate/internal/observability/errors"
	"github.com/target/sitegate/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Metric names.
const (
	StatusTransition = "resolver.transition"
	ResolveDuration  = "resolver.duration"
	ElevationLookup  = "resolver.elevation"
	WatchdogFired    = "resolver.watchdog"
	RecoveryRun      = "recovery.run"
	SyncSignal       = "sync.signal"
	LoginAttempt     = "auth.login"
)

// EmitTransition records a status change and, when known, how long the resolve took.
func EmitTransition(sink statsd.Sink, from, to domainauth.AuthStatus, took time.Duration) {
	if sink == nil {
		return
	}
	tags := map[string]string{"from": from.String(), "to": to.String()}
	sink.Count(StatusTransition, 1, tags)
	if took > 0 {
		sink.Timing(ResolveDuration, took, map[string]string{"to": to.String()})
	}
}

// EmitElevation records the outcome of an admin directory lookup.
func EmitElevation(sink statsd.Sink, lookup domainauth.AdminLookup) {
	if sink == nil {
		return
	}
	tags := map[string]string{"outcome": lookupOutcome(lookup.Outcome)}
	if lookup.Outcome == domainauth.LookupError {
		if class := obserrors.Classify(lookup.Err); class != "" {
			tags["error_type"] = class
		}
	}
	sink.Count(ElevationLookup, 1, tags)
}

// EmitResult counts an operation outcome, tagging the error class on failure.
func EmitResult(sink statsd.Sink, name string, err error, extra map[string]string) {
	if sink == nil {
		return
	}
	tags := CloneTags(extra)
	if tags == nil {
		tags = make(map[string]string, 2)
	}
	tags["result"] = ResultSuccess
	if err != nil {
		tags["result"] = ResultError
		tags["error_type"] = obserrors.Classify(err)
	}
	sink.Count(name, 1, tags)
}

func lookupOutcome(o domainauth.LookupOutcome) string {
	switch o {
	case domainauth.LookupFound:
		return "found"
	case domainauth.LookupError:
		return "error"
	default:
		return "not_found"
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
