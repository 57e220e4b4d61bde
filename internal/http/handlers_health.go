package httpx

import (
	"context"
	"io"
	"net/http"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	healthResponse = `{"status":"ok"}`
	readyTimeout   = 2 * time.Second
)

// healthHandler returns a simple 200 OK status for liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = io.WriteString(w, healthResponse)
}

// Check is a named readiness probe, e.g. a Redis or Postgres ping.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

type readyResponse struct {
	Status string            `json:"status"`
	Failed map[string]string `json:"failed,omitempty"`
}

// readyHandler runs every check concurrently and reports 503 if any fails.
func readyHandler(checks []Check) http.HandlerFunc {
	checks = slices.Clone(checks)
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		errs := make([]error, len(checks))
		var g errgroup.Group
		for i, c := range checks {
			g.Go(func() error {
				errs[i] = c.Fn(ctx)
				return nil
			})
		}
		_ = g.Wait()

		resp := readyResponse{Status: "ok"}
		for i, err := range errs {
			if err == nil {
				continue
			}
			if resp.Failed == nil {
				resp.Failed = make(map[string]string)
			}
			resp.Failed[checks[i].Name] = err.Error()
		}
		if len(resp.Failed) > 0 {
			resp.Status = "unavailable"
			WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
