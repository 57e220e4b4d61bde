package httpx

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/target/sitegate/internal/ports"
	"github.com/target/sitegate/internal/service"
)

// MessageHandler applies messages posted by child contexts.
type MessageHandler interface {
	HandleMessage(ctx context.Context, origin string, msg ports.SyncMessage) bool
}

// OriginChecker reports whether an origin may post sync messages.
type OriginChecker interface {
	Allowed(origin string) bool
}

// SyncHandlers receives cross-context messages on the host.
//
// The Origin header is only as trustworthy as the sender: browsers set it, but
// any other HTTP client can forge it. Deployments that expose /sync/messages
// beyond the browser path set Secret so only holders of the shared key can post.
type SyncHandlers struct {
	Bridge  MessageHandler
	Origins OriginChecker
	// Secret, when non-empty, requires a valid service.SignatureHeader on every message.
	Secret []byte
}

// Preflight answers CORS preflight for allow-listed origins only.
// OPTIONS /sync/messages.
func (h *SyncHandlers) Preflight(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if h.Origins.Allowed(origin) {
		setCORS(w, origin)
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+service.SignatureHeader)
		w.Header().Set("Access-Control-Max-Age", "600")
	}
	w.WriteHeader(http.StatusNoContent)
}

// Message hands a posted message to the bridge. The response is 204 whether or
// not the message was accepted so senders learn nothing about the allow-list.
// POST /sync/messages.
func (h *SyncHandlers) Message(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if len(h.Secret) > 0 {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
		if err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
			return
		}
		if !service.VerifyMessageSignature(h.Secret, body, r.Header.Get(service.SignatureHeader)) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}
	var msg ports.SyncMessage
	if !DecodeJSON(w, r, &msg) {
		return
	}
	if h.Bridge.HandleMessage(r.Context(), origin, msg) {
		setCORS(w, origin)
	}
	w.WriteHeader(http.StatusNoContent)
}

func setCORS(w http.ResponseWriter, origin string) {
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Add("Vary", "Origin")
}
