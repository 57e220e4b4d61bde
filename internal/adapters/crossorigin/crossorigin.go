// Package crossorigin carries sync traffic between the portal and the host over HTTP.
package crossorigin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/ports"
	"github.com/target/sitegate/internal/service"
)

// Paths served by the host and portal for cross-context sync.
const (
	MessagesPath  = "/sync/messages"
	PeerStatePath = "/portal/state"
)

const defaultTimeout = 3 * time.Second

// ErrTargetOriginMismatch is returned when a post names an origin other than the configured host.
var ErrTargetOriginMismatch = errors.New("target origin does not match configured host")

var (
	_ ports.HostNotifier    = (*Poster)(nil)
	_ ports.PeerStateReader = (*StateClient)(nil)
)

// PosterConfig configures a Poster.
type PosterConfig struct {
	// HostURL is the host's base URL; its origin is the only permitted target.
	HostURL string
	// SelfOrigin is sent as the Origin header so the host can check its allow-list.
	SelfOrigin string
	// Secret signs each message body; empty sends unsigned messages.
	Secret     []byte
	HTTPClient *http.Client
}

// Poster posts SyncMessages from the portal to the host.
type Poster struct {
	endpoint string
	target   string
	self     string
	secret   []byte
	client   *http.Client
}

// NewPoster creates a Poster.
func NewPoster(cfg PosterConfig) (*Poster, error) {
	base, err := parseBase(cfg.HostURL)
	if err != nil {
		return nil, fmt.Errorf("host url: %w", err)
	}
	self, err := service.NormalizeOrigin(cfg.SelfOrigin)
	if err != nil {
		return nil, fmt.Errorf("self origin: %w", err)
	}
	target, err := service.NormalizeOrigin(base.Scheme + "://" + base.Host)
	if err != nil {
		return nil, fmt.Errorf("host origin: %w", err)
	}
	return &Poster{
		endpoint: base.JoinPath(MessagesPath).String(),
		target:   target,
		self:     self,
		secret:   cfg.Secret,
		client:   clientOrDefault(cfg.HTTPClient),
	}, nil
}

// PostMessage posts msg to the configured host.
func (p *Poster) PostMessage(ctx context.Context, msg ports.SyncMessage) error {
	return p.PostTo(ctx, p.target, msg)
}

// PostTo posts msg only if targetOrigin is the configured host origin.
func (p *Poster) PostTo(ctx context.Context, targetOrigin string, msg ports.SyncMessage) error {
	if o, err := service.NormalizeOrigin(targetOrigin); err != nil || o != p.target {
		return fmt.Errorf("%w: %q", ErrTargetOriginMismatch, targetOrigin)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal sync message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", p.self)
	if len(p.secret) > 0 {
		req.Header.Set(service.SignatureHeader, service.SignMessage(p.secret, payload))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("post sync message: %w", err)
	}
	defer drain(resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("post sync message: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// StateClient reads the portal's login-state flag for the host poller.
type StateClient struct {
	endpoint string
	client   *http.Client
}

// NewStateClient creates a StateClient for the portal at portalURL.
func NewStateClient(portalURL string, client *http.Client) (*StateClient, error) {
	base, err := parseBase(portalURL)
	if err != nil {
		return nil, fmt.Errorf("portal url: %w", err)
	}
	return &StateClient{
		endpoint: base.JoinPath(PeerStatePath).String(),
		client:   clientOrDefault(client),
	}, nil
}

func (c *StateClient) ReadPeerState(ctx context.Context) (domainauth.PeerState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return domainauth.PeerState{}, fmt.Errorf("build peer state request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return domainauth.PeerState{}, fmt.Errorf("read peer state: %w", err)
	}
	defer drain(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return domainauth.PeerState{}, fmt.Errorf("read peer state: unexpected status %d", resp.StatusCode)
	}
	var ps domainauth.PeerState
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&ps); err != nil {
		return domainauth.PeerState{}, fmt.Errorf("decode peer state: %w", err)
	}
	return ps, nil
}

func parseBase(raw string) (*url.URL, error) {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "/")
	if raw == "" {
		return nil, errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("url must be absolute http(s): %q", raw)
	}
	return u, nil
}

func clientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultTimeout}
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
