package identity

// Package identity provides the HTTP client for the identity backend's auth contract.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	domainauth "github.com/target/sitegate/internal/domain/auth"
	"github.com/target/sitegate/internal/ports"
	"golang.org/x/oauth2"
)

const maxBodyBytes = 1 << 20

var (
	_ ports.CredentialClient = (*Client)(nil)
	_ ports.SessionProbe     = (*Client)(nil)
)

// Config holds configuration for the identity client.
type Config struct {
	BaseURL string
	// Timeout bounds every request; defaults to 10s.
	Timeout    time.Duration
	HTTPClient *http.Client // Optional, built from Timeout when nil
	// ErrorCodePath is a JMESPath expression locating the error code in failure bodies.
	ErrorCodePath string
	// RecoveryCodes are error codes that require a forced session reset.
	RecoveryCodes []string
	Logger        *slog.Logger
	Now           func() time.Time
}

// Client implements the credential exchange and live-session probe against the identity backend.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	classifier *errorClassifier
	validate   *validator.Validate
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a new identity client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("identity base URL is required")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse identity base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("identity base URL must be http(s): %q", cfg.BaseURL)
	}

	classifier, err := newErrorClassifier(cfg.ErrorCodePath, cfg.RecoveryCodes)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		classifier: classifier,
		validate:   newValidator(),
		logger:     logger.With("component", "identity_client"),
		now:        now,
	}, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

type userPayload struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type loginResponse struct {
	Success   bool         `json:"success"`
	Token     string       `json:"token"`
	User      *userPayload `json:"user"`
	ExpiresAt *time.Time   `json:"expiresAt"`
	Message   string       `json:"message"`
}

// Login exchanges credentials for a session. It does not persist anything.
func (c *Client) Login(ctx context.Context, in ports.LoginInput) (domainauth.Session, error) {
	in.Identifier = strings.TrimSpace(in.Identifier)
	if err := c.validate.Struct(in); err != nil {
		return domainauth.Session{}, validationError(err)
	}

	status, body, err := c.do(ctx, request{method: http.MethodPost, path: "/auth/login", body: in})
	if err != nil {
		// An unreachable backend is never treated as a successful login.
		return domainauth.Session{}, &domainauth.Error{
			Kind:    domainauth.KindBackendUnavailable,
			Message: "identity backend unreachable",
			Cause:   err,
		}
	}
	if status/100 != 2 {
		return domainauth.Session{}, c.classifier.classify(c.classifier.parse(status, body))
	}

	var resp loginResponse
	if decodeErr := json.Unmarshal(body, &resp); decodeErr != nil {
		return domainauth.Session{}, &domainauth.Error{
			Kind:    domainauth.KindBackendUnavailable,
			Message: "identity backend returned a non-JSON response",
			Status:  status,
			Cause:   decodeErr,
		}
	}
	if !resp.Success {
		return domainauth.Session{}, &domainauth.Error{
			Kind:    domainauth.KindCredential,
			Message: orDefault(resp.Message, "invalid credentials"),
			Status:  status,
		}
	}
	if resp.Token == "" || resp.User == nil || (resp.User.Email == "" && resp.User.Username == "") {
		return domainauth.Session{}, malformed("login")
	}

	return domainauth.Session{
		SubjectID: resp.User.ID,
		Email:     resp.User.Email,
		Username:  resp.User.Username,
		Token:     resp.Token,
		ExpiresAt: resp.ExpiresAt,
		IssuedAt:  c.now().UTC(),
	}, nil
}

// Logout notifies the backend that token is being discarded. Failures are logged and swallowed.
func (c *Client) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	status, _, err := c.do(ctx, request{method: http.MethodPost, path: "/auth/logout", token: token})
	switch {
	case err != nil:
		c.logger.WarnContext(ctx, "backend logout failed", "error", err)
	case status/100 != 2:
		c.logger.WarnContext(ctx, "backend logout rejected", "status", status)
	}
}

type resetInput struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPassword requests a password reset email.
func (c *Client) ResetPassword(ctx context.Context, email string) error {
	in := resetInput{Email: strings.TrimSpace(email)}
	if err := c.validate.Struct(in); err != nil {
		return validationError(err)
	}

	status, body, err := c.do(ctx, request{method: http.MethodPost, path: "/auth/reset-password", body: in})
	if err != nil {
		return &domainauth.Error{
			Kind:    domainauth.KindTransientNetwork,
			Message: "identity backend unreachable",
			Cause:   err,
		}
	}
	if status/100 != 2 {
		return c.classifier.classify(c.classifier.parse(status, body))
	}
	return nil
}

type validateResponse struct {
	Valid bool `json:"valid"`
}

// ValidateToken reports whether the backend accepts token. Any failure counts as invalid.
func (c *Client) ValidateToken(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	status, body, err := c.do(ctx, request{method: http.MethodGet, path: "/auth/validate-token", token: token})
	if err != nil {
		c.logger.DebugContext(ctx, "token validation failed", "error", err)
		return false
	}
	if status != http.StatusOK {
		return false
	}
	var resp validateResponse
	if json.Unmarshal(body, &resp) != nil {
		return false
	}
	return resp.Valid
}

type sessionPayload struct {
	SubjectID string     `json:"subjectId"`
	Email     string     `json:"email"`
	Username  string     `json:"username"`
	ExpiresAt *time.Time `json:"expiresAt"`
	IssuedAt  time.Time  `json:"issuedAt"`
}

type sessionResponse struct {
	Session *sessionPayload `json:"session"`
}

// FetchSession asks the backend for the live session behind token.
// It returns nil, nil when the backend holds no session.
func (c *Client) FetchSession(ctx context.Context, token string) (*domainauth.Session, error) {
	if token == "" {
		return nil, nil
	}
	status, body, err := c.do(ctx, request{method: http.MethodGet, path: "/auth/session", token: token})
	if err != nil {
		return nil, &domainauth.Error{
			Kind:    domainauth.KindTransientNetwork,
			Message: "session probe failed",
			Cause:   err,
		}
	}

	if status/100 != 2 {
		f := c.classifier.parse(status, body)
		if c.classifier.recoveryRequired(f) {
			return nil, &domainauth.Error{
				Kind:    domainauth.KindTokenRecoveryRequired,
				Message: orDefault(f.message, "refresh token invalid"),
				Status:  status,
				Code:    f.code,
			}
		}
		if status == http.StatusUnauthorized {
			return nil, nil
		}
		return nil, c.classifier.classify(f)
	}

	var resp sessionResponse
	if decodeErr := json.Unmarshal(body, &resp); decodeErr != nil {
		return nil, malformed("session")
	}
	if resp.Session == nil {
		return nil, nil
	}
	return &domainauth.Session{
		SubjectID: resp.Session.SubjectID,
		Email:     resp.Session.Email,
		Username:  resp.Session.Username,
		Token:     token,
		ExpiresAt: resp.Session.ExpiresAt,
		IssuedAt:  resp.Session.IssuedAt,
	}, nil
}

type request struct {
	method string
	path   string
	token  string
	body   any
}

// do executes a request and returns the status and (bounded) body.
func (c *Client) do(ctx context.Context, r request) (int, []byte, error) {
	var reader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal %s body: %w", r.path, err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL.JoinPath(r.path)
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint.String(), reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build %s request: %w", r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.clientFor(ctx, r.token).Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.DebugContext(ctx, "close response body", "error", cerr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read %s response: %w", r.path, err)
	}
	return resp.StatusCode, body, nil
}

// clientFor returns an HTTP client that sends token as a Bearer credential.
func (c *Client) clientFor(ctx context.Context, token string) *http.Client {
	if token == "" {
		return c.httpClient
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	hc.Timeout = c.httpClient.Timeout
	return hc
}
