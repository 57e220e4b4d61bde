package bootstrap

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/sitegate/config"
	domainauth "github.com/target/sitegate/internal/domain/auth"
	mockauth "github.com/target/sitegate/internal/mocks/auth"
	"github.com/target/sitegate/internal/service"
)

const testPortalOrigin = "http://portal.test"

type stack struct {
	cfg      *config.AppConfig
	idp      *httptest.Server
	host     *Host
	hostSrv  *httptest.Server
	portal   *Portal
	portalDB *mockauth.MemoryStorage
}

// newStack runs the three modes against each other over real HTTP.
func newStack(t *testing.T, principals ...domainauth.AdminPrincipal) *stack {
	t.Helper()
	logger := discardLogger()
	s := &stack{}

	idpHandler, _, err := BuildIdentity(config.DevIdentityConfig{
		Users:       "ada@example.com|ada|hunter22;off@example.com|off|pw|disabled",
		Secret:      "test-secret",
		SessionTTL:  time.Hour,
		MaxFailures: 5,
		Lockout:     time.Minute,
	}, logger)
	require.NoError(t, err)
	s.idp = httptest.NewServer(idpHandler)
	t.Cleanup(s.idp.Close)

	s.cfg = &config.AppConfig{
		Identity: config.IdentityConfig{BaseURL: s.idp.URL, Timeout: 2 * time.Second},
		Auth:     config.AuthConfig{AdminDestination: "/admin", DefaultDestination: "/portal", WatchdogTimeout: 2 * time.Second},
		Sync: config.SyncConfig{
			SelfOrigin:     "http://app.test",
			AllowedOrigins: []string{testPortalOrigin},
			PortalOrigin:   testPortalOrigin,
			PollInterval:   time.Second,
		},
	}

	s.host, err = BuildHost(HostDeps{
		Config:    s.cfg,
		Storage:   mockauth.NewMemoryStorage(),
		Directory: mockauth.NewMemoryAdminDirectory(principals...),
		Logger:    logger,
	})
	require.NoError(t, err)
	t.Cleanup(s.host.Close)
	s.hostSrv = httptest.NewServer(s.host.Handler)
	t.Cleanup(s.hostSrv.Close)

	s.cfg.Sync.HostURL = s.hostSrv.URL
	s.portalDB = mockauth.NewMemoryStorage()
	s.portal, err = BuildPortal(PortalDeps{Config: s.cfg, Storage: s.portalDB, Logger: logger})
	require.NoError(t, err)
	return s
}

func postJSON(t *testing.T, h http.Handler, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	out := map[string]any{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func hostStatus(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var view map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	status, _ := view["status"].(string)
	return status
}

func TestStack_LoginThenPortalSignOut(t *testing.T) {
	s := newStack(t)

	rec, body := postJSON(t, s.host.Handler, "/session/login", map[string]string{
		"identifier": "ada@example.com",
		"password":   "hunter22",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "authenticated", body["status"])
	assert.Equal(t, "/portal", body["redirectTo"])
	assert.Equal(t, "authenticated", hostStatus(t, s.host.Handler))

	rec, body = postJSON(t, s.portal.Handler, "/portal/events/click", service.ClickTarget{Text: "Sign out"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["loggedOut"])

	require.Eventually(t, func() bool {
		return s.host.Resolver.Status() == domainauth.StatusUnauthenticated
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "unauthenticated", hostStatus(t, s.host.Handler))

	state, err := s.host.Sessions.LoginState(t.Context())
	require.NoError(t, err)
	assert.Equal(t, domainauth.LoginStateLoggedOut, state)
}

func TestStack_AdminLoginAndGate(t *testing.T) {
	s := newStack(t, domainauth.AdminPrincipal{Email: "ada@example.com", Role: domainauth.RoleOwner, IsActive: true})

	rec := httptest.NewRecorder()
	s.host.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := postJSON(t, s.host.Handler, "/session/login", map[string]string{
		"identifier": "ada",
		"password":   "hunter22",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "authenticated_admin", body["status"])
	assert.Equal(t, "/admin", body["redirectTo"])

	rec = httptest.NewRecorder()
	s.host.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStack_LoginFailuresMapThroughContract(t *testing.T) {
	s := newStack(t)

	rec, _ := postJSON(t, s.host.Handler, "/session/login", map[string]string{"identifier": "ada@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = postJSON(t, s.host.Handler, "/session/login", map[string]string{"identifier": "off@example.com", "password": "pw"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = postJSON(t, s.host.Handler, "/session/login", map[string]string{"identifier": "", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, "unauthenticated", hostStatus(t, s.host.Handler))
}

func TestStack_HostLogoutRevokesBackendSession(t *testing.T) {
	s := newStack(t)

	rec, _ := postJSON(t, s.host.Handler, "/session/login", map[string]string{"identifier": "ada@example.com", "password": "hunter22"})
	require.Equal(t, http.StatusOK, rec.Code)
	sess, err := s.host.Sessions.Get(t.Context())
	require.NoError(t, err)
	require.NotNil(t, sess)
	token := sess.Token

	rec, body := postJSON(t, s.host.Handler, "/session/logout", map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "unauthenticated", hostStatus(t, s.host.Handler))

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, s.idp.URL+"/auth/session", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStack_DisallowedOriginIgnored(t *testing.T) {
	s := newStack(t)

	rec, _ := postJSON(t, s.host.Handler, "/session/login", map[string]string{"identifier": "ada@example.com", "password": "hunter22"})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/sync/messages",
		bytes.NewBufferString(`{"type":"logout","timestamp":"`+time.Now().UTC().Add(time.Minute).Format(time.RFC3339Nano)+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	s.host.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authenticated", hostStatus(t, s.host.Handler))
}

func TestBuildHost_RequiresDeps(t *testing.T) {
	_, err := BuildHost(HostDeps{})
	require.Error(t, err)

	_, err = BuildHost(HostDeps{
		Config:    &config.AppConfig{Identity: config.IdentityConfig{BaseURL: "ftp://idp"}},
		Storage:   mockauth.NewMemoryStorage(),
		Directory: mockauth.NewMemoryAdminDirectory(),
	})
	require.Error(t, err)
}

func TestBuildPortal_Errors(t *testing.T) {
	_, err := BuildPortal(PortalDeps{})
	require.Error(t, err)

	cfg := &config.AppConfig{Sync: config.SyncConfig{PortalOrigin: testPortalOrigin, HostURL: "not a url"}}
	_, err = BuildPortal(PortalDeps{Config: cfg, Storage: mockauth.NewMemoryStorage()})
	require.Error(t, err)

	cfg = &config.AppConfig{Sync: config.SyncConfig{RulesFile: "/does/not/exist.yaml"}}
	_, err = BuildPortal(PortalDeps{Config: cfg, Storage: mockauth.NewMemoryStorage(), Notifier: &mockauth.RecordingNotifier{}})
	require.Error(t, err)
}

func TestBuildIdentity_Errors(t *testing.T) {
	_, _, err := BuildIdentity(config.DevIdentityConfig{}, nil)
	require.Error(t, err)

	_, _, err = BuildIdentity(config.DevIdentityConfig{Secret: "s", Users: "broken"}, nil)
	require.Error(t, err)
}
