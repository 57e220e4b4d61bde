package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	domainauth "github.com/target/sitegate/internal/domain/auth"
	mockauth "github.com/target/sitegate/internal/mocks/auth"
	"github.com/target/sitegate/internal/service"
)

const portalOrigin = "https://portal.example.com"

// hostStack wires the host services over in-memory doubles.
type hostStack struct {
	creds    *mockauth.StubCredentialClient
	probe    *mockauth.StubSessionProbe
	store    *service.SessionStore
	resolver *service.StatusResolver
	auth     *service.AuthService
	bridge   *service.HostBridge
	router   http.Handler
}

func newHostStack(t *testing.T, principals ...domainauth.AdminPrincipal) *hostStack {
	t.Helper()
	s := &hostStack{creds: &mockauth.StubCredentialClient{}, probe: &mockauth.StubSessionProbe{}}
	s.probe.FetchFunc = func(_ context.Context, token string) (*domainauth.Session, error) {
		return s.storedSession(token), nil
	}
	s.store = service.NewSessionStore(service.SessionStoreOptions{Storage: mockauth.NewMemoryStorage()})
	s.resolver = service.NewStatusResolver(service.StatusResolverOptions{
		Sessions:  s.store,
		Probe:     s.probe,
		Directory: mockauth.NewMemoryAdminDirectory(principals...),
		Config:    service.ResolverConfig{WatchdogTimeout: time.Second},
	})
	t.Cleanup(s.resolver.Close)
	s.auth = service.NewAuthService(service.AuthServiceOptions{
		Credentials: s.creds,
		Sessions:    s.store,
		Resolver:    s.resolver,
	})
	origins, err := service.NewOriginAllowList([]string{portalOrigin})
	require.NoError(t, err)
	s.bridge = service.NewHostBridge(service.HostBridgeOptions{
		Sessions: s.store,
		Resolver: s.resolver,
		Origins:  origins,
		Config:   service.HostBridgeConfig{SelfOrigin: "https://app.example.com"},
	})
	t.Cleanup(s.bridge.Close)
	s.router = NewHostRouter(HostServices{Auth: s.auth, Bridge: s.bridge, Origins: origins})
	return s
}

// storedSession echoes the stored session back as the live one.
func (s *hostStack) storedSession(token string) *domainauth.Session {
	sess, err := s.store.Get(context.Background())
	if err != nil || sess == nil || sess.Token != token {
		return nil
	}
	return sess
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
