package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/socialgate/internal/flow"
	authctrl "github.com/dropDatabas3/socialgate/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/socialgate/internal/http/controllers/health"
	pagesctrl "github.com/dropDatabas3/socialgate/internal/http/controllers/pages"
	"github.com/dropDatabas3/socialgate/internal/metrics"
	"github.com/dropDatabas3/socialgate/internal/providers"
	"github.com/dropDatabas3/socialgate/internal/providers/google"
	"github.com/dropDatabas3/socialgate/internal/providers/twitter"
	"github.com/dropDatabas3/socialgate/internal/session"
	"github.com/dropDatabas3/socialgate/internal/store"
	"github.com/dropDatabas3/socialgate/internal/store/memory"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// newIdP levanta token + userinfo para google y twitter.
func newIdP(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	token := func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at", "token_type": "Bearer", "expires_in": 3600})
	}
	mux.HandleFunc("/google/token", token)
	mux.HandleFunc("/twitter/token", token)
	mux.HandleFunc("/google/userinfo", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"g-1","name":"Ana","email":"ana@gmail.com"}`))
	})
	mux.HandleFunc("/twitter/userinfo", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"t-1","name":"Tom","username":"tom"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func entry(id string, pkce bool, base string, n providers.Normalizer) providers.Entry {
	return providers.Entry{
		Config: providers.Config{
			ID:           id,
			ClientID:     id + "-client",
			ClientSecret: id + "-secret",
			AuthURL:      base + "/" + id + "/authorize",
			TokenURL:     base + "/" + id + "/token",
			UserInfoURL:  base + "/" + id + "/userinfo",
			RedirectURL:  "http://localhost:8000/api/auth/" + id + "_callback",
			Scopes:       []string{"s"},
			PKCE:         pkce,
		},
		Normalizer: n,
	}
}

type app struct {
	handler  http.Handler
	sessions *session.Manager
	metrics  *metrics.Metrics
	clock    *testClock
}

// testClock es el reloj compartido por flows, sesiones y cookies.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newApp(t *testing.T, pingers map[string]store.Pinger) *app {
	t.Helper()
	idp := newIdP(t)
	reg, err := providers.NewRegistry(
		entry("google", false, idp.URL, google.Normalizer{}),
		entry("twitter", true, idp.URL, twitter.Normalizer{}),
	)
	require.NoError(t, err)

	stores := memory.Open()
	if pingers == nil {
		pingers = stores.Pingers
	}
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	clk := &testClock{t: time.Now().UTC()}
	mgr := session.NewManager(session.Deps{Store: stores.Sessions, Lifetime: time.Hour, Now: clk.Now, Metrics: m})
	cookies := session.NewCookies(session.CookieConfig{Now: clk.Now})
	states := flow.NewStateStore(flow.StateDeps{Registry: reg, Flows: stores.Flows, TTL: 10 * time.Minute, Now: clk.Now, Metrics: m})
	engine := flow.NewEngine(flow.EngineDeps{
		Registry:        reg,
		States:          states,
		Users:           stores.Users,
		Sessions:        mgr,
		HTTPClient:      idp.Client(),
		ProviderTimeout: 2 * time.Second,
		Metrics:         m,
	})

	h := New(Deps{
		Auth:      authctrl.NewController(authctrl.Deps{Engine: engine, Sessions: mgr, Cookies: cookies}),
		Pages:     pagesctrl.NewController(pagesctrl.Deps{Users: stores.Users, Providers: reg.IDs()}),
		Health:    healthctrl.NewController(pingers, "test"),
		Sessions:  mgr,
		Cookies:   cookies,
		Providers: reg.IDs(),
		Metrics:   m,
	})
	return &app{handler: h, sessions: mgr, metrics: m, clock: clk}
}

func (a *app) get(t *testing.T, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

// startLogin devuelve el state que el servicio mandó al provider.
func (a *app) startLogin(t *testing.T, target string) string {
	t.Helper()
	rr := a.get(t, target)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	u, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func sessionCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.DefaultCookieName {
			return c
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func TestLoginFlow_GoogleEndToEnd(t *testing.T) {
	a := newApp(t, nil)

	state := a.startLogin(t, "/api/auth/google_login")
	rr := a.get(t, "/api/auth/google_callback?state="+url.QueryEscape(state)+"&code=ok")
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/protected", rr.Header().Get("Location"))
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

	ck := sessionCookie(t, rr)
	require.True(t, ck.HttpOnly)
	require.Greater(t, ck.MaxAge, 3500)

	page := a.get(t, "/protected", ck)
	require.Equal(t, http.StatusOK, page.Code)
	require.Contains(t, page.Body.String(), "You are authenticated as Ana")
	require.Contains(t, page.Body.String(), "Provider: google")

	profile := a.get(t, "/protected/profile", ck)
	require.Equal(t, http.StatusOK, profile.Code)
	require.Contains(t, profile.Body.String(), "ana@gmail.com")
}

func TestLoginFlow_TwitterKeepsNext(t *testing.T) {
	a := newApp(t, nil)

	state := a.startLogin(t, "/login/twitter?next="+url.QueryEscape("/protected/profile"))
	rr := a.get(t, "/api/auth/twitter_callback?state="+url.QueryEscape(state)+"&code=ok")
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/protected/profile", rr.Header().Get("Location"))

	profile := a.get(t, "/protected/profile", sessionCookie(t, rr))
	require.Equal(t, http.StatusOK, profile.Code)
	require.Contains(t, profile.Body.String(), "Tom")
	require.Contains(t, profile.Body.String(), "t-1")
}

func TestCallback_ReplayedStateRedirectsToRetry(t *testing.T) {
	a := newApp(t, nil)
	state := a.startLogin(t, "/api/auth/google_login")
	target := "/api/auth/google_callback?state=" + url.QueryEscape(state) + "&code=ok"

	first := a.get(t, target)
	require.Equal(t, "/protected", first.Header().Get("Location"))
	ck := sessionCookie(t, first)

	second := a.get(t, target)
	require.Equal(t, http.StatusSeeOther, second.Code)
	require.Equal(t, "/login?notice=retry", second.Header().Get("Location"))
	require.Empty(t, second.Result().Cookies())

	// la sesión del primer callback sigue intacta
	sess, ok, err := a.sessions.Resolve(context.Background(), ck.Value)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, sess.ExpiresAt.Equal(ck.Expires))

	page := a.get(t, "/protected", ck)
	require.Equal(t, http.StatusOK, page.Code)
	require.Contains(t, page.Body.String(), "You are authenticated as Ana")
}

func TestCallback_UnknownStateAndProviderFailure(t *testing.T) {
	a := newApp(t, nil)

	rr := a.get(t, "/api/auth/google_callback?state=forged&code=ok")
	require.Equal(t, "/login?notice=retry", rr.Header().Get("Location"))

	state := a.startLogin(t, "/api/auth/google_login")
	rr = a.get(t, "/api/auth/google_callback?state="+url.QueryEscape(state)+"&code=bad")
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/login?notice=retry", rr.Header().Get("Location"))
	require.Empty(t, rr.Result().Cookies())
}

func TestCallback_DeniedAtProvider(t *testing.T) {
	a := newApp(t, nil)
	state := a.startLogin(t, "/api/auth/google_login")

	rr := a.get(t, "/api/auth/google_callback?state="+url.QueryEscape(state)+"&error=access_denied")
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/login?notice=denied", rr.Header().Get("Location"))

	// el state quedó consumido
	rr = a.get(t, "/api/auth/google_callback?state="+url.QueryEscape(state)+"&code=ok")
	require.Equal(t, "/login?notice=retry", rr.Header().Get("Location"))
}

func TestLogin_UnknownProvider(t *testing.T) {
	a := newApp(t, nil)
	rr := a.get(t, "/login/github")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "UNKNOWN_PROVIDER")

	rr = a.get(t, "/api/auth/github_callback?state=x&code=y")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProtected_RequiresSession(t *testing.T) {
	a := newApp(t, nil)

	rr := a.get(t, "/protected")
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/login?next=%2Fprotected", rr.Header().Get("Location"))

	rr = a.get(t, "/protected", &http.Cookie{Name: session.DefaultCookieName, Value: "nope"})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	cleared := sessionCookie(t, rr)
	require.Equal(t, -1, cleared.MaxAge)
}

func TestProtected_ExpiredSessionRedirectsAndClearsCookie(t *testing.T) {
	a := newApp(t, nil)
	state := a.startLogin(t, "/api/auth/google_login")
	ck := sessionCookie(t, a.get(t, "/api/auth/google_callback?state="+url.QueryEscape(state)+"&code=ok"))

	a.clock.Advance(59 * time.Minute)
	require.Equal(t, http.StatusOK, a.get(t, "/protected", ck).Code)

	a.clock.Advance(time.Minute)
	rr := a.get(t, "/protected", ck)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/login?next=%2Fprotected", rr.Header().Get("Location"))
	require.Less(t, sessionCookie(t, rr).MaxAge, 0)

	_, ok, err := a.sessions.Resolve(context.Background(), ck.Value)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLogout_InvalidatesSession(t *testing.T) {
	a := newApp(t, nil)
	state := a.startLogin(t, "/api/auth/google_login")
	ck := sessionCookie(t, a.get(t, "/api/auth/google_callback?state="+url.QueryEscape(state)+"&code=ok"))

	rr := a.get(t, "/api/auth/logout", ck)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/login", rr.Header().Get("Location"))
	require.Equal(t, -1, sessionCookie(t, rr).MaxAge)

	_, ok, err := a.sessions.Resolve(context.Background(), ck.Value)
	require.NoError(t, err)
	require.False(t, ok)

	rr = a.get(t, "/protected", ck)
	require.Equal(t, http.StatusSeeOther, rr.Code)

	// sin cookie también redirige
	rr = a.get(t, "/api/auth/logout")
	require.Equal(t, http.StatusSeeOther, rr.Code)
}

func TestPages_HomeAndLoginNotices(t *testing.T) {
	a := newApp(t, nil)

	rr := a.get(t, "/")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "/api/auth/google_login")
	require.Contains(t, rr.Body.String(), "/api/auth/twitter_login")

	rr = a.get(t, "/login?notice=denied&next=%2Fprotected%2Fprofile")
	body := rr.Body.String()
	require.Contains(t, body, "cancelled")
	require.Contains(t, body, "/login/google?next=%2Fprotected%2Fprofile")

	rr = a.get(t, "/login?notice=%3Cscript%3E&next=%2F%2Fevil.com")
	body = rr.Body.String()
	require.NotContains(t, body, "<script>")
	require.NotContains(t, body, "evil.com")
}

func TestHealth(t *testing.T) {
	a := newApp(t, nil)
	rr := a.get(t, "/health")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp healthctrl.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "healthy", resp.Status)
	require.Equal(t, "connected", resp.Database)

	down := newApp(t, map[string]store.Pinger{
		"postgres": pingerFunc(func(context.Context) error { return errors.New("dial tcp: refused") }),
	})
	rr = down.get(t, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "unhealthy", resp.Status)
	require.Equal(t, "disconnected", resp.Database)
	require.Equal(t, "disconnected", resp.Components["postgres"])
}

func TestMetricsEndpoint(t *testing.T) {
	a := newApp(t, nil)
	a.startLogin(t, "/api/auth/google_login")

	rr := a.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, strings.Contains(rr.Body.String(), "auth_flows_started"))
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	a := newApp(t, nil)
	rr := a.get(t, "/nope")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Header().Get("Content-Type"), "application/json")
}
