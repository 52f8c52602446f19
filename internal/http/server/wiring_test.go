package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/socialgate/internal/config"
	"github.com/dropDatabas3/socialgate/internal/providers/google"
	"github.com/dropDatabas3/socialgate/internal/providers/twitter"
)

func testConfig() *config.Config {
	c := config.Default()
	c.Providers.Google = config.ProviderConfig{Enabled: true, ClientID: "gid", ClientSecret: "gs"}
	c.Providers.Twitter = config.ProviderConfig{Enabled: true, ClientID: "tid", ClientSecret: "ts", PKCE: true}
	return c
}

func TestBuildRegistry_Defaults(t *testing.T) {
	reg, err := BuildRegistry(testConfig())
	require.NoError(t, err)
	require.Equal(t, []string{"google", "twitter"}, reg.IDs())

	g, err := reg.ConfigFor("google")
	require.NoError(t, err)
	require.Equal(t, google.TokenURL, g.TokenURL)
	require.Equal(t, google.DefaultScopes, g.Scopes)
	require.Equal(t, "http://localhost:8000/api/auth/google_callback", g.RedirectURL)
	require.False(t, g.PKCE)

	tw, err := reg.ConfigFor("twitter")
	require.NoError(t, err)
	require.Equal(t, twitter.AuthURL, tw.AuthURL)
	require.True(t, tw.PKCE)
}

func TestBuildRegistry_MissingSecretFails(t *testing.T) {
	c := testConfig()
	c.Providers.Twitter.ClientSecret = ""
	_, err := BuildRegistry(c)
	require.Error(t, err)
}

func TestBuild_MemoryServesHealth(t *testing.T) {
	app, err := Build(context.Background(), testConfig(), Options{Version: "t"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	rr := httptest.NewRecorder()
	app.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	app.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/auth/twitter_login", nil))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Contains(t, rr.Header().Get("Location"), "code_challenge_method=S256")
}

func TestBuild_SQLite(t *testing.T) {
	c := testConfig()
	c.Storage.Driver = config.DriverSQLite
	c.Storage.DSN = filepath.Join(t.TempDir(), "socialgate.db")

	app, err := Build(context.Background(), c, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	_, err = app.Sweeper.RunOnce(context.Background())
	require.NoError(t, err)
}

func TestBuild_CustomLoginPath(t *testing.T) {
	c := testConfig()
	c.Auth.LoginPath = "/signin"
	require.NoError(t, c.Validate())

	app, err := Build(context.Background(), c, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	serve := func(target string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		app.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		return rr
	}

	rr := serve("/protected")
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/signin?next=%2Fprotected", rr.Header().Get("Location"))

	rr = serve("/api/auth/google_callback?state=forged&code=x")
	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/signin?notice=retry", rr.Header().Get("Location"))

	rr = serve("/api/auth/logout")
	require.Equal(t, "/signin", rr.Header().Get("Location"))

	rr = serve("/signin?notice=retry")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Sign-in did not complete")

	require.Equal(t, http.StatusNotFound, serve("/login").Code)
}
