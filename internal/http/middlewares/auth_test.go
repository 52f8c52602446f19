package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/socialgate/internal/session"
	"github.com/dropDatabas3/socialgate/internal/store"
)

type fakeResolver struct {
	sessions map[string]*session.Session
	err      error
	calls    int
}

func (f *fakeResolver) Resolve(_ context.Context, id string) (*session.Session, bool, error) {
	f.calls++
	if f.err != nil {
		return nil, false, f.err
	}
	s, ok := f.sessions[id]
	return s, ok, nil
}

func protected(t *testing.T, res *fakeResolver) http.Handler {
	t.Helper()
	gate := RequireSession(AuthDeps{Sessions: res, Cookies: session.NewCookies(session.CookieConfig{})})
	return gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := GetIdentity(r.Context())
		require.True(t, ok)
		require.Equal(t, id.UserID, GetUserID(r.Context()))
		_, _ = w.Write([]byte("hello " + id.UserID))
	}))
}

func TestRequireSession_NoCookieRedirects(t *testing.T) {
	res := &fakeResolver{}
	rr := httptest.NewRecorder()
	protected(t, res).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/protected/profile", nil))

	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, "/login?next=%2Fprotected%2Fprofile", rr.Header().Get("Location"))
	require.Empty(t, rr.Header().Get("Set-Cookie"))
	require.Zero(t, res.calls)
}

func TestRequireSession_UnknownCookieIsCleared(t *testing.T) {
	res := &fakeResolver{sessions: map[string]*session.Session{}}
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "stale"})
	rr := httptest.NewRecorder()
	protected(t, res).ServeHTTP(rr, req)

	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Contains(t, rr.Header().Get("Set-Cookie"), "sid=;")
	require.Contains(t, rr.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestRequireSession_ValidSessionProceeds(t *testing.T) {
	res := &fakeResolver{sessions: map[string]*session.Session{
		"good": {ID: "good", UserID: "u-1", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "good"})
	rr := httptest.NewRecorder()
	protected(t, res).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "hello u-1", rr.Body.String())
	require.Empty(t, rr.Header().Get("Set-Cookie"))
}

func TestRequireSession_StorageFaultIs503(t *testing.T) {
	res := &fakeResolver{err: store.Unavailable("sessions.get", errors.New("timeout"))}
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "any"})
	rr := httptest.NewRecorder()
	protected(t, res).ServeHTTP(rr, req)

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Empty(t, rr.Header().Get("Set-Cookie"))
}

func TestRequireSession_PostRedirectHasNoNext(t *testing.T) {
	rr := httptest.NewRecorder()
	protected(t, &fakeResolver{}).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/protected", nil))
	require.Equal(t, "/login", rr.Header().Get("Location"))
}
