package middlewares

import (
	"context"
	"net/http"
	"net/url"

	httperrors "github.com/dropDatabas3/socialgate/internal/http/errors"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/dropDatabas3/socialgate/internal/session"
)

// SessionResolver es la parte del session manager que usa el gate.
type SessionResolver interface {
	Resolve(ctx context.Context, id string) (*session.Session, bool, error)
}

// AuthDeps configura RequireSession.
type AuthDeps struct {
	Sessions  SessionResolver
	Cookies   *session.Cookies
	LoginPath string // default "/login"
}

// RequireSession deja pasar sólo requests con una sesión válida.
//   - sin cookie: 303 al login, sin tocar cookies
//   - cookie sin sesión válida: borra la cookie y 303 al login
//   - falla del store: 503 (no se trata como "no autenticado")
//
// Nunca crea ni extiende sesiones.
func RequireSession(d AuthDeps) Middleware {
	loginPath := d.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			sid := d.Cookies.Read(r)
			if sid == "" {
				http.Redirect(w, r, loginTarget(loginPath, r), http.StatusSeeOther)
				return
			}

			sess, ok, err := d.Sessions.Resolve(ctx, sid)
			if err != nil {
				logger.From(ctx).Error("session resolve failed",
					logger.Layer("middleware"), logger.Component("auth"), logger.Err(err))
				httperrors.WriteError(w, err)
				return
			}
			if !ok {
				http.SetCookie(w, d.Cookies.Clear())
				http.Redirect(w, r, loginTarget(loginPath, r), http.StatusSeeOther)
				return
			}

			ctx = WithIdentity(ctx, Identity{UserID: sess.UserID, SessionExpiresAt: sess.ExpiresAt})
			ctx = WithUserID(ctx, sess.UserID)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.UserID(sess.UserID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// loginTarget agrega ?next= para GETs, así el usuario vuelve a donde estaba.
func loginTarget(loginPath string, r *http.Request) string {
	if r.Method != http.MethodGet {
		return loginPath
	}
	return loginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
}
