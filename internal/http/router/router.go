// Package router arma el árbol de rutas chi del servicio.
package router

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"

	authctrl "github.com/dropDatabas3/socialgate/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/socialgate/internal/http/controllers/health"
	pagesctrl "github.com/dropDatabas3/socialgate/internal/http/controllers/pages"
	httperrors "github.com/dropDatabas3/socialgate/internal/http/errors"
	mw "github.com/dropDatabas3/socialgate/internal/http/middlewares"
	"github.com/dropDatabas3/socialgate/internal/metrics"
	"github.com/dropDatabas3/socialgate/internal/session"
)

// Deps contiene todo lo que el router necesita.
type Deps struct {
	Auth   *authctrl.Controller
	Pages  *pagesctrl.Controller
	Health *healthctrl.Controller

	Sessions mw.SessionResolver
	Cookies  *session.Cookies

	// LoginPath sirve la página de login y es el destino de RequireSession.
	// Tiene que coincidir con el del auth controller. Default "/login".
	LoginPath string

	// TrustedProxies son los CIDR de proxies cuyo X-Forwarded-For se acepta.
	TrustedProxies []netip.Prefix

	// Providers son los ids configurados; cada uno recibe sus rutas
	// /api/auth/<id>_login y /api/auth/<id>_callback.
	Providers []string

	Metrics *metrics.Metrics // opcional
}

// New devuelve el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.WithRecover())
	r.Use(mw.WithRequestID())
	r.Use(mw.WithClientIP(d.TrustedProxies))
	r.Use(mw.WithSecurityHeaders())
	r.Use(d.Metrics.WithMetrics)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	registerHealthRoutes(r, d)

	r.Group(func(r chi.Router) {
		r.Use(mw.WithLogging())
		registerAuthRoutes(r, d)
		registerPageRoutes(r, d)
	})
	return r
}

func (d Deps) loginPath() string {
	if d.LoginPath == "" {
		return "/login"
	}
	return d.LoginPath
}
