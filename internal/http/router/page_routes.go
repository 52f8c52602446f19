package router

import (
	"github.com/go-chi/chi/v5"

	mw "github.com/dropDatabas3/socialgate/internal/http/middlewares"
)

// registerPageRoutes registra las páginas HTML. /protected/* pasa por RequireSession.
func registerPageRoutes(r chi.Router, d Deps) {
	c := d.Pages

	r.Get("/", c.Home)
	r.Get(d.loginPath(), c.Login)

	r.Group(func(r chi.Router) {
		r.Use(mw.WithNoStore())
		r.Use(mw.RequireSession(mw.AuthDeps{
			Sessions:  d.Sessions,
			Cookies:   d.Cookies,
			LoginPath: d.loginPath(),
		}))
		r.Get("/protected", c.Protected)
		r.Get("/protected/profile", c.Profile)
	})
}
