package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/dropDatabas3/socialgate/internal/http/middlewares"
)

// registerAuthRoutes registra el inicio de login, los callbacks y el logout.
// Todas son no-store: llevan state, code o cookies de sesión.
func registerAuthRoutes(r chi.Router, d Deps) {
	c := d.Auth
	r.Group(func(r chi.Router) {
		r.Use(mw.WithNoStore())

		// GET /login/{provider}: ids desconocidos responden 404 desde el controller
		r.Get("/login/{provider}", func(w http.ResponseWriter, req *http.Request) {
			c.Login(w, req, chi.URLParam(req, "provider"))
		})

		// GET /api/auth/<id>_login y /api/auth/<id>_callback, uno por provider
		for _, id := range d.Providers {
			providerID := id
			r.Get("/api/auth/"+providerID+"_login", func(w http.ResponseWriter, req *http.Request) {
				c.Login(w, req, providerID)
			})
			r.Get("/api/auth/"+providerID+"_callback", func(w http.ResponseWriter, req *http.Request) {
				c.Callback(w, req, providerID)
			})
		}

		// GET|POST /api/auth/logout
		r.Get("/api/auth/logout", c.Logout)
		r.Post("/api/auth/logout", c.Logout)
	})
}
