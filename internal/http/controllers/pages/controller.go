// Package pages renderiza las páginas HTML del servicio: home, login y las
// páginas protegidas que muestran el usuario de la sesión.
package pages

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/dropDatabas3/socialgate/internal/flow"
	httperrors "github.com/dropDatabas3/socialgate/internal/http/errors"
	mw "github.com/dropDatabas3/socialgate/internal/http/middlewares"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/dropDatabas3/socialgate/internal/store"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// UserGetter lee el usuario local de la sesión.
type UserGetter interface {
	GetUser(ctx context.Context, id string) (*store.User, error)
}

type Deps struct {
	Users     UserGetter
	Providers []string // ids configurados, en orden de render
}

type Controller struct {
	users     UserGetter
	providers []string
}

func NewController(d Deps) *Controller {
	return &Controller{users: d.Users, providers: append([]string(nil), d.Providers...)}
}

type basePage struct {
	Title     string
	Providers []string
}

type loginPage struct {
	basePage
	Notice string
	Next   string
}

// LoginURL arma el link de inicio de login preservando next.
func (p loginPage) LoginURL(provider string) string {
	u := "/login/" + url.PathEscape(provider)
	if p.Next != "" {
		u += "?next=" + url.QueryEscape(p.Next)
	}
	return u
}

type userPage struct {
	basePage
	User      *store.User
	ExpiresAt time.Time
}

// Home maneja GET /.
func (c *Controller) Home(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, "home", basePage{Title: "Home", Providers: c.providers})
}

// Login maneja GET /login. Sólo reconoce los notices conocidos.
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	notice := q.Get("notice")
	if notice != "retry" && notice != "denied" {
		notice = ""
	}
	next := q.Get("next")
	if next != "" {
		next = flow.SanitizeReturnTo(next)
	}
	c.render(w, r, "login", loginPage{
		basePage: basePage{Title: "Sign in", Providers: c.providers},
		Notice:   notice,
		Next:     next,
	})
}

// Protected maneja GET /protected. Requiere RequireSession antes.
func (c *Controller) Protected(w http.ResponseWriter, r *http.Request) {
	c.renderUser(w, r, "protected", "Protected")
}

// Profile maneja GET /protected/profile.
func (c *Controller) Profile(w http.ResponseWriter, r *http.Request) {
	c.renderUser(w, r, "profile", "Profile")
}

func (c *Controller) renderUser(w http.ResponseWriter, r *http.Request, name, title string) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("PagesController."+name))

	id, ok := mw.GetIdentity(ctx)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	u, err := c.users.GetUser(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// sesión huérfana: el usuario ya no existe
			log.Warn("session user not found")
			httperrors.WriteError(w, httperrors.ErrUnauthorized)
			return
		}
		log.Error("get user failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	c.render(w, r, name, userPage{
		basePage:  basePage{Title: title, Providers: c.providers},
		User:      u,
		ExpiresAt: id.SessionExpiresAt,
	})
}

func (c *Controller) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		logger.From(r.Context()).Error("template render failed", logger.Component(name), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
