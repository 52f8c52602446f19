// Package auth contiene los endpoints del login social: inicio, callback y logout.
package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/dropDatabas3/socialgate/internal/flow"
	httperrors "github.com/dropDatabas3/socialgate/internal/http/errors"
	mw "github.com/dropDatabas3/socialgate/internal/http/middlewares"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/dropDatabas3/socialgate/internal/providers"
	"github.com/dropDatabas3/socialgate/internal/session"
)

// Notices que la página de login sabe mostrar.
const (
	NoticeRetry  = "retry"
	NoticeDenied = "denied"
)

// Engine es lo que el controller usa del flow engine.
type Engine interface {
	Initiate(ctx context.Context, providerID, returnTo string) (string, error)
	Callback(ctx context.Context, providerID string, p flow.CallbackParams, meta session.Metadata) (*flow.Result, error)
}

// Invalidator borra sesiones (logout).
type Invalidator interface {
	Invalidate(ctx context.Context, id string) error
}

// Deps del controller.
type Deps struct {
	Engine    Engine
	Sessions  Invalidator
	Cookies   *session.Cookies
	LoginPath string
}

type Controller struct {
	engine    Engine
	sessions  Invalidator
	cookies   *session.Cookies
	loginPath string
}

func NewController(d Deps) *Controller {
	lp := d.LoginPath
	if lp == "" {
		lp = "/login"
	}
	return &Controller{engine: d.Engine, sessions: d.Sessions, cookies: d.Cookies, loginPath: lp}
}

// Login maneja GET /login/{provider} y GET /api/auth/{provider}_login.
func (c *Controller) Login(w http.ResponseWriter, r *http.Request, providerID string) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuthController.Login"), logger.Provider(providerID))

	authURL, err := c.engine.Initiate(ctx, providerID, r.URL.Query().Get("next"))
	if err != nil {
		if errors.Is(err, providers.ErrUnknownProvider) {
			httperrors.WriteError(w, httperrors.ErrUnknownProvider.WithDetail(providerID))
			return
		}
		log.Error("initiate failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusSeeOther)
}

// Callback maneja GET /api/auth/{provider}_callback.
//
// Fallas de validación o del provider vuelven al login con un aviso genérico;
// sólo las fallas de storage se responden como error (503).
func (c *Controller) Callback(w http.ResponseWriter, r *http.Request, providerID string) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuthController.Callback"), logger.Provider(providerID))

	q := r.URL.Query()
	res, err := c.engine.Callback(ctx, providerID, flow.CallbackParams{
		State:            q.Get("state"),
		Code:             q.Get("code"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}, session.Metadata{IP: mw.ClientIP(r), UserAgent: r.UserAgent()})

	if err != nil {
		var (
			denied   *flow.DeniedError
			provider *flow.ProviderError
		)
		switch {
		case errors.Is(err, providers.ErrUnknownProvider):
			httperrors.WriteError(w, httperrors.ErrUnknownProvider.WithDetail(providerID))
		case errors.As(err, &denied):
			log.Info("authorization denied by provider", logger.String("reason", denied.Reason))
			c.redirectLogin(w, r, NoticeDenied)
		case errors.Is(err, flow.ErrInvalidState):
			log.Warn("invalid callback state")
			c.redirectLogin(w, r, NoticeRetry)
		case errors.As(err, &provider):
			log.Warn("provider call failed",
				logger.Stage(provider.Stage), logger.Status(provider.Status), logger.Err(err))
			c.redirectLogin(w, r, NoticeRetry)
		default:
			log.Error("callback failed", logger.Err(err))
			httperrors.WriteError(w, err)
		}
		return
	}

	http.SetCookie(w, c.cookies.Issue(res.Session))
	http.Redirect(w, r, res.ReturnTo, http.StatusSeeOther)
}

// Logout maneja /api/auth/logout. Las fallas del store se loguean pero el
// usuario siempre termina sin cookie y en el login.
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if sid := c.cookies.Read(r); sid != "" {
		if err := c.sessions.Invalidate(ctx, sid); err != nil {
			logger.From(ctx).Warn("session invalidate failed",
				logger.Layer("controller"), logger.Op("AuthController.Logout"), logger.Err(err))
		}
	}
	http.SetCookie(w, c.cookies.Clear())
	http.Redirect(w, r, c.loginPath, http.StatusSeeOther)
}

func (c *Controller) redirectLogin(w http.ResponseWriter, r *http.Request, notice string) {
	http.Redirect(w, r, c.loginPath+"?notice="+url.QueryEscape(notice), http.StatusSeeOther)
}
