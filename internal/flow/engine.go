// Package flow implementa el Authorization Code flow contra los providers
// registrados: emisión y consumo del state (con PKCE S256 cuando aplica),
// canje del code, lectura del perfil y alta de la sesión.
//
// Etapas: initiated -> callback_received -> exchanged -> profile_fetched -> complete | failed.
// No existe sesión salvo que todas las etapas previas hayan terminado bien.
package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/dropDatabas3/socialgate/internal/metrics"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/dropDatabas3/socialgate/internal/providers"
	"github.com/dropDatabas3/socialgate/internal/session"
	"github.com/dropDatabas3/socialgate/internal/store"
)

// Etapas del flujo, usadas en logs.
const (
	StageInitiated        = "initiated"
	StageCallbackReceived = "callback_received"
	StageExchanged        = "exchanged"
	StageProfileFetched   = "profile_fetched"
	StageComplete         = "complete"
	StageFailed           = "failed"
)

const maxProfileBody = 1 << 20

// SessionCreator es lo que el engine necesita del session manager.
type SessionCreator interface {
	Create(ctx context.Context, userID string, meta session.Metadata) (*session.Session, error)
}

// CallbackParams son los query params del redirect del provider.
type CallbackParams struct {
	State            string
	Code             string
	Error            string
	ErrorDescription string
}

// Result de un callback exitoso.
type Result struct {
	Session  *session.Session
	UserID   string
	Profile  *providers.Profile
	ReturnTo string
}

// EngineDeps contiene las dependencias del engine.
type EngineDeps struct {
	Registry        *providers.Registry
	States          *StateStore
	Users           store.UserStore
	Sessions        SessionCreator
	HTTPClient      *http.Client  // default http.DefaultClient
	ProviderTimeout time.Duration // default 10s, por llamada
	LandingPath     string        // default "/protected"
	Metrics         *metrics.Metrics
}

type Engine struct {
	reg      *providers.Registry
	states   *StateStore
	users    store.UserStore
	sessions SessionCreator
	client   *http.Client
	timeout  time.Duration
	landing  string
	metrics  *metrics.Metrics
}

func NewEngine(d EngineDeps) *Engine {
	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	timeout := d.ProviderTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	landing := d.LandingPath
	if landing == "" {
		landing = "/protected"
	}
	return &Engine{
		reg:      d.Registry,
		states:   d.States,
		users:    d.Users,
		sessions: d.Sessions,
		client:   client,
		timeout:  timeout,
		landing:  landing,
		metrics:  d.Metrics,
	}
}

// Initiate arranca un login y devuelve la URL del provider. No hace red.
func (e *Engine) Initiate(ctx context.Context, providerID, returnTo string) (string, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("flow.engine"), logger.Op("Initiate"), logger.Provider(providerID))

	_, authURL, err := e.states.Begin(ctx, providerID, SanitizeReturnTo(returnTo))
	if err != nil {
		if !errors.Is(err, providers.ErrUnknownProvider) {
			log.Error("begin flow failed", logger.Err(err))
		}
		return "", err
	}
	e.metrics.FlowStarted(providerID)
	log.Debug("flow stage", logger.Stage(StageInitiated))
	return authURL, nil
}

// Callback completa el login. Errores posibles:
//   - providers.ErrUnknownProvider
//   - ErrInvalidState
//   - *DeniedError
//   - *ProviderError
//   - errores de store (errors.Is(err, store.ErrUnavailable)) o session.ErrIDCollision
func (e *Engine) Callback(ctx context.Context, providerID string, p CallbackParams, meta session.Metadata) (*Result, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("flow.engine"), logger.Op("Callback"), logger.Provider(providerID))

	entry, err := e.reg.ConfigFor(providerID)
	if err != nil {
		return nil, err
	}
	log.Debug("flow stage", logger.Stage(StageCallbackReceived))

	fail := func(reason string, err error) (*Result, error) {
		e.metrics.FlowFailed(providerID, reason)
		log.Info("flow stage", logger.Stage(StageFailed), logger.String("reason", reason), logger.Err(err))
		return nil, err
	}

	if p.Error != "" {
		// el state queda inutilizable aunque el provider haya rechazado
		if p.State != "" {
			if _, cerr := e.states.Consume(ctx, p.State); cerr != nil && !errors.Is(cerr, ErrInvalidState) {
				log.Warn("consume on denied callback failed", logger.Err(cerr))
			}
		}
		return fail("denied", &DeniedError{Reason: p.Error, Description: p.ErrorDescription})
	}

	pf, err := e.states.Consume(ctx, p.State)
	if err != nil {
		if errors.Is(err, ErrInvalidState) {
			return fail("invalid_state", err)
		}
		return fail("storage", err)
	}
	if pf.Provider != providerID {
		return fail("invalid_state", ErrInvalidState)
	}
	if p.Code == "" {
		return fail("invalid_state", ErrInvalidState)
	}

	tok, err := e.exchange(ctx, entry, p.Code, pf.Verifier)
	if err != nil {
		return fail("exchange", err)
	}
	log.Debug("flow stage", logger.Stage(StageExchanged))

	profile, err := e.fetchProfile(ctx, entry, tok)
	if err != nil {
		return fail("profile", err)
	}
	log.Debug("flow stage", logger.Stage(StageProfileFetched))

	userID, err := e.users.UpsertUser(ctx, store.UpsertUserInput{
		Provider:       providerID,
		ProviderUserID: profile.ProviderUserID,
		DisplayName:    profile.DisplayName,
		Email:          profile.Email,
	})
	if err != nil {
		return fail("storage", err)
	}

	sess, err := e.sessions.Create(ctx, userID, meta)
	if err != nil {
		return fail("session", err)
	}

	returnTo := pf.ReturnTo
	if returnTo == "" {
		returnTo = e.landing
	}
	e.metrics.FlowCompleted(providerID)
	log.Info("flow stage", logger.Stage(StageComplete), logger.UserID(userID), logger.Email(profile.Email))

	return &Result{Session: sess, UserID: userID, Profile: profile, ReturnTo: returnTo}, nil
}

// exchange canjea el code con un único intento y timeout acotado.
func (e *Engine) exchange(ctx context.Context, entry providers.Entry, code, verifier string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client)

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	start := time.Now()
	tok, err := OAuth2Config(entry).Exchange(ctx, code, opts...)
	e.metrics.ProviderCall(entry.ID, StageExchange, time.Since(start).Seconds())
	if err != nil {
		pe := &ProviderError{Provider: entry.ID, Stage: StageExchange, Err: err}
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			pe.Status = re.Response.StatusCode
		}
		return nil, pe
	}
	return tok, nil
}

// fetchProfile llama al endpoint de user-info con el bearer y normaliza.
func (e *Engine) fetchProfile(ctx context.Context, entry providers.Entry, tok *oauth2.Token) (*providers.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	perr := func(status int, err error) error {
		return &ProviderError{Provider: entry.ID, Stage: StageProfile, Status: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.UserInfoURL, nil)
	if err != nil {
		return nil, perr(0, err)
	}
	req.Header.Set("Accept", "application/json")
	tok.SetAuthHeader(req)

	start := time.Now()
	resp, err := e.client.Do(req)
	e.metrics.ProviderCall(entry.ID, StageProfile, time.Since(start).Seconds())
	if err != nil {
		return nil, perr(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBody))
	if err != nil {
		return nil, perr(resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, perr(resp.StatusCode, fmt.Errorf("userinfo returned %s", resp.Status))
	}

	profile, err := entry.Normalizer.Normalize(body)
	if err != nil {
		return nil, perr(resp.StatusCode, err)
	}
	profile.Provider = entry.ID
	logger.From(ctx).Debug("profile fetched", logger.Provider(entry.ID), logger.Bytes(len(body)))
	return profile, nil
}
