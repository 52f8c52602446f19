package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/dropDatabas3/socialgate/internal/metrics"
	"github.com/dropDatabas3/socialgate/internal/providers"
	tokens "github.com/dropDatabas3/socialgate/internal/security/token"
	"github.com/dropDatabas3/socialgate/internal/store"
)

const stateBytes = 32

// StateDeps contiene las dependencias del StateStore.
type StateDeps struct {
	Registry *providers.Registry
	Flows    store.FlowStore
	TTL      time.Duration    // default 10m
	Now      func() time.Time // default time.Now
	Metrics  *metrics.Metrics
}

// StateStore emite y consume los state de un solo uso (con PKCE cuando
// el provider lo pide).
type StateStore struct {
	reg     *providers.Registry
	flows   store.FlowStore
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
}

func NewStateStore(d StateDeps) *StateStore {
	ttl := d.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &StateStore{reg: d.Registry, flows: d.Flows, ttl: ttl, now: now, metrics: d.Metrics}
}

// TTL devuelve la validez de un state.
func (s *StateStore) TTL() time.Duration { return s.ttl }

// Begin registra un flujo pendiente y devuelve el state y la URL de autorización.
// returnTo ya debe venir saneado (ver SanitizeReturnTo).
func (s *StateStore) Begin(ctx context.Context, providerID, returnTo string) (state, authURL string, err error) {
	entry, err := s.reg.ConfigFor(providerID)
	if err != nil {
		return "", "", err
	}

	state, err = tokens.GenerateOpaqueToken(stateBytes)
	if err != nil {
		return "", "", err
	}

	pf := store.PendingFlow{
		Provider:  providerID,
		ReturnTo:  returnTo,
		CreatedAt: s.now().UTC(),
	}
	var opts []oauth2.AuthCodeOption
	if entry.PKCE {
		pf.Verifier = oauth2.GenerateVerifier()
		opts = append(opts, oauth2.S256ChallengeOption(pf.Verifier))
	}

	if err := s.flows.Put(ctx, state, pf, s.ttl); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return "", "", fmt.Errorf("flow: state collision")
		}
		return "", "", err
	}
	return state, OAuth2Config(entry).AuthCodeURL(state, opts...), nil
}

// Consume toma el flujo asociado a state y lo invalida en la misma operación.
// Vencido (now >= created_at + ttl) cuenta como inválido aunque siga guardado.
func (s *StateStore) Consume(ctx context.Context, state string) (*store.PendingFlow, error) {
	if strings.TrimSpace(state) == "" {
		return nil, ErrInvalidState
	}
	pf, err := s.flows.Take(ctx, state)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, err
	}
	if !s.now().Before(pf.CreatedAt.Add(s.ttl)) {
		return nil, ErrInvalidState
	}
	return pf, nil
}

// Sweep borra flujos vencidos. Best-effort: Consume no depende de esto.
func (s *StateStore) Sweep(ctx context.Context) (int, error) {
	n, err := s.flows.DeleteStale(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	s.metrics.SweepRemoved("flows", n)
	return n, nil
}

// OAuth2Config traduce la entrada del registry a un oauth2.Config.
// Credenciales siempre por Basic auth; sin autodetección (un solo intento).
func OAuth2Config(e providers.Entry) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     e.ClientID,
		ClientSecret: e.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   e.AuthURL,
			TokenURL:  e.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
		RedirectURL: e.RedirectURL,
		Scopes:      e.Scopes,
	}
}

// SanitizeReturnTo acepta sólo paths locales ("/x", no "//host" ni "/\host").
// Cualquier otra cosa devuelve "".
func SanitizeReturnTo(next string) string {
	next = strings.TrimSpace(next)
	if len(next) == 0 || next[0] != '/' {
		return ""
	}
	if len(next) > 1 && (next[1] == '/' || next[1] == '\\') {
		return ""
	}
	if strings.ContainsAny(next, "\r\n") {
		return ""
	}
	return next
}
