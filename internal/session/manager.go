// Package session maneja el ciclo de vida de las sesiones server-side:
// creación tras un login exitoso, resolución por request, logout y barrido.
//
// El id de sesión es un token opaco de 256 bits que sólo viaja en la cookie;
// el store guarda su SHA-256, así un dump de la tabla no sirve para
// secuestrar sesiones.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/socialgate/internal/metrics"
	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	tokens "github.com/dropDatabas3/socialgate/internal/security/token"
	"github.com/dropDatabas3/socialgate/internal/store"
)

const idBytes = 32

// ErrIDCollision indica que el id generado ya existía. No se reintenta.
var ErrIDCollision = errors.New("session: id collision")

// Metadata del request que originó la sesión.
type Metadata struct {
	IP        string
	UserAgent string
}

// Session es la vista de dominio. ID es el valor en claro de la cookie y
// sólo está poblado en Create y Resolve.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Deps contiene las dependencias del manager.
type Deps struct {
	Store    store.SessionStore
	Lifetime time.Duration
	Now      func() time.Time // default time.Now
	Metrics  *metrics.Metrics
}

type Manager struct {
	store    store.SessionStore
	lifetime time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics
}

func NewManager(d Deps) *Manager {
	lifetime := d.Lifetime
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{store: d.Store, lifetime: lifetime, now: now, metrics: d.Metrics}
}

// Lifetime devuelve la duración configurada.
func (m *Manager) Lifetime() time.Duration { return m.lifetime }

// Create emite una sesión nueva para userID. expires_at se trunca al segundo
// (hacia abajo) para que cookie y store coincidan.
func (m *Manager) Create(ctx context.Context, userID string, meta Metadata) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("session: user id required")
	}
	id, err := tokens.GenerateOpaqueToken(idBytes)
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	rec := store.SessionRecord{
		IDHash:    tokens.SHA256Base64URL(id),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.lifetime).Truncate(time.Second),
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	}
	if err := m.store.Create(ctx, rec); err != nil {
		if errors.Is(err, store.ErrConflict) {
			logger.From(ctx).Error("session id collision",
				logger.Layer("service"), logger.Component("session.manager"), logger.UserID(userID))
			return nil, ErrIDCollision
		}
		return nil, err
	}
	m.metrics.SessionCreated()
	return &Session{ID: id, UserID: userID, CreatedAt: rec.CreatedAt, ExpiresAt: rec.ExpiresAt}, nil
}

// Resolve busca la sesión del id de la cookie. Ausente o vencida devuelve
// (nil, false, nil); una falla del store se devuelve como error, nunca como ausente.
func (m *Manager) Resolve(ctx context.Context, id string) (*Session, bool, error) {
	if id == "" {
		m.metrics.SessionResolved("absent")
		return nil, false, nil
	}
	hash := tokens.SHA256Base64URL(id)
	rec, err := m.store.Get(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		m.metrics.SessionResolved("absent")
		return nil, false, nil
	}
	if err != nil {
		m.metrics.SessionResolved("error")
		return nil, false, err
	}

	if !m.now().Before(rec.ExpiresAt) {
		// borrado oportunista; si falla lo limpia el sweeper
		if err := m.store.Delete(ctx, hash); err != nil {
			logger.From(ctx).Warn("expired session delete failed",
				logger.Component("session.manager"), logger.Err(err))
		}
		m.metrics.SessionResolved("expired")
		return nil, false, nil
	}
	m.metrics.SessionResolved("valid")
	return &Session{ID: id, UserID: rec.UserID, CreatedAt: rec.CreatedAt, ExpiresAt: rec.ExpiresAt}, true, nil
}

// Invalidate borra la sesión. Idempotente.
func (m *Manager) Invalidate(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, tokens.SHA256Base64URL(id)); err != nil {
		return err
	}
	m.metrics.SessionInvalidated()
	return nil
}

// Sweep borra las sesiones vencidas.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	n, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, err
	}
	m.metrics.SweepRemoved("sessions", n)
	return n, nil
}
