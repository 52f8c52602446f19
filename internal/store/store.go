// Package store define los contratos de persistencia del servicio: flujos OAuth
// pendientes, sesiones y usuarios. Las implementaciones viven en subpaquetes
// (memory, redis, pg, sqlite) y se eligen en el wiring según la configuración.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indica que la clave no existe (o ya fue consumida).
	ErrNotFound = errors.New("store: not found")
	// ErrConflict indica que la clave ya existe en un insert que debía ser único.
	ErrConflict = errors.New("store: conflict")
	// ErrUnavailable marca fallas de infraestructura (conexión, timeout, driver).
	ErrUnavailable = errors.New("store: unavailable")
)

// Error envuelve una falla del backend. errors.Is(err, ErrUnavailable) es true.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrUnavailable }

// Unavailable envuelve err como falla de infraestructura. Devuelve nil si err es nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// PendingFlow es un login iniciado que espera el callback del provider.
type PendingFlow struct {
	Provider  string    `json:"provider"`
	Verifier  string    `json:"verifier,omitempty"` // PKCE code_verifier, solo si el provider lo exige
	ReturnTo  string    `json:"return_to,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionRecord es la fila persistida de una sesión. IDHash es el hash del id
// que viaja en la cookie; el id en claro nunca se guarda.
type SessionRecord struct {
	IDHash    string    `json:"id_hash"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// User es el registro local de una identidad externa.
type User struct {
	ID             string
	Provider       string
	ProviderUserID string
	DisplayName    string
	Email          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UpsertUserInput son los datos normalizados del provider.
type UpsertUserInput struct {
	Provider       string
	ProviderUserID string
	DisplayName    string
	Email          string
}

// FlowStore guarda flujos pendientes keyed por state.
type FlowStore interface {
	// Put guarda el flujo; ttl es un límite de retención, no de validez.
	Put(ctx context.Context, state string, f PendingFlow, ttl time.Duration) error
	// Take lee y borra el flujo en una sola operación atómica.
	// Dos Take concurrentes sobre el mismo state: exactamente uno obtiene el flujo.
	Take(ctx context.Context, state string) (*PendingFlow, error)
	// DeleteStale borra flujos creados antes de cutoff. Best-effort.
	DeleteStale(ctx context.Context, cutoff time.Time) (int, error)
}

// SessionStore guarda sesiones keyed por hash del id.
type SessionStore interface {
	// Create inserta la sesión; ErrConflict si el hash ya existe.
	Create(ctx context.Context, s SessionRecord) error
	Get(ctx context.Context, idHash string) (*SessionRecord, error)
	// Delete es idempotente.
	Delete(ctx context.Context, idHash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// UserStore persiste usuarios por (provider, provider_user_id).
type UserStore interface {
	// UpsertUser crea o actualiza display_name/email; seguro bajo concurrencia.
	UpsertUser(ctx context.Context, in UpsertUserInput) (string, error)
	GetUser(ctx context.Context, id string) (*User, error)
}

// Pinger verifica conectividad del backend (health).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stores agrupa los backends elegidos por el wiring.
type Stores struct {
	Flows    FlowStore
	Sessions SessionStore
	Users    UserStore
	Pingers  map[string]Pinger
	Closers  []func() error
}

// Close cierra los backends en orden inverso de apertura.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.Closers) - 1; i >= 0; i-- {
		if err := s.Closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
