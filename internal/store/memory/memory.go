// Package memory implementa los stores en proceso sobre go-cache.
// Pensado para desarrollo, tests y despliegues de un solo nodo.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/socialgate/internal/store"
)

const janitorInterval = time.Minute

// Flows implementa store.FlowStore.
type Flows struct {
	mu sync.Mutex // serializa Get+Delete en Take
	c  *gocache.Cache
}

func NewFlows() *Flows {
	return &Flows{c: gocache.New(gocache.NoExpiration, janitorInterval)}
}

func (f *Flows) Put(_ context.Context, state string, pf store.PendingFlow, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	if err := f.c.Add(state, pf, ttl); err != nil {
		return store.ErrConflict
	}
	return nil
}

func (f *Flows) Take(_ context.Context, state string) (*store.PendingFlow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.c.Get(state)
	if !ok {
		return nil, store.ErrNotFound
	}
	f.c.Delete(state)
	pf := v.(store.PendingFlow)
	return &pf, nil
}

func (f *Flows) DeleteStale(_ context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for k, item := range f.c.Items() {
		if pf, ok := item.Object.(store.PendingFlow); ok && pf.CreatedAt.Before(cutoff) {
			f.c.Delete(k)
			n++
		}
	}
	f.c.DeleteExpired()
	return n, nil
}

// Sessions implementa store.SessionStore.
type Sessions struct {
	c *gocache.Cache
}

func NewSessions() *Sessions {
	return &Sessions{c: gocache.New(gocache.NoExpiration, janitorInterval)}
}

func (s *Sessions) Create(_ context.Context, rec store.SessionRecord) error {
	// retención física = lifetime; la validez la decide el manager con su reloj
	retention := rec.ExpiresAt.Sub(rec.CreatedAt)
	if retention <= 0 {
		retention = gocache.NoExpiration
	}
	if err := s.c.Add(rec.IDHash, rec, retention); err != nil {
		return store.ErrConflict
	}
	return nil
}

func (s *Sessions) Get(_ context.Context, idHash string) (*store.SessionRecord, error) {
	v, ok := s.c.Get(idHash)
	if !ok {
		return nil, store.ErrNotFound
	}
	rec := v.(store.SessionRecord)
	return &rec, nil
}

func (s *Sessions) Delete(_ context.Context, idHash string) error {
	s.c.Delete(idHash)
	return nil
}

func (s *Sessions) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	n := 0
	for k, item := range s.c.Items() {
		if rec, ok := item.Object.(store.SessionRecord); ok && !now.Before(rec.ExpiresAt) {
			s.c.Delete(k)
			n++
		}
	}
	s.c.DeleteExpired()
	return n, nil
}

// Users implementa store.UserStore.
type Users struct {
	mu    sync.Mutex
	byKey map[string]string // provider \x00 provider_user_id -> id
	byID  map[string]store.User
	now   func() time.Time
}

func NewUsers() *Users {
	return &Users{
		byKey: make(map[string]string),
		byID:  make(map[string]store.User),
		now:   time.Now,
	}
}

func (u *Users) UpsertUser(_ context.Context, in store.UpsertUserInput) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now().UTC()
	key := in.Provider + "\x00" + in.ProviderUserID
	if id, ok := u.byKey[key]; ok {
		usr := u.byID[id]
		usr.DisplayName = in.DisplayName
		usr.Email = in.Email
		usr.UpdatedAt = now
		u.byID[id] = usr
		return id, nil
	}

	id := uuid.NewString()
	u.byKey[key] = id
	u.byID[id] = store.User{
		ID:             id,
		Provider:       in.Provider,
		ProviderUserID: in.ProviderUserID,
		DisplayName:    in.DisplayName,
		Email:          in.Email,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return id, nil
}

func (u *Users) GetUser(_ context.Context, id string) (*store.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	usr, ok := u.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &usr, nil
}

// Ping siempre responde; el backend vive en el proceso.
func (u *Users) Ping(context.Context) error { return nil }

// Open arma el set completo de stores en memoria.
func Open() *store.Stores {
	users := NewUsers()
	return &store.Stores{
		Flows:    NewFlows(),
		Sessions: NewSessions(),
		Users:    users,
		Pingers:  map[string]store.Pinger{"memory": users},
	}
}
