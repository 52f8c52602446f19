// Package redis implementa los stores de flujos y sesiones sobre Redis.
// La expiración física la maneja el TTL de cada clave.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/socialgate/internal/store"
)

// Options de conexión.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // default "socialgate:"
}

// Client envuelve el cliente go-redis con el prefijo de claves.
type Client struct {
	c      *rdb.Client
	prefix string
}

func New(opts Options) *Client {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "socialgate:"
	}
	return &Client{
		c:      rdb.NewClient(&rdb.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}),
		prefix: prefix,
	}
}

func (c *Client) Ping(ctx context.Context) error {
	return store.Unavailable("redis.ping", c.c.Ping(ctx).Err())
}

func (c *Client) Close() error { return c.c.Close() }

func (c *Client) Flows() *Flows { return &Flows{c: c.c, prefix: c.prefix + "flow:"} }

func (c *Client) Sessions() *Sessions { return &Sessions{c: c.c, prefix: c.prefix + "sess:"} }

// Flows implementa store.FlowStore.
type Flows struct {
	c      *rdb.Client
	prefix string
}

func (f *Flows) Put(ctx context.Context, state string, pf store.PendingFlow, ttl time.Duration) error {
	b, err := json.Marshal(pf)
	if err != nil {
		return err
	}
	ok, err := f.c.SetNX(ctx, f.prefix+state, b, ttl).Result()
	if err != nil {
		return store.Unavailable("flows.put", err)
	}
	if !ok {
		return store.ErrConflict
	}
	return nil
}

// Take usa GETDEL: lectura y borrado atómicos del lado del servidor.
func (f *Flows) Take(ctx context.Context, state string) (*store.PendingFlow, error) {
	b, err := f.c.GetDel(ctx, f.prefix+state).Bytes()
	if errors.Is(err, rdb.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("flows.take", err)
	}
	var pf store.PendingFlow
	if err := json.Unmarshal(b, &pf); err != nil {
		return nil, store.Unavailable("flows.decode", err)
	}
	return &pf, nil
}

// DeleteStale no hace nada: Redis expira las claves con el TTL de Put.
func (f *Flows) DeleteStale(context.Context, time.Time) (int, error) { return 0, nil }

// Sessions implementa store.SessionStore.
type Sessions struct {
	c      *rdb.Client
	prefix string
}

func (s *Sessions) Create(ctx context.Context, rec store.SessionRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ttl := rec.ExpiresAt.Sub(rec.CreatedAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	ok, err := s.c.SetNX(ctx, s.prefix+rec.IDHash, b, ttl).Result()
	if err != nil {
		return store.Unavailable("sessions.create", err)
	}
	if !ok {
		return store.ErrConflict
	}
	return nil
}

func (s *Sessions) Get(ctx context.Context, idHash string) (*store.SessionRecord, error) {
	b, err := s.c.Get(ctx, s.prefix+idHash).Bytes()
	if errors.Is(err, rdb.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("sessions.get", err)
	}
	var rec store.SessionRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, store.Unavailable("sessions.decode", err)
	}
	return &rec, nil
}

func (s *Sessions) Delete(ctx context.Context, idHash string) error {
	return store.Unavailable("sessions.delete", s.c.Del(ctx, s.prefix+idHash).Err())
}

// DeleteExpired no hace nada: las claves expiran solas.
func (s *Sessions) DeleteExpired(context.Context, time.Time) (int, error) { return 0, nil }
