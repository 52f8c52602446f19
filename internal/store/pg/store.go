// Package pg implementa los stores sobre PostgreSQL (pgx/pgxpool).
package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	"github.com/dropDatabas3/socialgate/internal/store"
)

// Options ajusta el pool. Ceros = defaults de pgxpool.
type Options struct {
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
}

type Store struct{ pool *pgxpool.Pool }

// Pool expone el pool interno (migraciones, tests).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func New(ctx context.Context, dsn string, opts Options) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if opts.MaxConns > 0 {
		pcfg.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		pcfg.MinConns = int32(opts.MinConns)
	}
	if opts.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = opts.ConnMaxLifetime
		pcfg.MaxConnIdleTime = opts.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	// Arranque no bloqueante: si la DB está caída, /health lo reporta.
	log := logger.L().With(logger.Component("store.pg"))
	if err := pool.Ping(ctx); err != nil {
		log.Warn("pg_pool_startup_ping_failed", logger.Err(err))
	} else {
		log.Info("pg_pool_ready", zap.Int32("max_conns", pcfg.MaxConns))
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return store.Unavailable("ping", s.pool.Ping(ctx))
}

// Stores arma el set completo sobre este pool.
func (s *Store) Stores() *store.Stores {
	return &store.Stores{
		Flows:    &Flows{pool: s.pool},
		Sessions: &Sessions{pool: s.pool},
		Users:    &Users{pool: s.pool},
		Pingers:  map[string]store.Pinger{"postgres": s},
		Closers:  []func() error{func() error { s.Close(); return nil }},
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" // unique_violation
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
