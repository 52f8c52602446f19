package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/socialgate/internal/store"
)

// Sessions implementa store.SessionStore.
type Sessions struct{ pool *pgxpool.Pool }

func (r *Sessions) Create(ctx context.Context, s store.SessionRecord) error {
	const q = `
INSERT INTO sessions (id_hash, user_id, created_at, expires_at, ip, user_agent)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, q, s.IDHash, s.UserID, s.CreatedAt, s.ExpiresAt, nullIfEmpty(s.IP), nullIfEmpty(s.UserAgent))
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return store.Unavailable("sessions.create", err)
}

func (r *Sessions) Get(ctx context.Context, idHash string) (*store.SessionRecord, error) {
	const q = `
SELECT id_hash, user_id::text, created_at, expires_at, ip, user_agent
FROM sessions WHERE id_hash = $1`
	var (
		s      store.SessionRecord
		ip, ua *string
	)
	err := r.pool.QueryRow(ctx, q, idHash).Scan(&s.IDHash, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &ip, &ua)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("sessions.get", err)
	}
	s.IP = deref(ip)
	s.UserAgent = deref(ua)
	return &s, nil
}

func (r *Sessions) Delete(ctx context.Context, idHash string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id_hash = $1`, idHash)
	return store.Unavailable("sessions.delete", err)
}

func (r *Sessions) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, store.Unavailable("sessions.delete_expired", err)
	}
	return int(tag.RowsAffected()), nil
}
