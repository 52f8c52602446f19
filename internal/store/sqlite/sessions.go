package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dropDatabas3/socialgate/internal/store"
)

// Sessions implementa store.SessionStore.
type Sessions struct{ db *sql.DB }

func (r *Sessions) Create(ctx context.Context, s store.SessionRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (id_hash, user_id, created_at, expires_at, ip, user_agent)
VALUES (?, ?, ?, ?, ?, ?)`,
		s.IDHash, s.UserID, toMillis(s.CreatedAt), toMillis(s.ExpiresAt), nullIfEmpty(s.IP), nullIfEmpty(s.UserAgent))
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return store.Unavailable("sessions.create", err)
}

func (r *Sessions) Get(ctx context.Context, idHash string) (*store.SessionRecord, error) {
	var (
		s                    store.SessionRecord
		createdAt, expiresAt int64
		ip, ua               sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
SELECT id_hash, user_id, created_at, expires_at, ip, user_agent
FROM sessions WHERE id_hash = ?`, idHash).
		Scan(&s.IDHash, &s.UserID, &createdAt, &expiresAt, &ip, &ua)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("sessions.get", err)
	}
	s.CreatedAt = fromMillis(createdAt)
	s.ExpiresAt = fromMillis(expiresAt)
	s.IP = ip.String
	s.UserAgent = ua.String
	return &s, nil
}

func (r *Sessions) Delete(ctx context.Context, idHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id_hash = ?`, idHash)
	return store.Unavailable("sessions.delete", err)
}

func (r *Sessions) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, store.Unavailable("sessions.delete_expired", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
