package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/socialgate/internal/store"
)

// Users implementa store.UserStore.
type Users struct{ db *sql.DB }

func (u *Users) UpsertUser(ctx context.Context, in store.UpsertUserInput) (string, error) {
	now := toMillis(time.Now())
	var id string
	err := u.db.QueryRowContext(ctx, `
INSERT INTO app_user (id, provider, provider_user_id, display_name, email, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (provider, provider_user_id) DO UPDATE
SET display_name = excluded.display_name,
    email = excluded.email,
    updated_at = excluded.updated_at
RETURNING id`,
		uuid.NewString(), in.Provider, in.ProviderUserID, in.DisplayName, nullIfEmpty(in.Email), now, now).Scan(&id)
	if err != nil {
		return "", store.Unavailable("users.upsert", err)
	}
	return id, nil
}

func (u *Users) GetUser(ctx context.Context, id string) (*store.User, error) {
	var (
		usr                  store.User
		email                sql.NullString
		createdAt, updatedAt int64
	)
	err := u.db.QueryRowContext(ctx, `
SELECT id, provider, provider_user_id, display_name, email, created_at, updated_at
FROM app_user WHERE id = ?`, id).
		Scan(&usr.ID, &usr.Provider, &usr.ProviderUserID, &usr.DisplayName, &email, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("users.get", err)
	}
	usr.Email = email.String
	usr.CreatedAt = fromMillis(createdAt)
	usr.UpdatedAt = fromMillis(updatedAt)
	return &usr, nil
}
