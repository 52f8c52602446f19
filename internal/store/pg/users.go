package pg

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/socialgate/internal/store"
)

// Users implementa store.UserStore.
type Users struct{ pool *pgxpool.Pool }

// UpsertUser es un único statement: dos callbacks concurrentes del mismo
// usuario externo terminan con la misma fila.
func (u *Users) UpsertUser(ctx context.Context, in store.UpsertUserInput) (string, error) {
	const q = `
INSERT INTO app_user (id, provider, provider_user_id, display_name, email, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
ON CONFLICT (provider, provider_user_id) DO UPDATE
SET display_name = EXCLUDED.display_name,
    email = EXCLUDED.email,
    updated_at = NOW()
RETURNING id::text`
	var id string
	err := u.pool.QueryRow(ctx, q, uuid.NewString(), in.Provider, in.ProviderUserID, in.DisplayName, nullIfEmpty(in.Email)).Scan(&id)
	if err != nil {
		return "", store.Unavailable("users.upsert", err)
	}
	return id, nil
}

func (u *Users) GetUser(ctx context.Context, id string) (*store.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrNotFound
	}
	const q = `
SELECT id::text, provider, provider_user_id, display_name, email, created_at, updated_at
FROM app_user WHERE id = $1`
	var (
		usr   store.User
		email *string
	)
	err := u.pool.QueryRow(ctx, q, id).Scan(&usr.ID, &usr.Provider, &usr.ProviderUserID, &usr.DisplayName, &email, &usr.CreatedAt, &usr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("users.get", err)
	}
	usr.Email = deref(email)
	return &usr, nil
}
