package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/socialgate/internal/store"
)

// Flows implementa store.FlowStore. La retención la resuelve el sweeper
// (DeleteStale); Take no depende de ella.
type Flows struct{ pool *pgxpool.Pool }

func (f *Flows) Put(ctx context.Context, state string, pf store.PendingFlow, _ time.Duration) error {
	const q = `
INSERT INTO pending_flows (state, provider, code_verifier, return_to, created_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := f.pool.Exec(ctx, q, state, pf.Provider, nullIfEmpty(pf.Verifier), nullIfEmpty(pf.ReturnTo), pf.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return store.Unavailable("flows.put", err)
}

// Take borra y devuelve en un solo statement; dos llamadas concurrentes
// no pueden ver la misma fila.
func (f *Flows) Take(ctx context.Context, state string) (*store.PendingFlow, error) {
	const q = `
DELETE FROM pending_flows WHERE state = $1
RETURNING provider, code_verifier, return_to, created_at`
	var (
		pf       store.PendingFlow
		verifier *string
		returnTo *string
	)
	err := f.pool.QueryRow(ctx, q, state).Scan(&pf.Provider, &verifier, &returnTo, &pf.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("flows.take", err)
	}
	pf.Verifier = deref(verifier)
	pf.ReturnTo = deref(returnTo)
	return &pf, nil
}

func (f *Flows) DeleteStale(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := f.pool.Exec(ctx, `DELETE FROM pending_flows WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, store.Unavailable("flows.delete_stale", err)
	}
	return int(tag.RowsAffected()), nil
}
