package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dropDatabas3/socialgate/internal/store"
)

// Flows implementa store.FlowStore.
type Flows struct{ db *sql.DB }

func (f *Flows) Put(ctx context.Context, state string, pf store.PendingFlow, _ time.Duration) error {
	_, err := f.db.ExecContext(ctx, `
INSERT INTO pending_flows (state, provider, code_verifier, return_to, created_at)
VALUES (?, ?, ?, ?, ?)`,
		state, pf.Provider, nullIfEmpty(pf.Verifier), nullIfEmpty(pf.ReturnTo), toMillis(pf.CreatedAt))
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return store.Unavailable("flows.put", err)
}

func (f *Flows) Take(ctx context.Context, state string) (*store.PendingFlow, error) {
	var (
		pf                 store.PendingFlow
		verifier, returnTo sql.NullString
		createdAt          int64
	)
	err := f.db.QueryRowContext(ctx, `
DELETE FROM pending_flows WHERE state = ?
RETURNING provider, code_verifier, return_to, created_at`, state).
		Scan(&pf.Provider, &verifier, &returnTo, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Unavailable("flows.take", err)
	}
	pf.Verifier = verifier.String
	pf.ReturnTo = returnTo.String
	pf.CreatedAt = fromMillis(createdAt)
	return &pf, nil
}

func (f *Flows) DeleteStale(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := f.db.ExecContext(ctx, `DELETE FROM pending_flows WHERE created_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, store.Unavailable("flows.delete_stale", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
