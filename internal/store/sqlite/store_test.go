package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/socialgate/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "socialgate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	n, err := s.Migrate(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestFlows_TakeOnceUnderConcurrency(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	flows := s.Stores().Flows
	created := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, flows.Put(ctx, "st", store.PendingFlow{Provider: "twitter", Verifier: "ver", ReturnTo: "/protected/profile", CreatedAt: created}, time.Minute))
	require.ErrorIs(t, flows.Put(ctx, "st", store.PendingFlow{Provider: "twitter", CreatedAt: created}, time.Minute), store.ErrConflict)

	var wins, misses int32
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pf, err := flows.Take(ctx, "st")
			switch {
			case err == nil && pf.Verifier == "ver" && pf.CreatedAt.Equal(created):
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, store.ErrNotFound):
				atomic.AddInt32(&misses, 1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, wins)
	require.EqualValues(t, 11, misses)
}

func TestFlows_DeleteStale(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	flows := s.Stores().Flows
	now := time.Now().UTC()

	require.NoError(t, flows.Put(ctx, "old", store.PendingFlow{Provider: "google", CreatedAt: now.Add(-time.Hour)}, 0))
	require.NoError(t, flows.Put(ctx, "fresh", store.PendingFlow{Provider: "google", CreatedAt: now}, 0))

	n, err := flows.DeleteStale(ctx, now.Add(-10*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	pf, err := flows.Take(ctx, "fresh")
	require.NoError(t, err)
	require.Empty(t, pf.Verifier)
}

func TestUsersAndSessions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	st := s.Stores()

	id, err := st.Users.UpsertUser(ctx, store.UpsertUserInput{Provider: "google", ProviderUserID: "sub-1", DisplayName: "Ana", Email: "ana@x.io"})
	require.NoError(t, err)
	again, err := st.Users.UpsertUser(ctx, store.UpsertUserInput{Provider: "google", ProviderUserID: "sub-1", DisplayName: "Ana B"})
	require.NoError(t, err)
	require.Equal(t, id, again)

	usr, err := st.Users.GetUser(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Ana B", usr.DisplayName)
	require.Empty(t, usr.Email)

	now := time.Now().UTC().Truncate(time.Second)
	rec := store.SessionRecord{IDHash: "h", UserID: id, CreatedAt: now, ExpiresAt: now.Add(time.Hour), IP: "10.0.0.1"}
	require.NoError(t, st.Sessions.Create(ctx, rec))
	require.ErrorIs(t, st.Sessions.Create(ctx, rec), store.ErrConflict)

	got, err := st.Sessions.Get(ctx, "h")
	require.NoError(t, err)
	require.True(t, got.ExpiresAt.Equal(rec.ExpiresAt))
	require.Equal(t, "10.0.0.1", got.IP)

	n, err := st.Sessions.DeleteExpired(ctx, now.Add(59*time.Minute))
	require.NoError(t, err)
	require.Zero(t, n)
	n, err = st.Sessions.DeleteExpired(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.NoError(t, st.Sessions.Delete(ctx, "h"))
	_, err = st.Sessions.Get(ctx, "h")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPingAfterClose(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	err := s.Ping(context.Background())
	require.ErrorIs(t, err, store.ErrUnavailable)
}
