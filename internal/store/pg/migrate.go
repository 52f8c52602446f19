package pg

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/socialgate/internal/observability/logger"
	migrations "github.com/dropDatabas3/socialgate/migrations/postgres"
)

// migrationLockID deriva la clave de pg_advisory_lock; varias réplicas
// arrancando a la vez aplican las migraciones una sola vez.
func migrationLockID() int64 {
	h := sha256.Sum256([]byte("socialgate_migration"))
	return int64(binary.BigEndian.Uint64(h[:8]))
}

// Migrate aplica los *_up.sql embebidos que falten, en orden lexicográfico.
// Devuelve cuántos scripts aplicó.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	return s.migrateFS(ctx, migrations.FS)
}

func (s *Store) migrateFS(ctx context.Context, fsys fs.FS) (int, error) {
	lockCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conn, err := s.pool.Acquire(lockCtx)
	if err != nil {
		return 0, fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	lockID := migrationLockID()
	if _, err := conn.Exec(lockCtx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
		return 0, fmt.Errorf("migration lock: %w", err)
	}
	defer func() {
		if _, err := conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", lockID); err != nil {
			logger.L().Warn("pg_migration_unlock_failed", logger.Err(err))
		}
	}()

	if _, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return 0, fmt.Errorf("schema_migrations: %w", err)
	}

	files, err := upScripts(fsys)
	if err != nil {
		return 0, err
	}

	var applied int
	for _, name := range files {
		var exists bool
		if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, name).Scan(&exists); err != nil {
			return applied, err
		}
		if exists {
			continue
		}
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return applied, err
		}
		tx, err := conn.Begin(ctx)
		if err != nil {
			return applied, err
		}
		if _, err := tx.Exec(ctx, string(b)); err != nil {
			_ = tx.Rollback(ctx)
			return applied, fmt.Errorf("exec %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback(ctx)
			return applied, err
		}
		if err := tx.Commit(ctx); err != nil {
			return applied, err
		}
		logger.L().Info("pg_migration_applied", zap.String("file", name))
		applied++
	}
	return applied, nil
}

func upScripts(fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), "_up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
