package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// cleanupLockKey is the advisory lock key for the presence cleanup
// transaction. Arbitrary but stable: every instance of the service must
// agree on it for the mutual exclusion to hold.
const cleanupLockKey int64 = 7341

// PostgresStore persists documents in a single table of named JSONB bodies.
// It satisfies Store; advisory locks are handed out by NewLocker.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle. The documents table is
// created by db.Migrate.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE name=$1`, name).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", name, err)
	}
	return body, nil
}

func (s *PostgresStore) Save(ctx context.Context, name string, body []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO documents(name, body, updated_at)
		VALUES($1,$2,NOW())
		ON CONFLICT(name) DO UPDATE SET body=EXCLUDED.body, updated_at=NOW()`, name, body)
	if err != nil {
		return fmt.Errorf("save document %s: %w", name, err)
	}
	return nil
}

// NewLocker returns a Locker backed by a Postgres session advisory lock.
func (s *PostgresStore) NewLocker() Locker {
	return &pgLocker{db: s.db}
}

// pgLocker implements Locker with pg_try_advisory_lock. Session advisory
// locks belong to a single connection, so TryAcquire pins one from the pool
// and Release unlocks on that same connection before returning it.
type pgLocker struct {
	db *sql.DB

	mu   sync.Mutex
	conn *sql.Conn
}

func (l *pgLocker) TryAcquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire lock conn: %w", err)
	}
	var got bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, cleanupLockKey).Scan(&got); err != nil {
		_ = conn.Close()
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !got {
		_ = conn.Close()
		return false, nil
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	return true, nil
}

func (l *pgLocker) Release(ctx context.Context) error {
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()
	if conn == nil {
		return nil
	}
	_, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, cleanupLockKey)
	if cerr := conn.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("release advisory lock: %w", err)
	}
	return nil
}
