package lock

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// lockTable backs cooperative locking on SQLite, which has no advisory locks.
// Holding the lock is owning the row; releasing is deleting it. The file-level
// write serialization of SQLite makes the INSERT race-free.
const lockTable = "dataflow_migration_lock"

// lockStaleAfter bounds how long a row left behind by a crashed holder can
// block later acquirers. A live holder finishes or fails well inside this
// window; rows older than it are reclaimed before each acquisition attempt.
const lockStaleAfter = 10 * time.Minute

type sqliteLocker struct{}

func (l *sqliteLocker) Acquire(ctx context.Context, db *sql.DB, key string, timeout time.Duration) (*Handle, error) {
	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, acquired_at TIMESTAMP NOT NULL)`,
		lockTable)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("preparing lock table: %w", err)
	}

	try := func(ctx context.Context, conn *sql.Conn) (bool, error) {
		if _, err := conn.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE name = ? AND acquired_at < ?`, lockTable),
			key, time.Now().UTC().Add(-lockStaleAfter)); err != nil {
			return false, err
		}
		res, err := conn.ExecContext(ctx,
			fmt.Sprintf(`INSERT OR IGNORE INTO %s (name, acquired_at) VALUES (?, ?)`, lockTable),
			key, time.Now().UTC())
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		return n == 1, nil
	}
	release := func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE name = ?`, lockTable), key)
		return err
	}
	return acquireWithPoll(ctx, db, key, timeout, try, release)
}
