package lock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"
)

// postgresLocker uses session-scoped advisory locks. The lock key is hashed to
// the signed 64-bit integer pg_try_advisory_lock expects; the hash only has to
// be stable across processes, not secret.
type postgresLocker struct{}

func advisoryKey(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

func (l *postgresLocker) Acquire(ctx context.Context, db *sql.DB, key string, timeout time.Duration) (*Handle, error) {
	id := advisoryKey(key)

	try := func(ctx context.Context, conn *sql.Conn) (bool, error) {
		var got bool
		err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", id).Scan(&got)
		return got, err
	}
	release := func(ctx context.Context, conn *sql.Conn) error {
		var unlocked bool
		return conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", id).Scan(&unlocked)
	}
	return acquireWithPoll(ctx, db, key, timeout, try, release)
}
