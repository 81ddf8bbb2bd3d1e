// Package lock serializes concurrent migration runs against one database.
// Every dialect exposes some flavor of cooperative lock: Postgres and MySQL
// have native advisory locks, SQLite gets a dedicated lock table. The lock is
// always released on completion or failure. A crashed holder's advisory lock
// is released by the server when the connection dies; the SQLite lock table
// has no session to tie a row to, so stale rows expire after a staleness
// bound instead.
package lock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dataflow/internal/core"
)

const (
	// DefaultTimeout bounds how long an acquirer waits before giving up.
	DefaultTimeout = 30 * time.Second
	// pollInterval is the retry cadence while another holder has the lock.
	pollInterval = 250 * time.Millisecond
)

// DefaultKey is the lock name used when the caller does not provide one.
const DefaultKey = "dataflow_migration"

// Handle represents one held lock. Release must be called exactly once; it is
// safe to call from a deferred statement after a failed migration.
type Handle struct {
	key      string
	conn     *sql.Conn
	released bool
	release  func(ctx context.Context, conn *sql.Conn) error
}

// Key returns the lock's name.
func (h *Handle) Key() string { return h.key }

// Release frees the lock and returns the pinned connection to the pool.
// Calling it twice is a no-op.
func (h *Handle) Release(ctx context.Context) error {
	if h.released {
		return nil
	}
	h.released = true

	var releaseErr error
	if h.release != nil {
		releaseErr = h.release(ctx, h.conn)
	}
	if err := h.conn.Close(); err != nil && releaseErr == nil {
		releaseErr = err
	}
	if releaseErr != nil {
		return fmt.Errorf("releasing lock %q: %w", h.key, releaseErr)
	}
	return nil
}

// Locker acquires named locks for one dialect.
type Locker interface {
	// Acquire blocks until the lock is held, the timeout elapses, or ctx is
	// canceled. A timeout surfaces as a core.LockTimeoutError.
	Acquire(ctx context.Context, db *sql.DB, key string, timeout time.Duration) (*Handle, error)
}

// NewLocker returns the lock implementation for a dialect.
func NewLocker(dialect core.Dialect) (Locker, error) {
	switch dialect {
	case core.DialectPostgreSQL:
		return &postgresLocker{}, nil
	case core.DialectMySQL:
		return &mysqlLocker{}, nil
	case core.DialectSQLite:
		return &sqliteLocker{}, nil
	default:
		return nil, fmt.Errorf("no lock implementation for dialect %q", dialect)
	}
}

// acquireWithPoll runs try once per poll interval on a pinned connection until
// it succeeds or the deadline passes. The connection is handed to the Handle
// on success and closed on every failure path.
func acquireWithPoll(
	ctx context.Context,
	db *sql.DB,
	key string,
	timeout time.Duration,
	try func(ctx context.Context, conn *sql.Conn) (bool, error),
	release func(ctx context.Context, conn *sql.Conn) error,
) (*Handle, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring lock connection: %w", err)
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := try(ctx, conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("acquiring lock %q: %w", key, err)
		}
		if ok {
			return &Handle{key: key, conn: conn, release: release}, nil
		}
		if time.Now().After(deadline) {
			conn.Close()
			return nil, &core.LockTimeoutError{Key: key, Timeout: timeout}
		}
		select {
		case <-ctx.Done():
			conn.Close()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
