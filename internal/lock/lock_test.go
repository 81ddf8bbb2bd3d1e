package lock

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataflow/internal/core"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "lock.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteLockAcquireRelease(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	locker, err := NewLocker(core.DialectSQLite)
	require.NoError(t, err)

	h, err := locker.Acquire(ctx, db, DefaultKey, time.Second)
	require.NoError(t, err)
	assert.Equal(t, DefaultKey, h.Key())

	// A second acquirer with a short timeout must time out while the lock is
	// held.
	start := time.Now()
	_, err = locker.Acquire(ctx, db, DefaultKey, 600*time.Millisecond)
	require.Error(t, err)
	var timeoutErr *core.LockTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, DefaultKey, timeoutErr.Key)
	assert.GreaterOrEqual(t, time.Since(start), 600*time.Millisecond)

	require.NoError(t, h.Release(ctx))
	require.NoError(t, h.Release(ctx), "second release is a no-op")

	// After release the lock is free again.
	h2, err := locker.Acquire(ctx, db, DefaultKey, time.Second)
	require.NoError(t, err)
	require.NoError(t, h2.Release(ctx))
}

func TestSQLiteLockIndependentKeys(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	locker, err := NewLocker(core.DialectSQLite)
	require.NoError(t, err)

	h1, err := locker.Acquire(ctx, db, "migrate_orders", time.Second)
	require.NoError(t, err)
	h2, err := locker.Acquire(ctx, db, "migrate_customers", time.Second)
	require.NoError(t, err, "different keys never contend")

	require.NoError(t, h1.Release(ctx))
	require.NoError(t, h2.Release(ctx))
}

func TestSQLiteStaleLockReclaimed(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	locker, err := NewLocker(core.DialectSQLite)
	require.NoError(t, err)

	// Take the lock and never release it, as a crashed process would, then
	// backdate the row past the staleness bound.
	_, err = locker.Acquire(ctx, db, DefaultKey, time.Second)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET acquired_at = ? WHERE name = ?`, lockTable),
		time.Now().UTC().Add(-lockStaleAfter-time.Minute), DefaultKey)
	require.NoError(t, err)

	h, err := locker.Acquire(ctx, db, DefaultKey, time.Second)
	require.NoError(t, err, "a stale row must not block acquisition forever")
	require.NoError(t, h.Release(ctx))
}

func TestLockAcquireContextCancel(t *testing.T) {
	db := openTestDB(t)
	locker, err := NewLocker(core.DialectSQLite)
	require.NoError(t, err)

	held, err := locker.Acquire(context.Background(), db, DefaultKey, time.Second)
	require.NoError(t, err)
	defer held.Release(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err = locker.Acquire(ctx, db, DefaultKey, time.Minute)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAdvisoryKeyStability(t *testing.T) {
	assert.Equal(t, advisoryKey("dataflow_migration"), advisoryKey("dataflow_migration"))
	assert.NotEqual(t, advisoryKey("a"), advisoryKey("b"))
}

func TestMySQLLockNameTruncation(t *testing.T) {
	long := ""
	for i := 0; i < 10; i++ {
		long += "0123456789"
	}
	assert.Len(t, mysqlLockName(long), 64)
	assert.Equal(t, "short", mysqlLockName("short"))
}

func TestNewLockerUnknownDialect(t *testing.T) {
	_, err := NewLocker(core.Dialect("oracle"))
	require.Error(t, err)
}
