package lock

import (
	"context"
	"database/sql"
	"time"
)

// mysqlLocker uses GET_LOCK with a zero server-side wait; polling happens
// client side so cancellation and timeout behave the same on every dialect.
type mysqlLocker struct{}

// MySQL caps lock names at 64 characters.
func mysqlLockName(key string) string {
	if len(key) > 64 {
		return key[:64]
	}
	return key
}

func (l *mysqlLocker) Acquire(ctx context.Context, db *sql.DB, key string, timeout time.Duration) (*Handle, error) {
	name := mysqlLockName(key)

	try := func(ctx context.Context, conn *sql.Conn) (bool, error) {
		var got sql.NullInt64
		if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, 0)", name).Scan(&got); err != nil {
			return false, err
		}
		return got.Valid && got.Int64 == 1, nil
	}
	release := func(ctx context.Context, conn *sql.Conn) error {
		var released sql.NullInt64
		return conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", name).Scan(&released)
	}
	return acquireWithPoll(ctx, db, key, timeout, try, release)
}
