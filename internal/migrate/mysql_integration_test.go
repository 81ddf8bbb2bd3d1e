package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
)

type testMySQLTarget struct {
	url string
	db  *sql.DB
}

func TestAutoMigrateMySQLIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tc := setupMySQL(t)
	ctx := context.Background()
	runner := NewRunner(nil)

	report, err := runner.AutoMigrate(ctx, Options{
		DatabaseURL: tc.url,
		Models:      testModels(t),
		AutoConfirm: true,
	})
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	require.NotNil(t, report.Result)
	assert.True(t, report.Changed())

	for _, table := range []string{"customers", "orders", "dataflow_migrations"} {
		var n int
		require.NoError(t, tc.db.QueryRow(
			`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`,
			table).Scan(&n))
		assert.Equal(t, 1, n, "table %s must exist after migration", table)
	}

	t.Run("foreign key applied", func(t *testing.T) {
		var n int
		require.NoError(t, tc.db.QueryRow(
			`SELECT COUNT(*) FROM information_schema.key_column_usage
			 WHERE table_schema = DATABASE() AND table_name = 'orders'
			   AND referenced_table_name = 'customers'`).Scan(&n))
		assert.Equal(t, 1, n)
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		again, err := runner.AutoMigrate(ctx, Options{
			DatabaseURL: tc.url,
			Models:      testModels(t),
			AutoConfirm: true,
		})
		require.NoError(t, err)
		assert.True(t, again.Diff.IsEmpty())
		assert.False(t, again.Changed())
	})
}

func setupMySQL(t *testing.T) *testMySQLTarget {
	t.Helper()
	ctx := context.Background()

	mysqlContainer, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("testdb"),
		mysql.WithUsername("root"),
		mysql.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start MySQL container")

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(mysqlContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := mysqlContainer.Host(ctx)
	require.NoError(t, err)
	port, err := mysqlContainer.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	dsn, err := mysqlContainer.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err, "failed to get connection string")

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err, "failed to open direct DB connection")
	require.NoError(t, db.PingContext(ctx), "failed to ping database")
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close DB connection: %v", err)
		}
	})

	return &testMySQLTarget{
		url: fmt.Sprintf("mysql://root:testpass@%s:%s/testdb", host, port.Port()),
		db:  db,
	}
}
