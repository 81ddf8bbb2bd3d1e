package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataflow/internal/core"
	"dataflow/internal/execute"
	"dataflow/internal/model"
)

func testModels(t *testing.T) *model.Registry {
	t.Helper()
	reg := model.NewRegistry("crm")
	require.NoError(t, reg.Register(&core.Table{
		Name: "customers",
		Columns: []*core.Column{
			{Name: "id", TypeRaw: "int", PrimaryKey: true},
			{Name: "customer_code", TypeRaw: "str"},
			{Name: "email", TypeRaw: "str", Nullable: true},
		},
		Indexes: []*core.Index{
			{Name: "idx_customers_code", Columns: []string{"customer_code"}, Unique: true},
		},
	}))
	require.NoError(t, reg.Register(&core.Table{
		Name: "orders",
		Columns: []*core.Column{
			{Name: "id", TypeRaw: "int", PrimaryKey: true},
			{Name: "customer_id", TypeRaw: "int"},
		},
		ForeignKeys: []*core.ForeignKey{
			{Column: "customer_id", TargetTable: "customers", TargetColumn: "id"},
		},
	}))
	return reg
}

func testDatabaseURL(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	// Touch the file so inspection of the empty database succeeds.
	require.NoError(t, db.Ping())
	require.NoError(t, db.Close())
	return "sqlite://" + path
}

func TestAutoMigrateEndToEnd(t *testing.T) {
	url := testDatabaseURL(t)
	ctx := context.Background()
	runner := NewRunner(nil)

	report, err := runner.AutoMigrate(ctx, Options{
		DatabaseURL: url,
		Models:      testModels(t),
		AutoConfirm: true,
	})
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	require.NotNil(t, report.Result)
	assert.True(t, report.Changed())
	require.Len(t, report.Diff.MissingTables, 2)

	db, err := sql.Open("sqlite3", report.Target.DSN)
	require.NoError(t, err)
	defer db.Close()
	for _, table := range []string{"customers", "orders", "dataflow_migrations"} {
		var n int
		require.NoError(t, db.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&n))
		assert.Equal(t, 1, n, "table %s must exist after migration", table)
	}

	t.Run("second run is a no-op", func(t *testing.T) {
		again, err := runner.AutoMigrate(ctx, Options{
			DatabaseURL: url,
			Models:      testModels(t),
			AutoConfirm: true,
		})
		require.NoError(t, err)
		assert.Equal(t, StateDone, again.State)
		assert.True(t, again.Diff.IsEmpty(), "converged schema needs no migration")
		assert.False(t, again.Changed())
	})
}

func TestAutoMigrateDryRun(t *testing.T) {
	url := testDatabaseURL(t)
	runner := NewRunner(nil)

	report, err := runner.AutoMigrate(context.Background(), Options{
		DatabaseURL: url,
		Models:      testModels(t),
		DryRun:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	require.NotNil(t, report.Migration)
	assert.False(t, report.Migration.IsEmpty())
	assert.Nil(t, report.Result, "dry run executes nothing")

	db, err := sql.Open("sqlite3", report.Target.DSN)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'`).Scan(&n))
	assert.Zero(t, n, "dry run leaves the database untouched")
}

func TestAutoMigrateConfirmationDeclined(t *testing.T) {
	url := testDatabaseURL(t)
	runner := NewRunner(nil)

	confirmed := false
	report, err := runner.AutoMigrate(context.Background(), Options{
		DatabaseURL: url,
		Models:      testModels(t),
		Confirm: func(m *core.Migration, pf *execute.Preflight) (bool, error) {
			confirmed = true
			assert.False(t, m.IsEmpty())
			return false, nil
		},
	})
	require.ErrorIs(t, err, core.ErrConfirmationDeclined)
	assert.True(t, confirmed)
	assert.Equal(t, StateFailed, report.State)
	assert.Nil(t, report.Result)
}

func TestAutoMigrateRequiresModels(t *testing.T) {
	runner := NewRunner(nil)
	report, err := runner.AutoMigrate(context.Background(), Options{
		DatabaseURL: "sqlite://ignored.db",
		Models:      model.NewRegistry("empty"),
	})
	require.Error(t, err)
	assert.Equal(t, StateFailed, report.State)
}

func TestAutoMigrateRejectsInMemoryTarget(t *testing.T) {
	runner := NewRunner(nil)
	_, err := runner.AutoMigrate(context.Background(), Options{
		DatabaseURL: "sqlite://:memory:",
		Models:      testModels(t),
	})
	require.Error(t, err)
	var discErr *core.SchemaDiscoveryError
	require.ErrorAs(t, err, &discErr)
}
