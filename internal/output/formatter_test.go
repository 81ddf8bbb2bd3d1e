package output

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataflow/internal/compare"
	"dataflow/internal/core"
	"dataflow/internal/execute"
)

func sampleMigration() *core.Migration {
	return &core.Migration{
		Version: "auto_abc123",
		Dialect: core.DialectPostgreSQL,
		Operations: []core.Operation{
			{
				Kind:        core.OpCreateTable,
				TableName:   "customers",
				SQL:         `CREATE TABLE "customers" ("id" INTEGER PRIMARY KEY)`,
				RollbackSQL: `DROP TABLE "customers"`,
			},
			{
				Kind:        core.OpAddColumn,
				TableName:   "orders",
				ColumnName:  "status",
				SQL:         `ALTER TABLE "orders" ADD COLUMN "status" VARCHAR(255)`,
				RollbackSQL: `ALTER TABLE "orders" DROP COLUMN "status"`,
			},
		},
	}
}

func TestNewFormatter(t *testing.T) {
	for _, name := range []string{"", "summary", "sql", "json", "JSON", " sql "} {
		_, err := NewFormatter(name)
		assert.NoError(t, err, "format %q", name)
	}
	_, err := NewFormatter("yaml")
	require.Error(t, err)
}

func TestSummaryFormatDiff(t *testing.T) {
	d := &compare.SchemaDiff{
		MissingTables: []*core.Table{{Name: "customers", Columns: []*core.Column{{Name: "id"}}}},
		ModifiedTables: []*compare.TableDiff{{
			Name:         "orders",
			AddedColumns: []*core.Column{{Name: "status", TypeRaw: "str"}},
			ExtraColumns: []*core.Column{{Name: "legacy_id"}},
		}},
	}

	f, err := NewFormatter("summary")
	require.NoError(t, err)
	text, err := f.FormatDiff(d)
	require.NoError(t, err)
	assert.Contains(t, text, "+ table customers")
	assert.Contains(t, text, "+ column status str")
	assert.Contains(t, text, "extra column legacy_id left alone")

	empty, err := f.FormatDiff(&compare.SchemaDiff{})
	require.NoError(t, err)
	assert.Contains(t, empty, "up to date")
}

func TestSQLFormatMigration(t *testing.T) {
	f, err := NewFormatter("sql")
	require.NoError(t, err)

	text, err := f.FormatMigration(sampleMigration())
	require.NoError(t, err)
	assert.Contains(t, text, "-- Migration: auto_abc123")
	assert.Contains(t, text, `CREATE TABLE "customers" ("id" INTEGER PRIMARY KEY);`)
	assert.Contains(t, text, "-- Rollback:")
	assert.Contains(t, text, `-- DROP TABLE "customers";`)
}

func TestJSONFormatMigration(t *testing.T) {
	f, err := NewFormatter("json")
	require.NoError(t, err)

	text, err := f.FormatMigration(sampleMigration())
	require.NoError(t, err)

	var payload struct {
		Format   string   `json:"format"`
		Version  string   `json:"version"`
		Checksum string   `json:"checksum"`
		SQL      []string `json:"sql"`
		Rollback []string `json:"rollback"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &payload))
	assert.Equal(t, "json", payload.Format)
	assert.Equal(t, "auto_abc123", payload.Version)
	assert.Len(t, payload.SQL, 2)
	assert.Len(t, payload.Rollback, 2)
	assert.NotEmpty(t, payload.Checksum)
}

func TestSummaryFormatHistory(t *testing.T) {
	f, err := NewFormatter("summary")
	require.NoError(t, err)

	empty, err := f.FormatHistory(nil)
	require.NoError(t, err)
	assert.Contains(t, empty, "No migrations recorded")

	text, err := f.FormatHistory([]execute.HistoryEntry{
		{Version: "auto_abc123", Checksum: "deadbeefdeadbeef", AppliedAt: time.Now(), Success: true},
		{Version: "auto_def456", Checksum: "cafecafecafecafe", AppliedAt: time.Now(), Success: false},
	})
	require.NoError(t, err)
	assert.Contains(t, text, "auto_abc123")
	assert.Contains(t, text, "deadbeefdead")
	assert.Contains(t, text, "FAILED")
}
