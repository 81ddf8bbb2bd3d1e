package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDataType(t *testing.T) {
	cases := map[string]DataType{
		"VARCHAR(255)":                DataTypeString,
		"character varying":           DataTypeString,
		"TEXT":                        DataTypeString,
		"INT":                         DataTypeInt,
		"bigint":                      DataTypeInt,
		"BIGSERIAL":                   DataTypeInt,
		"tinyint(1)":                  DataTypeBoolean,
		"BOOLEAN":                     DataTypeBoolean,
		"timestamp with time zone":    DataTypeDatetime,
		"DATETIME":                    DataTypeDatetime,
		"date":                        DataTypeDatetime,
		"NUMERIC(10,2)":               DataTypeFloat,
		"double precision":            DataTypeFloat,
		"jsonb":                       DataTypeJSON,
		"uuid":                        DataTypeUUID,
		"BYTEA":                       DataTypeBinary,
		"varbinary(16)":               DataTypeBinary,
		"geometry":                    DataTypeUnknown,
		"":                            DataTypeUnknown,
	}

	for raw, want := range cases {
		assert.Equal(t, want, NormalizeDataType(raw), "raw type %q", raw)
	}
}

func TestTypesAreCompatible(t *testing.T) {
	t.Run("string aliases", func(t *testing.T) {
		for _, alias := range []string{"varchar", "varchar(100)", "text", "character varying"} {
			assert.True(t, TypesAreCompatible("str", alias), "str vs %s", alias)
			assert.True(t, TypesAreCompatible(alias, "str"), "%s vs str", alias)
		}
	})

	t.Run("int aliases", func(t *testing.T) {
		for _, alias := range []string{"integer", "bigint", "serial", "INT"} {
			assert.True(t, TypesAreCompatible("int", alias))
			assert.True(t, TypesAreCompatible(alias, "int"))
		}
	})

	t.Run("float aliases", func(t *testing.T) {
		for _, alias := range []string{"decimal(10,2)", "numeric", "real", "double precision"} {
			assert.True(t, TypesAreCompatible("float", alias))
		}
	})

	t.Run("datetime aliases", func(t *testing.T) {
		assert.True(t, TypesAreCompatible("datetime", "timestamp with time zone"))
		assert.True(t, TypesAreCompatible("datetime", "timestamp without time zone"))
		assert.True(t, TypesAreCompatible("timestamptz", "datetime"))
	})

	t.Run("mismatches", func(t *testing.T) {
		assert.False(t, TypesAreCompatible("str", "integer"))
		assert.False(t, TypesAreCompatible("int", "varchar(50)"))
		assert.False(t, TypesAreCompatible("bool", "timestamp"))
	})

	t.Run("unknown never compatible", func(t *testing.T) {
		assert.False(t, TypesAreCompatible("geometry", "geometry"))
		assert.False(t, TypesAreCompatible("", "varchar"))
	})
}

func TestFindHelpers(t *testing.T) {
	db := &Database{Tables: []*Table{
		{
			Name: "users",
			Columns: []*Column{
				{Name: "id", TypeRaw: "int", Type: DataTypeInt, PrimaryKey: true},
				{Name: "email", TypeRaw: "varchar(255)", Type: DataTypeString, Unique: true},
			},
			Indexes: []*Index{{Name: "idx_users_email", Columns: []string{"email"}, Unique: true}},
		},
	}}

	require.NotNil(t, db.FindTable("USERS"), "table lookup is case-insensitive")
	assert.Nil(t, db.FindTable("orders"))

	tbl := db.FindTable("users")
	require.NotNil(t, tbl.FindColumn("Email"))
	assert.Nil(t, tbl.FindColumn("missing"))
	require.NotNil(t, tbl.FindIndex("idx_users_email"))
	assert.Equal(t, []string{"id"}, tbl.PrimaryKeyColumns())
}

func TestMigrationChecksum(t *testing.T) {
	ops := []Operation{
		{Kind: OpCreateTable, TableName: "users", SQL: "CREATE TABLE users (id INTEGER);"},
		{Kind: OpAddColumn, TableName: "users", ColumnName: "email", SQL: "ALTER TABLE users ADD COLUMN email TEXT;"},
	}

	a := &Migration{Version: "v1", Operations: ops}
	b := &Migration{Version: "v2", Operations: ops}

	t.Run("pure function of operations", func(t *testing.T) {
		assert.Equal(t, a.Checksum(), b.Checksum(), "version must not affect the checksum")
		assert.Equal(t, a.Checksum(), a.Checksum())
	})

	t.Run("sensitive to operation content", func(t *testing.T) {
		c := &Migration{Operations: []Operation{ops[0]}}
		assert.NotEqual(t, a.Checksum(), c.Checksum())

		reordered := &Migration{Operations: []Operation{ops[1], ops[0]}}
		assert.NotEqual(t, a.Checksum(), reordered.Checksum())
	})
}

func TestMigrationStatements(t *testing.T) {
	m := &Migration{Operations: []Operation{
		{Kind: OpCreateTable, TableName: "a", SQL: "CREATE TABLE a (id INTEGER);", RollbackSQL: "DROP TABLE a;"},
		{Kind: OpAddColumn, TableName: "a", ColumnName: "x", SQL: "ALTER TABLE a ADD COLUMN x TEXT;", RollbackSQL: "ALTER TABLE a DROP COLUMN x;"},
		{Kind: OpCreateIndex, TableName: "a", ObjectName: "idx", SQL: "  "},
	}}

	assert.Len(t, m.Statements(), 2, "blank SQL is skipped")
	rb := m.RollbackStatements()
	require.Len(t, rb, 2)
	assert.Equal(t, "ALTER TABLE a DROP COLUMN x;", rb[0], "rollback runs in reverse order")
	assert.False(t, m.IsEmpty())
	assert.False(t, m.HasDestructive())

	m.Operations = append(m.Operations, Operation{Kind: OpDropColumn, TableName: "a", ColumnName: "x", SQL: "ALTER TABLE a DROP COLUMN x;"})
	assert.True(t, m.HasDestructive())
}

func TestOperationKindDestructive(t *testing.T) {
	assert.True(t, OpDropTable.Destructive())
	assert.True(t, OpDropColumn.Destructive())
	assert.False(t, OpDropIndex.Destructive())
	assert.False(t, OpDropConstraint.Destructive())
	assert.False(t, OpCreateTable.Destructive())
}
