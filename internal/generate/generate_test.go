package generate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataflow/internal/compare"
	"dataflow/internal/core"
)

func col(name, typeRaw string, nullable bool) *core.Column {
	return &core.Column{
		Name:     name,
		TypeRaw:  typeRaw,
		Type:     core.NormalizeDataType(typeRaw),
		Nullable: nullable,
	}
}

func customersTable() *core.Table {
	return &core.Table{
		Name: "customers",
		Columns: []*core.Column{
			{Name: "id", TypeRaw: "int", Type: core.DataTypeInt, PrimaryKey: true},
			col("company_name", "str", false),
			col("email", "str", true),
		},
		Indexes: []*core.Index{
			{Name: "idx_customers_email", Columns: []string{"email"}, Unique: true},
		},
	}
}

func ordersTable() *core.Table {
	return &core.Table{
		Name: "orders",
		Columns: []*core.Column{
			{Name: "id", TypeRaw: "int", Type: core.DataTypeInt, PrimaryKey: true},
			col("customer_id", "int", false),
		},
		ForeignKeys: []*core.ForeignKey{
			{Column: "customer_id", TargetTable: "customers", TargetColumn: "id"},
		},
	}
}

func kinds(m *core.Migration) []core.OperationKind {
	out := make([]core.OperationKind, len(m.Operations))
	for i, op := range m.Operations {
		out[i] = op.Kind
	}
	return out
}

func indexOfKind(m *core.Migration, k core.OperationKind) int {
	for i, op := range m.Operations {
		if op.Kind == k {
			return i
		}
	}
	return -1
}

func TestGenerateCreateTableBeforeDependents(t *testing.T) {
	g, err := NewGenerator(core.DialectPostgreSQL)
	require.NoError(t, err)

	// orders listed first: the generator must still create customers first.
	diff := &compare.SchemaDiff{MissingTables: []*core.Table{ordersTable(), customersTable()}}
	m, err := g.Generate(diff, Options{})
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(m.Operations), 4)
	assert.Equal(t, core.OpCreateTable, m.Operations[0].Kind)
	assert.Equal(t, "customers", m.Operations[0].TableName)
	assert.Equal(t, core.OpCreateTable, m.Operations[1].Kind)
	assert.Equal(t, "orders", m.Operations[1].TableName)

	createIdx := indexOfKind(m, core.OpCreateTable)
	fkIdx := indexOfKind(m, core.OpAddConstraint)
	idxIdx := indexOfKind(m, core.OpCreateIndex)
	require.NotEqual(t, -1, fkIdx)
	require.NotEqual(t, -1, idxIdx)
	assert.Less(t, createIdx, fkIdx, "constraints come after every CREATE TABLE")
	assert.Less(t, createIdx, idxIdx, "indexes come after every CREATE TABLE")
}

func TestGenerateAddColumnAfterCreateTable(t *testing.T) {
	g, err := NewGenerator(core.DialectPostgreSQL)
	require.NoError(t, err)

	diff := &compare.SchemaDiff{
		MissingTables: []*core.Table{customersTable()},
		ModifiedTables: []*compare.TableDiff{{
			Name:         "orders",
			AddedColumns: []*core.Column{col("status", "str", true)},
		}},
	}
	m, err := g.Generate(diff, Options{})
	require.NoError(t, err)

	createIdx := indexOfKind(m, core.OpCreateTable)
	addIdx := indexOfKind(m, core.OpAddColumn)
	require.NotEqual(t, -1, createIdx)
	require.NotEqual(t, -1, addIdx)
	assert.Less(t, createIdx, addIdx, "CREATE TABLE always precedes ADD COLUMN")
}

func TestGenerateDestructiveGating(t *testing.T) {
	g, err := NewGenerator(core.DialectPostgreSQL)
	require.NoError(t, err)

	diff := &compare.SchemaDiff{
		ExtraTables: []*core.Table{ordersTable()},
		ModifiedTables: []*compare.TableDiff{{
			Name:         "customers",
			ExtraColumns: []*core.Column{col("legacy_id", "integer", true)},
		}},
	}

	m, err := g.Generate(diff, Options{})
	require.NoError(t, err)
	assert.True(t, m.IsEmpty(), "destructive operations are suppressed by default")

	m, err = g.Generate(diff, Options{AllowDestructive: true})
	require.NoError(t, err)
	assert.True(t, m.HasDestructive())
	assert.NotEqual(t, -1, indexOfKind(m, core.OpDropTable))
	assert.NotEqual(t, -1, indexOfKind(m, core.OpDropColumn))

	dropConstraintIdx := indexOfKind(m, core.OpDropConstraint)
	dropTableIdx := indexOfKind(m, core.OpDropTable)
	require.NotEqual(t, -1, dropConstraintIdx)
	assert.Less(t, dropConstraintIdx, dropTableIdx,
		"foreign keys are dropped before their table")
}

func TestGenerateVersionDefaultsToChecksum(t *testing.T) {
	g, err := NewGenerator(core.DialectPostgreSQL)
	require.NoError(t, err)

	diff := &compare.SchemaDiff{MissingTables: []*core.Table{customersTable()}}

	m1, err := g.Generate(diff, Options{})
	require.NoError(t, err)
	m2, err := g.Generate(diff, Options{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(m1.Version, "auto_"))
	assert.Equal(t, m1.Version, m2.Version, "same diff yields the same version label")

	named, err := g.Generate(diff, Options{Version: "2026_08_baseline"})
	require.NoError(t, err)
	assert.Equal(t, "2026_08_baseline", named.Version)
}

func TestGenerateRollbackStatements(t *testing.T) {
	g, err := NewGenerator(core.DialectMySQL)
	require.NoError(t, err)

	diff := &compare.SchemaDiff{
		MissingTables: []*core.Table{customersTable()},
		ModifiedTables: []*compare.TableDiff{{
			Name:         "orders",
			AddedColumns: []*core.Column{col("status", "str", true)},
		}},
	}
	m, err := g.Generate(diff, Options{})
	require.NoError(t, err)

	for _, op := range m.Operations {
		assert.NotEmpty(t, op.RollbackSQL, "operation %s %s needs a rollback", op.Kind, op.TableName)
	}
	rollbacks := m.RollbackStatements()
	require.NotEmpty(t, rollbacks)
	assert.Contains(t, rollbacks[len(rollbacks)-1], "DROP TABLE", "table creation is undone last")
}

func TestGenerateMySQLText(t *testing.T) {
	g, err := NewGenerator(core.DialectMySQL)
	require.NoError(t, err)

	diff := &compare.SchemaDiff{MissingTables: []*core.Table{ordersTable(), customersTable()}}
	m, err := g.Generate(diff, Options{})
	require.NoError(t, err)

	stmts := m.Statements()
	assert.Contains(t, stmts[0], "CREATE TABLE `customers`")
	assert.Contains(t, stmts[0], "`company_name` VARCHAR(255) NOT NULL")
	assert.Contains(t, stmts[1], "CREATE TABLE `orders`")

	var fkStmt string
	for _, s := range stmts {
		if strings.Contains(s, "FOREIGN KEY") {
			fkStmt = s
		}
	}
	assert.Contains(t, fkStmt, "ALTER TABLE `orders` ADD CONSTRAINT `fk_orders_customer_id`")
	assert.Contains(t, fkStmt, "REFERENCES `customers` (`id`)")
}

func TestGenerateSQLiteInlineForeignKeys(t *testing.T) {
	g, err := NewGenerator(core.DialectSQLite)
	require.NoError(t, err)

	diff := &compare.SchemaDiff{MissingTables: []*core.Table{ordersTable(), customersTable()}}
	m, err := g.Generate(diff, Options{})
	require.NoError(t, err)

	assert.Equal(t, -1, indexOfKind(m, core.OpAddConstraint),
		"sqlite foreign keys are rendered inside CREATE TABLE")
	assert.Contains(t, m.Operations[1].SQL, `FOREIGN KEY ("customer_id") REFERENCES "customers" ("id")`)
}

func TestGenerateSQLiteAlterColumnTypeFails(t *testing.T) {
	g, err := NewGenerator(core.DialectSQLite)
	require.NoError(t, err)

	diff := &compare.SchemaDiff{
		ModifiedTables: []*compare.TableDiff{{
			Name: "customers",
			TypeMismatches: []*compare.ColumnMismatch{{
				Name:  "email",
				Model: col("email", "str", true),
				DB:    col("email", "integer", true),
			}},
		}},
	}
	_, err = g.Generate(diff, Options{})
	require.Error(t, err)
}

func TestGeneratePostgresAlterUsesCast(t *testing.T) {
	g, err := NewGenerator(core.DialectPostgreSQL)
	require.NoError(t, err)

	diff := &compare.SchemaDiff{
		ModifiedTables: []*compare.TableDiff{{
			Name: "customers",
			TypeMismatches: []*compare.ColumnMismatch{{
				Name:  "email",
				Model: col("email", "str", true),
				DB:    col("email", "integer", true),
			}},
		}},
	}
	m, err := g.Generate(diff, Options{})
	require.NoError(t, err)
	require.Equal(t, []core.OperationKind{core.OpAlterColumn}, kinds(m))
	assert.Contains(t, m.Operations[0].SQL, `ALTER COLUMN "email" TYPE VARCHAR(255) USING "email"::VARCHAR(255)`)
	assert.Contains(t, m.Operations[0].RollbackSQL, `TYPE integer`,
		"rollback keeps the database's native type spelling")
}

func TestSummary(t *testing.T) {
	g, err := NewGenerator(core.DialectPostgreSQL)
	require.NoError(t, err)

	diff := &compare.SchemaDiff{
		ModifiedTables: []*compare.TableDiff{{
			Name:         "orders",
			AddedColumns: []*core.Column{col("status", "str", true)},
		}},
	}
	m, err := g.Generate(diff, Options{})
	require.NoError(t, err)

	lines := Summary(m)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "orders.status")
}
