package generate

import (
	"fmt"
	"strings"

	"dataflow/internal/core"
)

var sqliteTypes = map[core.DataType]string{
	core.DataTypeString:   "TEXT",
	core.DataTypeInt:      "INTEGER",
	core.DataTypeFloat:    "REAL",
	core.DataTypeBoolean:  "BOOLEAN",
	core.DataTypeDatetime: "TIMESTAMP",
	core.DataTypeJSON:     "TEXT",
	core.DataTypeUUID:     "TEXT",
	core.DataTypeBinary:   "BLOB",
}

// sqliteRenderer renders the SQLite subset of DDL. Foreign keys only exist
// inline in CREATE TABLE, and column types cannot be altered in place.
type sqliteRenderer struct{}

func (r *sqliteRenderer) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (r *sqliteRenderer) columnType(c *core.Column) string {
	return columnTypeFor(c, sqliteTypes)
}

func (r *sqliteRenderer) CreateTable(t *core.Table) (string, error) {
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("table %q has no columns", t.Name)
	}
	var defs []string
	for _, c := range t.Columns {
		defs = append(defs, "  "+columnDefinition(c, r.columnType(c), r.QuoteIdentifier))
	}
	if pk := t.PrimaryKeyColumns(); len(pk) > 1 {
		defs = append(defs, fmt.Sprintf("  PRIMARY KEY (%s)",
			strings.Join(quoteAll(pk, r.QuoteIdentifier), ", ")))
	}
	for _, fk := range t.ForeignKeys {
		defs = append(defs, fmt.Sprintf("  FOREIGN KEY (%s) REFERENCES %s (%s)",
			r.QuoteIdentifier(fk.Column),
			r.QuoteIdentifier(fk.TargetTable),
			r.QuoteIdentifier(fk.TargetColumn)))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)",
		r.QuoteIdentifier(t.Name), strings.Join(defs, ",\n")), nil
}

func (r *sqliteRenderer) DropTable(table string) string {
	return "DROP TABLE " + r.QuoteIdentifier(table)
}

func (r *sqliteRenderer) AddColumn(table string, c *core.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
		r.QuoteIdentifier(table), columnDefinition(c, r.columnType(c), r.QuoteIdentifier))
}

func (r *sqliteRenderer) DropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
		r.QuoteIdentifier(table), r.QuoteIdentifier(column))
}

func (r *sqliteRenderer) AlterColumnType(table string, c *core.Column) (string, error) {
	return "", fmt.Errorf(
		"sqlite cannot alter the type of column %s.%s in place; recreate the table instead",
		table, c.Name)
}

// AddForeignKey returns "" because SQLite only accepts foreign keys inline in
// CREATE TABLE; CreateTable already rendered them.
func (r *sqliteRenderer) AddForeignKey(string, *core.ForeignKey) (string, error) {
	return "", nil
}

// DropConstraint returns "" because SQLite has no ALTER TABLE DROP CONSTRAINT.
func (r *sqliteRenderer) DropConstraint(string, string) string {
	return ""
}

func (r *sqliteRenderer) CreateIndex(table string, idx *core.Index) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		unique,
		r.QuoteIdentifier(indexName(table, idx)),
		r.QuoteIdentifier(table),
		strings.Join(quoteAll(idx.Columns, r.QuoteIdentifier), ", "))
}

func (r *sqliteRenderer) DropIndex(_ string, index string) string {
	return "DROP INDEX " + r.QuoteIdentifier(index)
}
