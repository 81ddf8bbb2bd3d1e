package generate

import (
	"fmt"
	"strings"

	"dataflow/internal/core"
)

var postgresTypes = map[core.DataType]string{
	core.DataTypeString:   "VARCHAR(255)",
	core.DataTypeInt:      "INTEGER",
	core.DataTypeFloat:    "DOUBLE PRECISION",
	core.DataTypeBoolean:  "BOOLEAN",
	core.DataTypeDatetime: "TIMESTAMP",
	core.DataTypeJSON:     "JSONB",
	core.DataTypeUUID:     "UUID",
	core.DataTypeBinary:   "BYTEA",
}

type postgresRenderer struct{}

func (r *postgresRenderer) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (r *postgresRenderer) columnType(c *core.Column) string {
	return columnTypeFor(c, postgresTypes)
}

func (r *postgresRenderer) CreateTable(t *core.Table) (string, error) {
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
	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)",
		r.QuoteIdentifier(t.Name), strings.Join(defs, ",\n")), nil
}

func (r *postgresRenderer) DropTable(table string) string {
	return "DROP TABLE " + r.QuoteIdentifier(table)
}

func (r *postgresRenderer) AddColumn(table string, c *core.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
		r.QuoteIdentifier(table), columnDefinition(c, r.columnType(c), r.QuoteIdentifier))
}

func (r *postgresRenderer) DropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
		r.QuoteIdentifier(table), r.QuoteIdentifier(column))
}

func (r *postgresRenderer) AlterColumnType(table string, c *core.Column) (string, error) {
	typeText := r.columnType(c)
	// USING lets Postgres cast existing rows instead of failing the ALTER.
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s",
		r.QuoteIdentifier(table),
		r.QuoteIdentifier(c.Name),
		typeText,
		r.QuoteIdentifier(c.Name),
		typeText), nil
}

func (r *postgresRenderer) AddForeignKey(table string, fk *core.ForeignKey) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		r.QuoteIdentifier(table),
		r.QuoteIdentifier(foreignKeyName(table, fk)),
		r.QuoteIdentifier(fk.Column),
		r.QuoteIdentifier(fk.TargetTable),
		r.QuoteIdentifier(fk.TargetColumn)), nil
}

func (r *postgresRenderer) DropConstraint(table, constraint string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s",
		r.QuoteIdentifier(table), r.QuoteIdentifier(constraint))
}

func (r *postgresRenderer) CreateIndex(table string, idx *core.Index) string {
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

func (r *postgresRenderer) DropIndex(_ string, index string) string {
	return "DROP INDEX " + r.QuoteIdentifier(index)
}
