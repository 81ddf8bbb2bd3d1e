package generate

import (
	"fmt"
	"strings"

	"dataflow/internal/core"
)

var mysqlTypes = map[core.DataType]string{
	core.DataTypeString:   "VARCHAR(255)",
	core.DataTypeInt:      "INT",
	core.DataTypeFloat:    "DOUBLE",
	core.DataTypeBoolean:  "TINYINT(1)",
	core.DataTypeDatetime: "DATETIME",
	core.DataTypeJSON:     "JSON",
	core.DataTypeUUID:     "CHAR(36)",
	core.DataTypeBinary:   "BLOB",
}

type mysqlRenderer struct{}

func (r *mysqlRenderer) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (r *mysqlRenderer) columnType(c *core.Column) string {
	return columnTypeFor(c, mysqlTypes)
}

func (r *mysqlRenderer) CreateTable(t *core.Table) (string, error) {
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

func (r *mysqlRenderer) DropTable(table string) string {
	return "DROP TABLE " + r.QuoteIdentifier(table)
}

func (r *mysqlRenderer) AddColumn(table string, c *core.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
		r.QuoteIdentifier(table), columnDefinition(c, r.columnType(c), r.QuoteIdentifier))
}

func (r *mysqlRenderer) DropColumn(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
		r.QuoteIdentifier(table), r.QuoteIdentifier(column))
}

func (r *mysqlRenderer) AlterColumnType(table string, c *core.Column) (string, error) {
	def := columnDefinition(c, r.columnType(c), r.QuoteIdentifier)
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s",
		r.QuoteIdentifier(table), def), nil
}

func (r *mysqlRenderer) AddForeignKey(table string, fk *core.ForeignKey) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		r.QuoteIdentifier(table),
		r.QuoteIdentifier(foreignKeyName(table, fk)),
		r.QuoteIdentifier(fk.Column),
		r.QuoteIdentifier(fk.TargetTable),
		r.QuoteIdentifier(fk.TargetColumn)), nil
}

func (r *mysqlRenderer) DropConstraint(table, constraint string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s",
		r.QuoteIdentifier(table), r.QuoteIdentifier(constraint))
}

func (r *mysqlRenderer) CreateIndex(table string, idx *core.Index) string {
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

func (r *mysqlRenderer) DropIndex(table, index string) string {
	return fmt.Sprintf("DROP INDEX %s ON %s",
		r.QuoteIdentifier(index), r.QuoteIdentifier(table))
}
