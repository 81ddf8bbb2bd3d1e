package generate

import (
	"fmt"
	"strings"

	"dataflow/internal/core"
)

// Renderer turns structural operations into dialect-specific DDL text.
type Renderer interface {
	CreateTable(t *core.Table) (string, error)
	DropTable(table string) string
	AddColumn(table string, c *core.Column) string
	DropColumn(table, column string) string
	AlterColumnType(table string, c *core.Column) (string, error)
	// AddForeignKey returns "" when the dialect only supports inline foreign
	// keys and the constraint was already rendered inside CREATE TABLE.
	AddForeignKey(table string, fk *core.ForeignKey) (string, error)
	DropConstraint(table, constraint string) string
	CreateIndex(table string, idx *core.Index) string
	DropIndex(table, index string) string
	QuoteIdentifier(name string) string
}

// NewRenderer returns the DDL renderer for a dialect.
func NewRenderer(dialect core.Dialect) (Renderer, error) {
	switch dialect {
	case core.DialectPostgreSQL:
		return &postgresRenderer{}, nil
	case core.DialectMySQL:
		return &mysqlRenderer{}, nil
	case core.DialectSQLite:
		return &sqliteRenderer{}, nil
	default:
		return nil, fmt.Errorf("no DDL renderer for dialect %q", dialect)
	}
}

// columnTypeFor maps a declared column to concrete dialect DDL type text.
// Portable tags get the dialect's conventional type; anything else (a native
// spelling like "varchar(100)") passes through verbatim.
func columnTypeFor(c *core.Column, m map[core.DataType]string) string {
	lower := strings.ToLower(strings.TrimSpace(c.TypeRaw))
	switch lower {
	case "str", "string", "int", "float", "bool", "boolean", "datetime", "json", "uuid", "binary":
		if t, ok := m[core.NormalizeDataType(portableAlias(lower))]; ok {
			return t
		}
	}
	return c.TypeRaw
}

// portableAlias widens short model tags so NormalizeDataType recognizes them.
func portableAlias(tag string) string {
	switch tag {
	case "str":
		return "string"
	case "bool":
		return "boolean"
	default:
		return tag
	}
}

func columnDefinition(c *core.Column, typeText string, quote func(string) string) string {
	var sb strings.Builder
	sb.WriteString(quote(c.Name))
	sb.WriteByte(' ')
	sb.WriteString(typeText)
	if c.PrimaryKey {
		sb.WriteString(" PRIMARY KEY")
	}
	if !c.Nullable && !c.PrimaryKey {
		sb.WriteString(" NOT NULL")
	}
	if c.Unique && !c.PrimaryKey {
		sb.WriteString(" UNIQUE")
	}
	if c.Default != nil {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(*c.Default)
	}
	return sb.String()
}

func indexName(table string, idx *core.Index) string {
	if idx.Name != "" {
		return idx.Name
	}
	return fmt.Sprintf("idx_%s_%s", table, strings.Join(idx.Columns, "_"))
}

func foreignKeyName(table string, fk *core.ForeignKey) string {
	if fk.Name != "" {
		return fk.Name
	}
	return fmt.Sprintf("fk_%s_%s", table, fk.Column)
}

func quoteAll(names []string, quote func(string) string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quote(n)
	}
	return out
}
