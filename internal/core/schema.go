// Package core contains the single source of truth for database schema state.
// It provides a structured representation of tables, columns, foreign keys, and
// indexes shared by the inspector, the comparator, and the migration generator,
// plus the portable data-type vocabulary that all dialects normalize into.
package core

import (
	"fmt"
	"strings"
)

// Dialect identifies a supported SQL dialect.
type Dialect string

const (
	DialectPostgreSQL Dialect = "postgresql"
	DialectMySQL      Dialect = "mysql"
	DialectSQLite     Dialect = "sqlite"
)

// SupportedDialects returns a slice of all supported dialect values.
func SupportedDialects() []Dialect {
	return []Dialect{DialectPostgreSQL, DialectMySQL, DialectSQLite}
}

// IsValidDialect reports whether d is a recognized dialect string.
func IsValidDialect(d string) bool {
	for _, supported := range SupportedDialects() {
		if strings.EqualFold(string(supported), d) {
			return true
		}
	}
	return false
}

// Database represents a full schema snapshot: every table visible in one
// database at one point in time, or the declared shape of a model registry.
type Database struct {
	Name    string   `json:"name,omitempty"`
	Dialect Dialect  `json:"dialect,omitempty"`
	Tables  []*Table `json:"tables"`
}

// Table represents one table's complete shape.
type Table struct {
	Name        string        `json:"name"`
	Columns     []*Column     `json:"columns"`
	ForeignKeys []*ForeignKey `json:"foreignKeys,omitempty"`
	Indexes     []*Index      `json:"indexes,omitempty"`
	Comment     string        `json:"comment,omitempty"`
}

// Column represents a single column inside a table. It is treated as an
// immutable value: inspectors and model declarations both produce it, nothing
// mutates it afterwards.
type Column struct {
	Name       string   `json:"name"`
	TypeRaw    string   `json:"typeRaw"`
	Type       DataType `json:"type"`
	Nullable   bool     `json:"nullable"`
	PrimaryKey bool     `json:"primaryKey,omitempty"`
	Unique     bool     `json:"unique,omitempty"`
	Default    *string  `json:"default,omitempty"`
}

// ForeignKey represents a single-column foreign key reference.
type ForeignKey struct {
	Name         string `json:"name,omitempty"`
	Column       string `json:"column"`
	TargetTable  string `json:"targetTable"`
	TargetColumn string `json:"targetColumn"`
}

// Index represents a (possibly composite, possibly unique) index.
type Index struct {
	Name    string   `json:"name,omitempty"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique,omitempty"`
}

// DataType is an ENUM with all portable column data types.
type DataType string

const (
	DataTypeString   DataType = "string"
	DataTypeInt      DataType = "int"
	DataTypeFloat    DataType = "float"
	DataTypeBoolean  DataType = "boolean"
	DataTypeDatetime DataType = "datetime"
	DataTypeJSON     DataType = "json"
	DataTypeUUID     DataType = "uuid"
	DataTypeBinary   DataType = "binary"
	DataTypeUnknown  DataType = "unknown"
)

// GetName methods allow these types to be used with the generic Named interface.
func (t *Table) GetName() string  { return t.Name }
func (c *Column) GetName() string { return c.Name }
func (fk *ForeignKey) GetName() string {
	if fk.Name != "" {
		return fk.Name
	}
	return fk.Column
}
func (i *Index) GetName() string { return i.Name }

// FindTable looks for a table by name inside a database snapshot.
func (db *Database) FindTable(name string) *Table {
	for _, t := range db.Tables {
		if strings.EqualFold(t.Name, name) {
			return t
		}
	}
	return nil
}

// FindColumn looks for a column by name inside a table.
func (t *Table) FindColumn(name string) *Column {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// FindIndex looks for an index by name inside a table.
func (t *Table) FindIndex(name string) *Index {
	for _, i := range t.Indexes {
		if strings.EqualFold(i.Name, name) {
			return i
		}
	}
	return nil
}

// PrimaryKeyColumns returns the names of the primary-key columns in
// declaration order.
func (t *Table) PrimaryKeyColumns() []string {
	var names []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			names = append(names, c.Name)
		}
	}
	return names
}

// String returns a short description of a table for log and error messages.
func (t *Table) String() string {
	return fmt.Sprintf("Table: %s (%d cols, %d fks, %d indexes)",
		t.Name, len(t.Columns), len(t.ForeignKeys), len(t.Indexes))
}

type normalizeDataTypeRule struct {
	dataType   DataType
	substrings []string
}

// Order matters: "tinyint(1)" must match before the generic "int" rule, and
// "datetime"/"timestamp" before the string rules.
var normalizeDataTypeRules = []normalizeDataTypeRule{
	{dataType: DataTypeBoolean, substrings: []string{"bool", "tinyint(1)"}},
	{dataType: DataTypeDatetime, substrings: []string{"timestamp", "datetime", "date", "time"}},
	{dataType: DataTypeUUID, substrings: []string{"uuid"}},
	{dataType: DataTypeJSON, substrings: []string{"json"}},
	{dataType: DataTypeString, substrings: []string{"char", "text", "string", "clob", "enum", "set"}},
	{dataType: DataTypeInt, substrings: []string{"int", "serial"}},
	{dataType: DataTypeFloat, substrings: []string{"float", "double", "decimal", "numeric", "real"}},
	{dataType: DataTypeBinary, substrings: []string{"blob", "binary", "varbinary", "bytea"}},
}

// NormalizeDataType maps a raw SQL type string (e.g. "VARCHAR(255)",
// "timestamp with time zone", "BIGSERIAL") to one of the portable DataType
// constants. The matching is case-insensitive and based on substring
// containment using normalizeDataTypeRules.
func NormalizeDataType(rawType string) DataType {
	lower := strings.ToLower(strings.TrimSpace(rawType))
	if lower == "" {
		return DataTypeUnknown
	}
	for _, rule := range normalizeDataTypeRules {
		for _, sub := range rule.substrings {
			if strings.Contains(lower, sub) {
				return rule.dataType
			}
		}
	}
	return DataTypeUnknown
}
