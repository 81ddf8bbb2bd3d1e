package core

import "strings"

// compatibilityAliases maps each portable data type to the set of raw type
// spellings it is considered equivalent to. The relation is bidirectional:
// TypesAreCompatible normalizes both sides before consulting this table, so
// "str" vs "varchar(255)" and "varchar(255)" vs "str" give the same answer.
var compatibilityAliases = map[DataType][]string{
	DataTypeString:   {"str", "string", "varchar", "character varying", "char", "text", "clob", "enum", "set"},
	DataTypeInt:      {"int", "integer", "bigint", "smallint", "serial", "bigserial", "smallserial", "mediumint"},
	DataTypeFloat:    {"float", "double", "double precision", "decimal", "numeric", "real"},
	DataTypeBoolean:  {"bool", "boolean", "tinyint(1)"},
	DataTypeDatetime: {"datetime", "timestamp", "timestamp with time zone", "timestamp without time zone", "timestamptz", "date", "time"},
	DataTypeJSON:     {"json", "jsonb"},
	DataTypeUUID:     {"uuid"},
	DataTypeBinary:   {"binary", "varbinary", "blob", "bytea"},
}

// normalizeCompatType resolves a raw or portable type spelling to a portable
// DataType. Short model-side aliases ("str", "bool") are recognized directly;
// everything else goes through NormalizeDataType.
func normalizeCompatType(raw string) DataType {
	lower := strings.ToLower(strings.TrimSpace(raw))
	// Strip a length or precision suffix, e.g. "varchar(255)" -> "varchar",
	// but keep "tinyint(1)" intact since it means boolean in MySQL.
	base := lower
	if idx := strings.IndexByte(lower, '('); idx > 0 && lower != "tinyint(1)" {
		base = lower[:idx]
	}
	for dt, aliases := range compatibilityAliases {
		for _, a := range aliases {
			if base == a || lower == a {
				return dt
			}
		}
	}
	return NormalizeDataType(raw)
}

// TypesAreCompatible reports whether two type spellings refer to the same
// portable data type. It accepts any mix of model-side tags ("str", "int"),
// portable constants, and native SQL types ("character varying", "BIGINT").
// Unknown types are never compatible with anything, including each other:
// treating two unrecognized types as equal would mask real drift.
func TypesAreCompatible(a, b string) bool {
	ta := normalizeCompatType(a)
	tb := normalizeCompatType(b)
	if ta == DataTypeUnknown || tb == DataTypeUnknown {
		return false
	}
	return ta == tb
}

// ColumnsAreCompatible reports whether a database column can hold the values
// of a declared model column without a type change.
func ColumnsAreCompatible(dbCol, modelCol *Column) bool {
	return TypesAreCompatible(dbCol.TypeRaw, modelCol.TypeRaw)
}
