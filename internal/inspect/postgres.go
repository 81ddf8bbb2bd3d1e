package inspect

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "postgres" driver used for PostgreSQL targets.
	_ "github.com/lib/pq"

	"dataflow/internal/core"
)

func init() {
	Register(core.DialectPostgreSQL, newPostgresInspector)
}

type postgresInspector struct {
	// schema is the namespace inspected; "public" unless overridden.
	schema string
}

func newPostgresInspector() Inspector {
	return &postgresInspector{schema: "public"}
}

func (i *postgresInspector) Inspect(ctx context.Context, db *sql.DB) (*core.Database, error) {
	d := &core.Database{Dialect: core.DialectPostgreSQL}
	if err := db.QueryRowContext(ctx, "SELECT current_database()").Scan(&d.Name); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, i.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		d.Tables = append(d.Tables, &core.Table{Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, t := range d.Tables {
		if err := i.inspectColumns(ctx, db, t); err != nil {
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
		if err := i.inspectKeyColumns(ctx, db, t); err != nil {
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
		if err := i.inspectForeignKeys(ctx, db, t); err != nil {
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
		if err := i.inspectIndexes(ctx, db, t); err != nil {
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
	}

	return d, nil
}

func (i *postgresInspector) inspectColumns(ctx context.Context, db *sql.DB, t *core.Table) error {
	rows, err := db.QueryContext(ctx, `
		SELECT column_name, data_type, udt_name, character_maximum_length,
		       is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, i.schema, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, dataType, udtName, nullable string
		var charMaxLen sql.NullInt64
		var defaultVal sql.NullString
		if err := rows.Scan(&name, &dataType, &udtName, &charMaxLen, &nullable, &defaultVal); err != nil {
			return err
		}

		raw := normalizePostgresType(dataType, udtName, charMaxLen)
		col := &core.Column{
			Name:     name,
			TypeRaw:  raw,
			Type:     core.NormalizeDataType(raw),
			Nullable: nullable == "YES",
		}
		if defaultVal.Valid {
			col.Default = &defaultVal.String
		}
		t.Columns = append(t.Columns, col)
	}

	return rows.Err()
}

// inspectKeyColumns marks primary-key and single-column unique columns from
// information_schema.table_constraints.
func (i *postgresInspector) inspectKeyColumns(ctx context.Context, db *sql.DB, t *core.Table) error {
	rows, err := db.QueryContext(ctx, `
		SELECT kcu.column_name, tc.constraint_type
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = $1 AND tc.table_name = $2
		  AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
	`, i.schema, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var column, kind string
		if err := rows.Scan(&column, &kind); err != nil {
			return err
		}
		col := t.FindColumn(column)
		if col == nil {
			continue
		}
		switch kind {
		case "PRIMARY KEY":
			col.PrimaryKey = true
		case "UNIQUE":
			col.Unique = true
		}
	}

	return rows.Err()
}

func (i *postgresInspector) inspectForeignKeys(ctx context.Context, db *sql.DB, t *core.Table) error {
	rows, err := db.QueryContext(ctx, `
		SELECT tc.constraint_name, kcu.column_name, ccu.table_name, ccu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name
		 AND tc.table_schema = ccu.table_schema
		WHERE tc.table_schema = $1 AND tc.table_name = $2
		  AND tc.constraint_type = 'FOREIGN KEY'
		ORDER BY tc.constraint_name
	`, i.schema, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, column, refTable, refColumn string
		if err := rows.Scan(&name, &column, &refTable, &refColumn); err != nil {
			return err
		}
		t.ForeignKeys = append(t.ForeignKeys, &core.ForeignKey{
			Name:         name,
			Column:       column,
			TargetTable:  refTable,
			TargetColumn: refColumn,
		})
	}

	return rows.Err()
}

func (i *postgresInspector) inspectIndexes(ctx context.Context, db *sql.DB, t *core.Table) error {
	rows, err := db.QueryContext(ctx, `
		SELECT i.relname, a.attname, ix.indisunique
		FROM pg_class c
		JOIN pg_index ix ON c.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = $1 AND c.relname = $2 AND NOT ix.indisprimary
		ORDER BY i.relname, array_position(ix.indkey, a.attnum)
	`, i.schema, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	byName := make(map[string]*core.Index)
	for rows.Next() {
		var idxName, colName string
		var unique bool
		if err := rows.Scan(&idxName, &colName, &unique); err != nil {
			return err
		}
		idx, ok := byName[idxName]
		if !ok {
			idx = &core.Index{Name: idxName, Unique: unique}
			byName[idxName] = idx
			t.Indexes = append(t.Indexes, idx)
		}
		idx.Columns = append(idx.Columns, colName)
	}

	return rows.Err()
}

// normalizePostgresType maps verbose catalog type names to their conventional
// spellings, keeping length information where the catalog provides it.
func normalizePostgresType(dataType, udtName string, charMaxLen sql.NullInt64) string {
	switch dataType {
	case "character varying":
		if charMaxLen.Valid {
			return fmt.Sprintf("varchar(%d)", charMaxLen.Int64)
		}
		return "varchar"
	case "character":
		if charMaxLen.Valid {
			return fmt.Sprintf("char(%d)", charMaxLen.Int64)
		}
		return "char"
	case "timestamp with time zone":
		return "timestamptz"
	case "timestamp without time zone":
		return "timestamp"
	case "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}
