package inspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Registers the "sqlite3" driver used for SQLite targets.
	_ "github.com/mattn/go-sqlite3"

	"dataflow/internal/core"
)

func init() {
	Register(core.DialectSQLite, newSQLiteInspector)
}

type sqliteInspector struct{}

func newSQLiteInspector() Inspector { return &sqliteInspector{} }

func (i *sqliteInspector) Inspect(ctx context.Context, db *sql.DB) (*core.Database, error) {
	d := &core.Database{Dialect: core.DialectSQLite}

	rows, err := db.QueryContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
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
		if err := i.inspectForeignKeys(ctx, db, t); err != nil {
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
		if err := i.inspectIndexes(ctx, db, t); err != nil {
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
	}

	return d, nil
}

func (i *sqliteInspector) inspectColumns(ctx context.Context, db *sql.DB, t *core.Table) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", t.Name))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var defaultVal sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return err
		}

		col := &core.Column{
			Name:       name,
			TypeRaw:    colType,
			Type:       core.NormalizeDataType(colType),
			Nullable:   notNull == 0 && pk == 0,
			PrimaryKey: pk > 0,
		}
		if defaultVal.Valid {
			col.Default = &defaultVal.String
		}
		t.Columns = append(t.Columns, col)
	}

	return rows.Err()
}

func (i *sqliteInspector) inspectForeignKeys(ctx context.Context, db *sql.DB, t *core.Table) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%q)", t.Name))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, seq int
		var refTable, from string
		var to sql.NullString
		var onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return err
		}
		target := to.String
		if target == "" {
			// Implicit reference to the target table's primary key.
			target = "id"
		}
		t.ForeignKeys = append(t.ForeignKeys, &core.ForeignKey{
			Name:         fmt.Sprintf("fk_%s_%s", t.Name, from),
			Column:       from,
			TargetTable:  refTable,
			TargetColumn: target,
		})
	}

	return rows.Err()
}

func (i *sqliteInspector) inspectIndexes(ctx context.Context, db *sql.DB, t *core.Table) error {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%q)", t.Name))
	if err != nil {
		return err
	}
	defer rows.Close()

	type idxMeta struct {
		name   string
		unique bool
		origin string
	}
	var metas []idxMeta
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return err
		}
		metas = append(metas, idxMeta{name: name, unique: unique == 1, origin: origin})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, meta := range metas {
		cols, err := i.indexColumns(ctx, db, meta.name)
		if err != nil {
			return err
		}

		// Auto-indexes back UNIQUE column constraints and the primary key;
		// surface single-column ones as the column's Unique flag instead of
		// a standalone index entry.
		if strings.HasPrefix(meta.name, "sqlite_autoindex_") {
			if meta.origin == "u" && len(cols) == 1 {
				if col := t.FindColumn(cols[0]); col != nil {
					col.Unique = true
				}
			}
			continue
		}

		t.Indexes = append(t.Indexes, &core.Index{
			Name:    meta.name,
			Columns: cols,
			Unique:  meta.unique,
		})
	}

	return nil
}

func (i *sqliteInspector) indexColumns(ctx context.Context, db *sql.DB, indexName string) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%q)", indexName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		if name.Valid {
			cols = append(cols, name.String)
		}
	}
	return cols, rows.Err()
}
