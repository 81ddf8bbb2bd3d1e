package inspect

import (
	"context"
	"database/sql"
	"strings"

	// Registers the "mysql" driver used for MySQL targets.
	_ "github.com/go-sql-driver/mysql"

	"dataflow/internal/core"
)

func init() {
	Register(core.DialectMySQL, newMySQLInspector)
}

type mysqlInspector struct{}

func newMySQLInspector() Inspector { return &mysqlInspector{} }

func (i *mysqlInspector) Inspect(ctx context.Context, db *sql.DB) (*core.Database, error) {
	d := &core.Database{Dialect: core.DialectMySQL}
	if err := db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&d.Name); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT table_name, table_comment
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name, comment string
		if err := rows.Scan(&name, &comment); err != nil {
			return nil, err
		}
		d.Tables = append(d.Tables, &core.Table{Name: name, Comment: comment})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, t := range d.Tables {
		if err := i.inspectColumns(ctx, db, t); err != nil {
			return nil, err
		}
		if err := i.inspectIndexes(ctx, db, t); err != nil {
			return nil, err
		}
		if err := i.inspectForeignKeys(ctx, db, t); err != nil {
			return nil, err
		}
	}

	return d, nil
}

func (i *mysqlInspector) inspectColumns(ctx context.Context, db *sql.DB, t *core.Table) error {
	rows, err := db.QueryContext(ctx, `
		SELECT c.column_name, c.column_type, c.is_nullable, c.column_default, c.column_key
		FROM information_schema.columns c
		WHERE c.table_schema = DATABASE() AND c.table_name = ?
		ORDER BY c.ordinal_position
	`, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, colType, nullable, colKey sql.NullString
		var defaultVal sql.NullString
		if err := rows.Scan(&name, &colType, &nullable, &defaultVal, &colKey); err != nil {
			return err
		}

		col := &core.Column{
			Name:       name.String,
			TypeRaw:    colType.String,
			Type:       core.NormalizeDataType(colType.String),
			Nullable:   nullable.String == "YES",
			PrimaryKey: colKey.String == "PRI",
			Unique:     colKey.String == "UNI",
		}
		if defaultVal.Valid {
			col.Default = &defaultVal.String
		}
		t.Columns = append(t.Columns, col)
	}

	return rows.Err()
}

func (i *mysqlInspector) inspectIndexes(ctx context.Context, db *sql.DB, t *core.Table) error {
	rows, err := db.QueryContext(ctx, `
		SELECT index_name, column_name, non_unique
		FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY index_name, seq_in_index
	`, t.Name)
	if err != nil {
		return err
	}
	defer rows.Close()

	byName := make(map[string]*core.Index)
	for rows.Next() {
		var idxName, colName string
		var nonUnique int
		if err := rows.Scan(&idxName, &colName, &nonUnique); err != nil {
			return err
		}
		if strings.EqualFold(idxName, "PRIMARY") {
			continue
		}
		idx, ok := byName[idxName]
		if !ok {
			idx = &core.Index{Name: idxName, Unique: nonUnique == 0}
			byName[idxName] = idx
			t.Indexes = append(t.Indexes, idx)
		}
		idx.Columns = append(idx.Columns, colName)
	}

	return rows.Err()
}

func (i *mysqlInspector) inspectForeignKeys(ctx context.Context, db *sql.DB, t *core.Table) error {
	rows, err := db.QueryContext(ctx, `
		SELECT constraint_name, column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE()
		  AND table_name = ?
		  AND referenced_table_name IS NOT NULL
		ORDER BY constraint_name, ordinal_position
	`, t.Name)
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
