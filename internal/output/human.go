package output

import (
	"fmt"
	"strings"

	"dataflow/internal/compare"
	"dataflow/internal/core"
	"dataflow/internal/execute"
)

// summaryFormatter renders terminal-friendly text.
type summaryFormatter struct{}

func (summaryFormatter) FormatSchema(db *core.Database) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Database: %s (%s), %d tables\n", db.Name, db.Dialect, len(db.Tables))
	for _, t := range db.Tables {
		fmt.Fprintf(&sb, "\n%s\n", t.Name)
		for _, c := range t.Columns {
			var attrs []string
			if c.PrimaryKey {
				attrs = append(attrs, "pk")
			}
			if c.Unique {
				attrs = append(attrs, "unique")
			}
			if c.Nullable {
				attrs = append(attrs, "null")
			}
			suffix := ""
			if len(attrs) > 0 {
				suffix = " [" + strings.Join(attrs, ", ") + "]"
			}
			fmt.Fprintf(&sb, "  %-24s %s%s\n", c.Name, c.TypeRaw, suffix)
		}
		for _, fk := range t.ForeignKeys {
			fmt.Fprintf(&sb, "  fk: %s -> %s.%s\n", fk.Column, fk.TargetTable, fk.TargetColumn)
		}
		for _, idx := range t.Indexes {
			kind := "index"
			if idx.Unique {
				kind = "unique index"
			}
			fmt.Fprintf(&sb, "  %s: %s (%s)\n", kind, idx.Name, strings.Join(idx.Columns, ", "))
		}
	}
	return sb.String(), nil
}

func (summaryFormatter) FormatDiff(d *compare.SchemaDiff) (string, error) {
	if d == nil || (d.IsEmpty() && len(d.ExtraTables) == 0) {
		return "Schema is up to date.\n", nil
	}

	var sb strings.Builder
	for _, t := range d.MissingTables {
		fmt.Fprintf(&sb, "+ table %s (%d columns)\n", t.Name, len(t.Columns))
	}
	for _, td := range d.ModifiedTables {
		fmt.Fprintf(&sb, "~ table %s\n", td.Name)
		for _, c := range td.AddedColumns {
			fmt.Fprintf(&sb, "  + column %s %s\n", c.Name, c.TypeRaw)
		}
		for _, mm := range td.TypeMismatches {
			fmt.Fprintf(&sb, "  ! column %s: declared %s, database has %s\n",
				mm.Name, mm.Model.TypeRaw, mm.DB.TypeRaw)
		}
		for _, idx := range td.MissingIndexes {
			fmt.Fprintf(&sb, "  + index %s (%s)\n", idx.Name, strings.Join(idx.Columns, ", "))
		}
		for _, fk := range td.MissingForeignKeys {
			fmt.Fprintf(&sb, "  + fk %s -> %s.%s\n", fk.Column, fk.TargetTable, fk.TargetColumn)
		}
		for _, c := range td.ExtraColumns {
			fmt.Fprintf(&sb, "    (extra column %s left alone)\n", c.Name)
		}
	}
	for _, t := range d.ExtraTables {
		fmt.Fprintf(&sb, "  (extra table %s left alone)\n", t.Name)
	}
	return sb.String(), nil
}

func (summaryFormatter) FormatMigration(m *core.Migration) (string, error) {
	if m == nil || m.IsEmpty() {
		return "No migration needed.\n", nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Migration %s (%s), %d operations:\n", m.Version, m.Dialect, len(m.Operations))
	for i, op := range m.Operations {
		target := op.TableName
		if op.ColumnName != "" {
			target += "." + op.ColumnName
		} else if op.ObjectName != "" {
			target += "." + op.ObjectName
		}
		fmt.Fprintf(&sb, "%3d. %-15s %s\n", i+1, op.Kind, target)
	}
	return sb.String(), nil
}

func (summaryFormatter) FormatHistory(entries []execute.HistoryEntry) (string, error) {
	if len(entries) == 0 {
		return "No migrations recorded.\n", nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-28s %-12s %-20s %s\n", "VERSION", "CHECKSUM", "APPLIED", "STATUS")
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "FAILED"
		}
		fmt.Fprintf(&sb, "%-28s %-12s %-20s %s\n",
			e.Version, shortChecksum(e.Checksum), e.AppliedAt.Format("2006-01-02 15:04:05"), status)
	}
	return sb.String(), nil
}

func shortChecksum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}

// sqlFormatter renders plain SQL suitable for piping into a database client.
type sqlFormatter struct{}

func (sqlFormatter) FormatSchema(db *core.Database) (string, error) {
	// A live schema has no canonical SQL rendering here; the summary is the
	// useful text form.
	return summaryFormatter{}.FormatSchema(db)
}

func (sqlFormatter) FormatDiff(d *compare.SchemaDiff) (string, error) {
	return summaryFormatter{}.FormatDiff(d)
}

func (sqlFormatter) FormatMigration(m *core.Migration) (string, error) {
	if m == nil || m.IsEmpty() {
		return "", nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "-- Migration: %s\n-- Dialect: %s\n-- Checksum: %s\n\n",
		m.Version, m.Dialect, m.Checksum())
	for _, stmt := range normalizeStatements(m.Statements()) {
		sb.WriteString(stmt)
		sb.WriteString("\n\n")
	}
	if rollback := normalizeStatements(m.RollbackStatements()); len(rollback) > 0 {
		sb.WriteString("-- Rollback:\n")
		for _, stmt := range rollback {
			fmt.Fprintf(&sb, "-- %s\n", stmt)
		}
	}
	return sb.String(), nil
}

func (sqlFormatter) FormatHistory(entries []execute.HistoryEntry) (string, error) {
	return summaryFormatter{}.FormatHistory(entries)
}
