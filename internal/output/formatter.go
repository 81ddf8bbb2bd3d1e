// Package output renders schema snapshots, diffs, migration plans, and the
// migration history for the CLI. It is extendable and for now provides three
// formats: SQL, JSON, and a human-readable summary.
package output

import (
	"fmt"
	"strings"

	"dataflow/internal/compare"
	"dataflow/internal/core"
	"dataflow/internal/execute"
)

// Format is an enum type representing the available output formats.
type Format string

const (
	FormatSQL     Format = "sql"
	FormatJSON    Format = "json"
	FormatSummary Format = "summary"
)

// Formatter renders the artifacts a migration run produces.
type Formatter interface {
	FormatSchema(*core.Database) (string, error)
	FormatDiff(*compare.SchemaDiff) (string, error)
	FormatMigration(*core.Migration) (string, error)
	FormatHistory([]execute.HistoryEntry) (string, error)
}

// NewFormatter creates a Formatter by name. Empty defaults to the summary
// format.
func NewFormatter(name string) (Formatter, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatSummary:
		return summaryFormatter{}, nil
	case FormatSQL:
		return sqlFormatter{}, nil
	case FormatJSON:
		return jsonFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s; use 'summary', 'sql', or 'json'", name)
	}
}

func normalizeStatements(stmts []string) []string {
	var out []string
	for _, stmt := range stmts {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if !strings.HasSuffix(stmt, ";") {
			stmt += ";"
		}
		out = append(out, stmt)
	}
	return out
}
