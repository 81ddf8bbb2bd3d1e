package output

import (
	"encoding/json"

	"dataflow/internal/compare"
	"dataflow/internal/core"
	"dataflow/internal/execute"
)

type jsonFormatter struct{}

type diffSummary struct {
	MissingTables  int `json:"missingTables"`
	ExtraTables    int `json:"extraTables"`
	ModifiedTables int `json:"modifiedTables"`
}

type diffPayload struct {
	Format         string               `json:"format"`
	Summary        diffSummary          `json:"summary"`
	MissingTables  []*core.Table        `json:"missingTables,omitempty"`
	ExtraTables    []string             `json:"extraTables,omitempty"`
	ModifiedTables []*compare.TableDiff `json:"modifiedTables,omitempty"`
}

type migrationPayload struct {
	Format   string   `json:"format"`
	Version  string   `json:"version"`
	Checksum string   `json:"checksum"`
	Dialect  string   `json:"dialect"`
	SQL      []string `json:"sql,omitempty"`
	Rollback []string `json:"rollback,omitempty"`
}

func (jsonFormatter) FormatSchema(db *core.Database) (string, error) {
	return marshalJSON(db)
}

func (jsonFormatter) FormatDiff(d *compare.SchemaDiff) (string, error) {
	payload := diffPayload{Format: string(FormatJSON)}
	if d != nil {
		payload.MissingTables = d.MissingTables
		payload.ModifiedTables = d.ModifiedTables
		for _, t := range d.ExtraTables {
			payload.ExtraTables = append(payload.ExtraTables, t.Name)
		}
		payload.Summary = diffSummary{
			MissingTables:  len(d.MissingTables),
			ExtraTables:    len(d.ExtraTables),
			ModifiedTables: len(d.ModifiedTables),
		}
	}
	return marshalJSON(payload)
}

func (jsonFormatter) FormatMigration(m *core.Migration) (string, error) {
	payload := migrationPayload{Format: string(FormatJSON)}
	if m != nil {
		payload.Version = m.Version
		payload.Checksum = m.Checksum()
		payload.Dialect = string(m.Dialect)
		payload.SQL = normalizeStatements(m.Statements())
		payload.Rollback = normalizeStatements(m.RollbackStatements())
	}
	return marshalJSON(payload)
}

func (jsonFormatter) FormatHistory(entries []execute.HistoryEntry) (string, error) {
	return marshalJSON(entries)
}

func marshalJSON(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
