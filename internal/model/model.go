// Package model holds the declared schema an application wants its database
// to have. Declarations come from code via a Registry or from a TOML schema
// file; both produce the same canonical core representation the comparator
// consumes. The registry is an explicit dependency handed to the orchestrator,
// never package-global state.
package model

import (
	"fmt"
	"strings"

	"dataflow/internal/core"
)

// Registry collects declared tables for one application.
type Registry struct {
	name   string
	tables []*core.Table
	byName map[string]*core.Table
}

// NewRegistry creates an empty registry. The name labels the declared schema
// in logs and snapshots.
func NewRegistry(name string) *Registry {
	return &Registry{name: name, byName: make(map[string]*core.Table)}
}

// Register adds a table declaration. Column types are normalized on the way
// in so later comparisons never see an unnormalized declaration. Registering
// the same table name twice is an error.
func (r *Registry) Register(t *core.Table) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("model: table declaration needs a name")
	}
	key := strings.ToLower(t.Name)
	if _, exists := r.byName[key]; exists {
		return fmt.Errorf("model: table %q registered twice", t.Name)
	}
	for _, c := range t.Columns {
		if c.Type == "" || c.Type == core.DataTypeUnknown {
			c.Type = normalizeDeclaredType(c.TypeRaw)
		}
	}
	r.byName[key] = t
	r.tables = append(r.tables, t)
	return nil
}

// MustRegister is Register for static declarations where a failure is a
// programming error.
func (r *Registry) MustRegister(t *core.Table) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Tables returns the declared tables in registration order.
func (r *Registry) Tables() []*core.Table { return r.tables }

// Len reports the number of declared tables.
func (r *Registry) Len() int { return len(r.tables) }

// Database materializes the declarations as a schema snapshot.
func (r *Registry) Database(dialect core.Dialect) *core.Database {
	return &core.Database{Name: r.name, Dialect: dialect, Tables: r.tables}
}

// normalizeDeclaredType widens the short tags model declarations use before
// running the shared normalization rules.
func normalizeDeclaredType(raw string) core.DataType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "str":
		raw = "string"
	case "bool":
		raw = "boolean"
	}
	return core.NormalizeDataType(raw)
}
