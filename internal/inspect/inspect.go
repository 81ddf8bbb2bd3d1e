// Package inspect discovers the current structure of a live database. Each
// supported dialect registers an Inspector that queries the system catalog
// (information_schema or its dialect equivalent) and returns a core.Database
// snapshot with types normalized to the portable vocabulary.
package inspect

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"dataflow/internal/core"
	"dataflow/internal/dburl"
)

// Inspector produces a schema snapshot from an open connection. Inspection is
// strictly read-only.
type Inspector interface {
	Inspect(ctx context.Context, db *sql.DB) (*core.Database, error)
}

var (
	registry = make(map[core.Dialect]func() Inspector)
	mu       sync.RWMutex
)

// Register adds an inspector constructor for a dialect. Called from the
// dialect implementation's init.
func Register(dialect core.Dialect, fn func() Inspector) {
	mu.Lock()
	defer mu.Unlock()
	registry[dialect] = fn
}

// NewInspector returns an inspector for the given dialect.
func NewInspector(dialect core.Dialect) (Inspector, error) {
	mu.RLock()
	fn, ok := registry[dialect]
	mu.RUnlock()

	if !ok {
		return nil, &core.SchemaDiscoveryError{
			Target: string(dialect),
			Reason: fmt.Sprintf("no inspector registered for dialect %q", dialect),
		}
	}

	return fn(), nil
}

// GetCurrentSchema opens a dedicated connection to the target, inspects it,
// and closes the connection again. In-memory SQLite targets are rejected: a
// fresh connection to a memory database sees an empty catalog, so there is
// nothing meaningful to introspect.
func GetCurrentSchema(ctx context.Context, target *dburl.Target) (*core.Database, error) {
	if target.Dialect == core.DialectSQLite && target.InMemory {
		return nil, &core.SchemaDiscoveryError{
			Target: target.URL,
			Reason: "in-memory SQLite databases have no persistent catalog to introspect",
		}
	}

	insp, err := NewInspector(target.Dialect)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(target.Driver, target.DSN)
	if err != nil {
		return nil, &core.SchemaDiscoveryError{Target: target.URL, Reason: err.Error()}
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, &core.SchemaDiscoveryError{Target: target.URL, Reason: "ping failed: " + err.Error()}
	}

	schema, err := insp.Inspect(ctx, db)
	if err != nil {
		return nil, err
	}
	schema.Dialect = target.Dialect
	if schema.Name == "" {
		schema.Name = target.Database
	}
	return schema, nil
}
