// Package generate turns a schema diff into an ordered migration. Operations
// are sequenced for referential integrity — a table is always created before
// anything references it, and constraints are dropped before their table is —
// and destructive operations are only emitted when the caller explicitly
// allows them.
package generate

import (
	"fmt"
	"strings"

	"dataflow/internal/compare"
	"dataflow/internal/core"
)

// Options configure migration generation.
type Options struct {
	Dialect core.Dialect
	// AllowDestructive enables DROP TABLE / DROP COLUMN generation for
	// database objects the model no longer declares. Off by default: the
	// generator never silently drops data.
	AllowDestructive bool
	// Version labels the migration. When empty, a content-derived label is
	// used so independent processes agree on it.
	Version string
}

// Generator renders migrations for one dialect.
type Generator struct {
	dialect  core.Dialect
	renderer Renderer
}

// NewGenerator creates a generator for the given dialect.
func NewGenerator(dialect core.Dialect) (*Generator, error) {
	r, err := NewRenderer(dialect)
	if err != nil {
		return nil, err
	}
	return &Generator{dialect: dialect, renderer: r}, nil
}

// Generate converts a diff into a migration. The operation order is
// topological by dependency, not insertion order:
//
//	DROP_CONSTRAINT < DROP_INDEX < CREATE_TABLE < ADD_COLUMN < ALTER_COLUMN
//	< ADD_CONSTRAINT < CREATE_INDEX < DROP_COLUMN < DROP_TABLE
func (g *Generator) Generate(diff *compare.SchemaDiff, opts Options) (*core.Migration, error) {
	m := &core.Migration{Dialect: g.dialect}
	var ops []core.Operation

	if opts.AllowDestructive {
		drops, err := g.dropConstraintsForRemovedTables(diff)
		if err != nil {
			return nil, err
		}
		ops = append(ops, drops...)
	}

	creates, err := g.createTables(diff.MissingTables)
	if err != nil {
		return nil, err
	}
	ops = append(ops, creates...)

	for _, td := range diff.ModifiedTables {
		tableOps, err := g.modifyTable(td, opts)
		if err != nil {
			return nil, err
		}
		ops = append(ops, tableOps...)
	}

	// Foreign keys and indexes for newly created tables come after every
	// CREATE TABLE so a reference to another new table cannot run early.
	postOps, err := g.createTablePostOps(diff.MissingTables)
	if err != nil {
		return nil, err
	}
	ops = append(ops, postOps...)

	if opts.AllowDestructive {
		for _, t := range diff.ExtraTables {
			ops = append(ops, core.Operation{
				Kind:        core.OpDropTable,
				TableName:   t.Name,
				Table:       t,
				SQL:         g.renderer.DropTable(t.Name),
				RollbackSQL: mustCreateTable(g.renderer, t),
			})
		}
	}

	m.Operations = ops
	m.Version = opts.Version
	if m.Version == "" && len(ops) > 0 {
		m.Version = "auto_" + m.Checksum()[:12]
	}
	return m, nil
}

// createTables orders CREATE TABLE operations topologically: a table whose
// foreign keys point at another missing table is created after its target.
func (g *Generator) createTables(missing []*core.Table) ([]core.Operation, error) {
	ordered := topoSortTables(missing)

	var ops []core.Operation
	for _, t := range ordered {
		stmt, err := g.renderer.CreateTable(t)
		if err != nil {
			return nil, err
		}
		ops = append(ops, core.Operation{
			Kind:        core.OpCreateTable,
			TableName:   t.Name,
			Table:       t,
			SQL:         stmt,
			RollbackSQL: g.renderer.DropTable(t.Name),
		})
	}
	return ops, nil
}

// createTablePostOps emits the deferred foreign keys and secondary indexes
// for freshly created tables.
func (g *Generator) createTablePostOps(missing []*core.Table) ([]core.Operation, error) {
	var ops []core.Operation
	for _, t := range topoSortTables(missing) {
		for _, fk := range t.ForeignKeys {
			stmt, err := g.renderer.AddForeignKey(t.Name, fk)
			if err != nil {
				return nil, err
			}
			if stmt == "" {
				// Dialects that only support inline foreign keys already
				// rendered this one inside CREATE TABLE.
				continue
			}
			name := foreignKeyName(t.Name, fk)
			ops = append(ops, core.Operation{
				Kind:        core.OpAddConstraint,
				TableName:   t.Name,
				ObjectName:  name,
				SQL:         stmt,
				RollbackSQL: g.renderer.DropConstraint(t.Name, name),
			})
		}
		for _, idx := range t.Indexes {
			ops = append(ops, core.Operation{
				Kind:        core.OpCreateIndex,
				TableName:   t.Name,
				ObjectName:  idx.Name,
				SQL:         g.renderer.CreateIndex(t.Name, idx),
				RollbackSQL: g.renderer.DropIndex(t.Name, idx.Name),
			})
		}
	}
	return ops, nil
}

func (g *Generator) modifyTable(td *compare.TableDiff, opts Options) ([]core.Operation, error) {
	var ops []core.Operation

	for _, c := range td.AddedColumns {
		ops = append(ops, core.Operation{
			Kind:        core.OpAddColumn,
			TableName:   td.Name,
			ColumnName:  c.Name,
			Column:      c,
			SQL:         g.renderer.AddColumn(td.Name, c),
			RollbackSQL: g.renderer.DropColumn(td.Name, c.Name),
		})
	}

	for _, mm := range td.TypeMismatches {
		stmt, err := g.renderer.AlterColumnType(td.Name, mm.Model)
		if err != nil {
			return nil, err
		}
		rollback, err := g.renderer.AlterColumnType(td.Name, mm.DB)
		if err != nil {
			rollback = ""
		}
		ops = append(ops, core.Operation{
			Kind:        core.OpAlterColumn,
			TableName:   td.Name,
			ColumnName:  mm.Name,
			Column:      mm.Model,
			SQL:         stmt,
			RollbackSQL: rollback,
		})
	}

	for _, fk := range td.MissingForeignKeys {
		stmt, err := g.renderer.AddForeignKey(td.Name, fk)
		if err != nil {
			return nil, err
		}
		if stmt == "" {
			continue
		}
		name := foreignKeyName(td.Name, fk)
		ops = append(ops, core.Operation{
			Kind:        core.OpAddConstraint,
			TableName:   td.Name,
			ObjectName:  name,
			SQL:         stmt,
			RollbackSQL: g.renderer.DropConstraint(td.Name, name),
		})
	}

	for _, idx := range td.MissingIndexes {
		ops = append(ops, core.Operation{
			Kind:        core.OpCreateIndex,
			TableName:   td.Name,
			ObjectName:  idx.Name,
			SQL:         g.renderer.CreateIndex(td.Name, idx),
			RollbackSQL: g.renderer.DropIndex(td.Name, idx.Name),
		})
	}

	if opts.AllowDestructive {
		for _, c := range td.ExtraColumns {
			ops = append(ops, core.Operation{
				Kind:        core.OpDropColumn,
				TableName:   td.Name,
				ColumnName:  c.Name,
				Column:      c,
				SQL:         g.renderer.DropColumn(td.Name, c.Name),
				RollbackSQL: g.renderer.AddColumn(td.Name, c),
			})
		}
	}

	return ops, nil
}

// dropConstraintsForRemovedTables drops foreign keys that reference a table
// about to be dropped, so DROP_CONSTRAINT always precedes DROP_TABLE.
func (g *Generator) dropConstraintsForRemovedTables(diff *compare.SchemaDiff) ([]core.Operation, error) {
	var ops []core.Operation
	for _, t := range diff.ExtraTables {
		for _, fk := range t.ForeignKeys {
			name := foreignKeyName(t.Name, fk)
			stmt := g.renderer.DropConstraint(t.Name, name)
			if stmt == "" {
				continue
			}
			ops = append(ops, core.Operation{
				Kind:       core.OpDropConstraint,
				TableName:  t.Name,
				ObjectName: name,
				SQL:        stmt,
			})
		}
	}
	return ops, nil
}

// topoSortTables orders tables so that every foreign-key target inside the
// set comes before its referrer. Tables without dependencies keep their
// relative order; cycles fall back to declaration order rather than failing,
// since the executor will surface any real constraint violation.
func topoSortTables(tables []*core.Table) []*core.Table {
	byName := make(map[string]*core.Table, len(tables))
	for _, t := range tables {
		byName[strings.ToLower(t.Name)] = t
	}

	visited := make(map[string]bool, len(tables))
	var ordered []*core.Table

	var visit func(t *core.Table, path map[string]bool)
	visit = func(t *core.Table, path map[string]bool) {
		key := strings.ToLower(t.Name)
		if visited[key] || path[key] {
			return
		}
		path[key] = true
		for _, fk := range t.ForeignKeys {
			if dep, ok := byName[strings.ToLower(fk.TargetTable)]; ok && dep != t {
				visit(dep, path)
			}
		}
		delete(path, key)
		visited[key] = true
		ordered = append(ordered, t)
	}

	for _, t := range tables {
		visit(t, map[string]bool{})
	}
	return ordered
}

func mustCreateTable(r Renderer, t *core.Table) string {
	stmt, err := r.CreateTable(t)
	if err != nil {
		return ""
	}
	return stmt
}

// Summary returns a one-line-per-operation description of a migration, used
// by dry-run output.
func Summary(m *core.Migration) []string {
	out := make([]string, 0, len(m.Operations))
	for _, op := range m.Operations {
		target := op.TableName
		if op.ColumnName != "" {
			target += "." + op.ColumnName
		} else if op.ObjectName != "" {
			target += "." + op.ObjectName
		}
		out = append(out, fmt.Sprintf("%-15s %s", op.Kind, target))
	}
	return out
}
