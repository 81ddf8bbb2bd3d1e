// Package compare diffs a declared model schema against a live database
// snapshot. The core decision procedure is a subset rule: the database is
// compatible with the model when every declared column exists with a
// compatible type — extra database columns and tables are legal, so legacy
// schemas never trigger destructive "cleanup" migrations.
package compare

import (
	"sort"
	"strings"
	"sync"

	"dataflow/internal/core"
)

// SchemaDiff represents the structural differences between a declared model
// schema and a live database snapshot.
type SchemaDiff struct {
	// MissingTables are declared in the model but absent from the database.
	MissingTables []*core.Table
	// ExtraTables exist in the database but are not declared by any model.
	// They are reported for visibility; nothing is generated for them unless
	// destructive operations are explicitly requested.
	ExtraTables    []*core.Table
	ModifiedTables []*TableDiff
}

// TableDiff represents the differences for one table that exists on both
// sides but is not subset-compatible.
type TableDiff struct {
	Name string
	// AddedColumns are declared in the model but missing from the database.
	AddedColumns []*core.Column
	// TypeMismatches are shared columns whose types are incompatible.
	TypeMismatches []*ColumnMismatch
	// ExtraColumns exist in the database but are not declared. Subset rule:
	// these alone never make a table incompatible.
	ExtraColumns []*core.Column
	// MissingIndexes are declared but absent from the database.
	MissingIndexes []*core.Index
	// MissingForeignKeys are declared but absent from the database.
	MissingForeignKeys []*core.ForeignKey
}

// ColumnMismatch pairs a declared column with the incompatible database
// column of the same name.
type ColumnMismatch struct {
	Name  string
	Model *core.Column
	DB    *core.Column
}

// GetName methods implement the Named interface for deterministic sorting.
func (td *TableDiff) GetName() string      { return td.Name }
func (cm *ColumnMismatch) GetName() string { return cm.Name }

// IsEmpty reports whether the diff contains no actionable differences.
// ExtraTables are informational and do not count.
func (d *SchemaDiff) IsEmpty() bool {
	return len(d.MissingTables) == 0 && len(d.ModifiedTables) == 0
}

func (td *TableDiff) isEmpty() bool {
	return len(td.AddedColumns) == 0 &&
		len(td.TypeMismatches) == 0 &&
		len(td.MissingIndexes) == 0 &&
		len(td.MissingForeignKeys) == 0
}

// Options configure a Comparator.
type Options struct {
	// StrictTypes surfaces the first type mismatch as a
	// SchemaIncompatibleError instead of folding it into the diff.
	StrictTypes bool
	// MaxSchemaSize disables the fingerprint cache when the database snapshot
	// exceeds this many tables, bounding the comparator's memory footprint.
	MaxSchemaSize int
}

// DefaultOptions returns the comparator defaults.
func DefaultOptions() Options {
	return Options{StrictTypes: false, MaxSchemaSize: 500}
}

// Comparator diffs schemas with a per-instance fingerprint cache. The cache
// is process-local and purely a latency optimization: it is always safe to
// drop, and it is never shared across processes.
type Comparator struct {
	opts Options

	mu           sync.Mutex
	fingerprints map[string]string
	cachedDiffs  map[string]*TableDiff
}

// NewComparator creates a comparator with the given options.
func NewComparator(opts Options) *Comparator {
	if opts.MaxSchemaSize <= 0 {
		opts.MaxSchemaSize = DefaultOptions().MaxSchemaSize
	}
	return &Comparator{
		opts:         opts,
		fingerprints: make(map[string]string),
		cachedDiffs:  make(map[string]*TableDiff),
	}
}

// Compare diffs the declared model schema against the live database snapshot.
// With StrictTypes set, the first incompatible shared column aborts the
// comparison with a SchemaIncompatibleError.
func (c *Comparator) Compare(model, db *core.Database) (*SchemaDiff, error) {
	diff := &SchemaDiff{}

	dbTables := mapTablesByName(db.Tables)
	modelTables := mapTablesByName(model.Tables)

	useCache := len(db.Tables) <= c.opts.MaxSchemaSize

	for _, mt := range model.Tables {
		dt, ok := dbTables[strings.ToLower(mt.Name)]
		if !ok {
			diff.MissingTables = append(diff.MissingTables, mt)
			continue
		}

		if useCache {
			if td, hit := c.cachedDiff(mt, dt); hit {
				if td != nil {
					if err := c.checkStrict(td); err != nil {
						return nil, err
					}
					diff.ModifiedTables = append(diff.ModifiedTables, td)
				}
				continue
			}
		}

		td := compareTable(dt, mt)
		if useCache {
			c.storeDiff(mt, dt, td)
		}
		if td != nil {
			if err := c.checkStrict(td); err != nil {
				return nil, err
			}
			diff.ModifiedTables = append(diff.ModifiedTables, td)
		}
	}

	for _, dt := range db.Tables {
		if _, ok := modelTables[strings.ToLower(dt.Name)]; !ok {
			diff.ExtraTables = append(diff.ExtraTables, dt)
		}
	}

	sortNamed(diff.MissingTables)
	sortNamed(diff.ExtraTables)
	sortNamed(diff.ModifiedTables)

	return diff, nil
}

func (c *Comparator) checkStrict(td *TableDiff) error {
	if !c.opts.StrictTypes || len(td.TypeMismatches) == 0 {
		return nil
	}
	mm := td.TypeMismatches[0]
	return &core.SchemaIncompatibleError{
		Table:     td.Name,
		Column:    mm.Name,
		ModelType: mm.Model.TypeRaw,
		DBType:    mm.DB.TypeRaw,
	}
}

func (c *Comparator) cachedDiff(mt, dt *core.Table) (*TableDiff, bool) {
	fp := pairFingerprint(mt, dt)
	key := strings.ToLower(mt.Name)

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.fingerprints[key]; ok && prev == fp {
		return c.cachedDiffs[key], true
	}
	return nil, false
}

func (c *Comparator) storeDiff(mt, dt *core.Table, td *TableDiff) {
	fp := pairFingerprint(mt, dt)
	key := strings.ToLower(mt.Name)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fingerprints[key] = fp
	c.cachedDiffs[key] = td
}

// Invalidate drops all cached fingerprints. Called after any schema-affecting
// write so the next comparison sees fresh state.
func (c *Comparator) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fingerprints = make(map[string]string)
	c.cachedDiffs = make(map[string]*TableDiff)
}

// SchemasAreCompatible is the subset rule: every column the model declares
// must exist in the database table with a compatible type. The database may
// carry any number of additional columns.
func SchemasAreCompatible(dbTable, modelTable *core.Table) bool {
	for _, mc := range modelTable.Columns {
		dc := dbTable.FindColumn(mc.Name)
		if dc == nil {
			return false
		}
		if !core.ColumnsAreCompatible(dc, mc) {
			return false
		}
	}
	return true
}

// compareTable returns nil when the database table is subset-compatible with
// the model table, otherwise a TableDiff describing what the model needs.
func compareTable(dbTable, modelTable *core.Table) *TableDiff {
	td := &TableDiff{Name: modelTable.Name}

	for _, mc := range modelTable.Columns {
		dc := dbTable.FindColumn(mc.Name)
		if dc == nil {
			td.AddedColumns = append(td.AddedColumns, mc)
			continue
		}
		if !core.ColumnsAreCompatible(dc, mc) {
			td.TypeMismatches = append(td.TypeMismatches, &ColumnMismatch{
				Name:  mc.Name,
				Model: mc,
				DB:    dc,
			})
		}
	}

	for _, dc := range dbTable.Columns {
		if modelTable.FindColumn(dc.Name) == nil {
			td.ExtraColumns = append(td.ExtraColumns, dc)
		}
	}

	for _, mi := range modelTable.Indexes {
		if !hasMatchingIndex(dbTable, mi) {
			td.MissingIndexes = append(td.MissingIndexes, mi)
		}
	}

	for _, mfk := range modelTable.ForeignKeys {
		if !hasMatchingForeignKey(dbTable, mfk) {
			td.MissingForeignKeys = append(td.MissingForeignKeys, mfk)
		}
	}

	if td.isEmpty() {
		return nil
	}

	sortNamed(td.AddedColumns)
	sortNamed(td.TypeMismatches)
	sortNamed(td.ExtraColumns)
	sortNamed(td.MissingIndexes)
	sortNamed(td.MissingForeignKeys)
	return td
}

// hasMatchingIndex matches on column set and uniqueness, not on name: index
// names differ across environments while meaning the same thing.
func hasMatchingIndex(t *core.Table, want *core.Index) bool {
	for _, have := range t.Indexes {
		if have.Unique == want.Unique && equalStringSliceCI(have.Columns, want.Columns) {
			return true
		}
	}
	// A unique single-column index is also satisfied by a UNIQUE column
	// constraint surfaced on the column itself.
	if want.Unique && len(want.Columns) == 1 {
		if col := t.FindColumn(want.Columns[0]); col != nil && col.Unique {
			return true
		}
	}
	return false
}

func hasMatchingForeignKey(t *core.Table, want *core.ForeignKey) bool {
	for _, have := range t.ForeignKeys {
		if strings.EqualFold(have.Column, want.Column) &&
			strings.EqualFold(have.TargetTable, want.TargetTable) &&
			strings.EqualFold(have.TargetColumn, want.TargetColumn) {
			return true
		}
	}
	return false
}

func mapTablesByName(tables []*core.Table) map[string]*core.Table {
	m := make(map[string]*core.Table, len(tables))
	for _, t := range tables {
		m[strings.ToLower(t.Name)] = t
	}
	return m
}

func equalStringSliceCI(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Named is implemented by types that have a name identifier.
type Named interface {
	GetName() string
}

func sortNamed[T Named](items []T) {
	if len(items) <= 1 {
		return
	}
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = strings.ToLower(item.GetName())
	}
	sort.Slice(items, func(i, j int) bool {
		return keys[i] < keys[j]
	})
}
