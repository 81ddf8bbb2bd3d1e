// Package migrate orchestrates a full auto-migration run: inspect the live
// schema, compare it with the declared models, generate the migration, take
// the cross-process lock, and execute. The run is a linear state machine;
// every transition is logged and any failure moves to the failed state with
// the lock released.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"dataflow/internal/compare"
	"dataflow/internal/core"
	"dataflow/internal/dburl"
	"dataflow/internal/execute"
	"dataflow/internal/generate"
	"dataflow/internal/inspect"
	"dataflow/internal/lock"
	"dataflow/internal/logging"
	"dataflow/internal/model"
	"dataflow/internal/schemacache"
)

// State names one phase of a migration run.
type State string

const (
	StateIdle       State = "IDLE"
	StateInspecting State = "INSPECTING"
	StateComparing  State = "COMPARING"
	StateGenerating State = "GENERATING"
	StateLocking    State = "LOCKING"
	StateExecuting  State = "EXECUTING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// ConfirmFunc decides whether a generated migration may be applied. It
// receives the migration and its preflight analysis and returns false to
// decline.
type ConfirmFunc func(m *core.Migration, pf *execute.Preflight) (bool, error)

// Options configure one AutoMigrate run.
type Options struct {
	// DatabaseURL locates the target, e.g. postgres://user:pw@host/db.
	DatabaseURL string
	// Models is the declared schema to converge the database toward.
	Models *model.Registry
	// AllowDestructive permits DROP TABLE / DROP COLUMN generation.
	AllowDestructive bool
	// StrictTypes aborts on the first incompatible column instead of
	// generating an ALTER.
	StrictTypes bool
	// DryRun stops after generation and preflight; nothing is locked or
	// executed.
	DryRun bool
	// AutoConfirm applies the migration without calling Confirm.
	AutoConfirm bool
	// Confirm is consulted for non-empty migrations when AutoConfirm is off.
	Confirm ConfirmFunc
	// Version overrides the content-derived migration version label.
	Version string
	// LockKey names the cross-process lock; empty uses the shared default.
	LockKey string
	// LockTimeout bounds the wait for the lock; zero uses the default.
	LockTimeout time.Duration
}

// Report describes what a run did, however far it got.
type Report struct {
	State     State
	Target    *dburl.Target
	Schema    *core.Database
	Diff      *compare.SchemaDiff
	Migration *core.Migration
	Preflight *execute.Preflight
	Result    *execute.Result
}

// Changed reports whether the run applied any DDL.
func (r *Report) Changed() bool {
	return r.Result != nil && r.Result.Executed > 0
}

// Runner executes migration runs. It owns the schema snapshot cache and the
// comparator, both of which persist across runs of the same process.
type Runner struct {
	log        *logrus.Logger
	cache      *schemacache.Cache
	comparator *compare.Comparator
	strict     bool
}

// NewRunner creates a runner. A nil logger discards output.
func NewRunner(log *logrus.Logger) *Runner {
	if log == nil {
		log = logging.Discard()
	}
	return &Runner{
		log:   log,
		cache: schemacache.New(schemacache.DefaultTTL, schemacache.DefaultMaxSize),
	}
}

// AutoMigrate runs the full pipeline against opts.DatabaseURL. The returned
// report is populated as far as the run got, including on failure.
func (r *Runner) AutoMigrate(ctx context.Context, opts Options) (*Report, error) {
	report := &Report{State: StateIdle}
	if opts.Models == nil || opts.Models.Len() == 0 {
		return r.fail(report, fmt.Errorf("no models declared; nothing to migrate"))
	}

	target, err := dburl.Parse(opts.DatabaseURL)
	if err != nil {
		return r.fail(report, err)
	}
	report.Target = target

	schema, err := r.inspectStep(ctx, report, target)
	if err != nil {
		return r.fail(report, err)
	}

	diff, err := r.compareStep(report, opts, schema, target)
	if err != nil {
		return r.fail(report, err)
	}

	if diff.IsEmpty() {
		r.setState(report, StateDone)
		r.log.WithField("database", target.Database).Info("schema is up to date")
		return report, nil
	}

	migration, pf, err := r.generateStep(report, opts, diff, target)
	if err != nil {
		return r.fail(report, err)
	}

	if opts.DryRun || migration.IsEmpty() {
		r.setState(report, StateDone)
		return report, nil
	}

	if err := r.confirm(opts, migration, pf); err != nil {
		return r.fail(report, err)
	}

	if err := r.lockAndExecute(ctx, report, opts, target, migration); err != nil {
		return r.fail(report, err)
	}

	r.setState(report, StateDone)
	return report, nil
}

func (r *Runner) inspectStep(ctx context.Context, report *Report, target *dburl.Target) (*core.Database, error) {
	r.setState(report, StateInspecting)

	if cached := r.cache.Get(target.URL); cached != nil {
		r.log.WithField("database", target.Database).Debug("using cached schema snapshot")
		report.Schema = cached
		return cached, nil
	}

	schema, err := inspect.GetCurrentSchema(ctx, target)
	if err != nil {
		return nil, err
	}
	r.cache.Put(target.URL, schema)
	report.Schema = schema
	r.log.WithFields(logrus.Fields{
		"database": target.Database,
		"tables":   len(schema.Tables),
	}).Info("inspected live schema")
	return schema, nil
}

func (r *Runner) compareStep(report *Report, opts Options, schema *core.Database, target *dburl.Target) (*compare.SchemaDiff, error) {
	r.setState(report, StateComparing)

	if r.comparator == nil || r.strict != opts.StrictTypes {
		cmpOpts := compare.DefaultOptions()
		cmpOpts.StrictTypes = opts.StrictTypes
		r.comparator = compare.NewComparator(cmpOpts)
		r.strict = opts.StrictTypes
	}

	declared := opts.Models.Database(target.Dialect)
	diff, err := r.comparator.Compare(declared, schema)
	if err != nil {
		return nil, err
	}
	report.Diff = diff
	r.log.WithFields(logrus.Fields{
		"missingTables":  len(diff.MissingTables),
		"modifiedTables": len(diff.ModifiedTables),
		"extraTables":    len(diff.ExtraTables),
	}).Info("compared declared models against live schema")
	return diff, nil
}

func (r *Runner) generateStep(report *Report, opts Options, diff *compare.SchemaDiff, target *dburl.Target) (*core.Migration, *execute.Preflight, error) {
	r.setState(report, StateGenerating)

	gen, err := generate.NewGenerator(target.Dialect)
	if err != nil {
		return nil, nil, err
	}
	migration, err := gen.Generate(diff, generate.Options{
		Dialect:          target.Dialect,
		AllowDestructive: opts.AllowDestructive,
		Version:          opts.Version,
	})
	if err != nil {
		return nil, nil, err
	}
	report.Migration = migration

	pf := execute.NewAnalyzer(target.Dialect).Analyze(migration)
	report.Preflight = pf
	r.log.WithFields(logrus.Fields{
		"version":    migration.Version,
		"operations": len(migration.Operations),
		"warnings":   len(pf.Warnings),
	}).Info("generated migration")
	return migration, pf, nil
}

// confirm gates execution. AutoConfirm bypasses it entirely; otherwise the
// caller-supplied Confirm decides, and with no Confirm only migrations that
// cannot lose data proceed.
func (r *Runner) confirm(opts Options, m *core.Migration, pf *execute.Preflight) error {
	if opts.AutoConfirm {
		return nil
	}
	if opts.Confirm != nil {
		ok, err := opts.Confirm(m, pf)
		if err != nil {
			return err
		}
		if !ok {
			return core.ErrConfirmationDeclined
		}
		return nil
	}
	if m.HasDestructive() {
		return fmt.Errorf("migration %s contains destructive operations: %w",
			m.Version, core.ErrConfirmationDeclined)
	}
	return nil
}

func (r *Runner) lockAndExecute(ctx context.Context, report *Report, opts Options, target *dburl.Target, m *core.Migration) error {
	r.setState(report, StateLocking)

	db, err := sql.Open(target.Driver, target.DSN)
	if err != nil {
		return fmt.Errorf("opening %s: %w", target.Database, err)
	}
	defer db.Close()

	locker, err := lock.NewLocker(target.Dialect)
	if err != nil {
		return err
	}
	key := opts.LockKey
	if key == "" {
		key = lock.DefaultKey
	}
	handle, err := locker.Acquire(ctx, db, key, opts.LockTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := handle.Release(context.WithoutCancel(ctx)); relErr != nil {
			r.log.WithError(relErr).Warn("failed to release migration lock")
		}
	}()
	r.log.WithField("key", key).Debug("acquired migration lock")

	r.setState(report, StateExecuting)
	res, err := execute.NewExecutor(db, target.Dialect).Execute(ctx, m)
	if err != nil {
		return err
	}
	report.Result = res

	// The live schema changed; cached snapshots and table diffs are stale.
	r.cache.Invalidate(target.URL)
	if r.comparator != nil {
		r.comparator.Invalidate()
	}

	r.log.WithFields(logrus.Fields{
		"version":  res.Version,
		"executed": res.Executed,
		"skipped":  res.AlreadyApplied,
	}).Info("migration complete")
	return nil
}

func (r *Runner) setState(report *Report, next State) {
	r.log.WithFields(logrus.Fields{"from": report.State, "to": next}).Debug("state transition")
	report.State = next
}

func (r *Runner) fail(report *Report, err error) (*Report, error) {
	r.setState(report, StateFailed)
	r.log.WithError(err).Error("migration run failed")
	return report, err
}
