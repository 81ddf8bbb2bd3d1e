// Package execute applies generated migrations to a live database and keeps
// the per-database history ledger that makes re-runs idempotent. A migration
// whose checksum is already recorded is a no-op; the same version with a
// different checksum is drift between two code versions and aborts the run
// rather than being auto-resolved.
package execute

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dataflow/internal/core"
)

// HistoryTable is the name of the migration ledger created in each target
// database.
const HistoryTable = "dataflow_migrations"

// Result describes one Execute call.
type Result struct {
	Version        string
	Checksum       string
	Executed       int
	AlreadyApplied bool
}

// Executor runs migrations against one database. Execution is synchronous:
// DDL on a live schema is not something to pipeline.
type Executor struct {
	db       *sql.DB
	dialect  core.Dialect
	analyzer *Analyzer
}

// NewExecutor creates an executor bound to an open database handle.
func NewExecutor(db *sql.DB, dialect core.Dialect) *Executor {
	return &Executor{db: db, dialect: dialect, analyzer: NewAnalyzer(dialect)}
}

// Preflight analyzes a migration's statements without executing anything.
func (e *Executor) Preflight(m *core.Migration) *Preflight {
	return e.analyzer.Analyze(m)
}

// Execute applies one migration. Already-recorded migrations with a matching
// checksum are skipped; a version collision with a different checksum returns
// a ChecksumMismatchError. When the dialect runs DDL transactionally the whole
// migration is one transaction that rolls back on the first failure.
func (e *Executor) Execute(ctx context.Context, m *core.Migration) (*Result, error) {
	checksum := m.Checksum()
	res := &Result{Version: m.Version, Checksum: checksum}
	if m.IsEmpty() {
		res.AlreadyApplied = true
		return res, nil
	}

	if err := e.ensureHistoryTable(ctx); err != nil {
		return nil, err
	}

	recorded, found, err := e.recordedChecksum(ctx, m.Version)
	if err != nil {
		return nil, err
	}
	if found {
		if recorded != checksum {
			return nil, &core.ChecksumMismatchError{
				Version:  m.Version,
				Recorded: recorded,
				Computed: checksum,
			}
		}
		res.AlreadyApplied = true
		return res, nil
	}

	// The same content may have been applied under a different version label;
	// the checksum, not the label, is the migration's identity.
	applied, err := e.checksumApplied(ctx, checksum)
	if err != nil {
		return nil, err
	}
	if applied {
		res.AlreadyApplied = true
		return res, nil
	}

	pf := e.analyzer.Analyze(m)
	if pf.Transactional {
		err = e.executeTransactional(ctx, m, checksum, res)
	} else {
		err = e.executeSequential(ctx, m, checksum, res)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ExecuteBatch applies migrations in order and stops at the first failure,
// returning the results of the migrations that did complete.
func (e *Executor) ExecuteBatch(ctx context.Context, migrations []*core.Migration) ([]*Result, error) {
	results := make([]*Result, 0, len(migrations))
	for i, m := range migrations {
		res, err := e.Execute(ctx, m)
		if err != nil {
			return results, fmt.Errorf("migration %d/%d (%s) failed: %w",
				i+1, len(migrations), m.Version, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *Executor) executeTransactional(ctx context.Context, m *core.Migration, checksum string, res *Result) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration transaction: %w", err)
	}

	for _, op := range m.Operations {
		if _, err := tx.ExecContext(ctx, op.SQL); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("rollback failed after DDL error: %v (original: %w)", rbErr, err)
			}
			return &core.DDLExecutionError{Statement: op.SQL, Table: op.TableName, Err: err}
		}
		res.Executed++
	}

	if _, err := tx.ExecContext(ctx, e.deleteFailedSQL(), m.Version, checksum); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing failed attempts for %s: %w", m.Version, err)
	}
	if _, err := tx.ExecContext(ctx, e.insertHistorySQL(), m.Version, checksum, time.Now().UTC(), true); err != nil {
		tx.Rollback()
		return fmt.Errorf("recording migration %s: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration %s: %w", m.Version, err)
	}
	return nil
}

// executeSequential runs statements one by one for dialects whose DDL commits
// implicitly. A mid-run failure cannot be rolled back, so the error reports
// how many statements already took effect and a failed attempt is recorded in
// the ledger. A later retry of the same migration supersedes the failed row.
func (e *Executor) executeSequential(ctx context.Context, m *core.Migration, checksum string, res *Result) error {
	for _, op := range m.Operations {
		if _, err := e.db.ExecContext(ctx, op.SQL); err != nil {
			ddlErr := &core.DDLExecutionError{Statement: op.SQL, Table: op.TableName, Err: err}
			e.recordFailedAttempt(ctx, m.Version, checksum)
			return fmt.Errorf("%d of %d statements already applied and cannot be rolled back automatically: %w",
				res.Executed, len(m.Operations), ddlErr)
		}
		res.Executed++
	}
	if _, err := e.db.ExecContext(ctx, e.deleteFailedSQL(), m.Version, checksum); err != nil {
		return fmt.Errorf("clearing failed attempts for %s: %w", m.Version, err)
	}
	if _, err := e.db.ExecContext(ctx, e.insertHistorySQL(), m.Version, checksum, time.Now().UTC(), true); err != nil {
		return fmt.Errorf("recording migration %s: %w", m.Version, err)
	}
	return nil
}

// recordFailedAttempt is best effort: a failed migration is worth a ledger
// row, but failing to write it must not mask the DDL error. Any earlier
// failed row for the same migration is replaced, never duplicated, so the
// ledger key stays free for the eventual successful retry.
func (e *Executor) recordFailedAttempt(ctx context.Context, version, checksum string) {
	_, _ = e.db.ExecContext(ctx, e.deleteFailedSQL(), version, checksum)
	_, _ = e.db.ExecContext(ctx, e.insertHistorySQL(), version, checksum, time.Now().UTC(), false)
}

// History returns the recorded migrations, newest first.
func (e *Executor) History(ctx context.Context) ([]HistoryEntry, error) {
	if err := e.ensureHistoryTable(ctx); err != nil {
		return nil, err
	}
	rows, err := e.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT version, checksum, applied_at, success FROM %s ORDER BY applied_at DESC, version DESC`,
		HistoryTable))
	if err != nil {
		return nil, fmt.Errorf("reading migration history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.Version, &h.Checksum, &h.AppliedAt, &h.Success); err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

// HistoryEntry is one row of the migration ledger.
type HistoryEntry struct {
	Version   string    `json:"version"`
	Checksum  string    `json:"checksum"`
	AppliedAt time.Time `json:"appliedAt"`
	Success   bool      `json:"success"`
}

func (e *Executor) ensureHistoryTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  version VARCHAR(255) NOT NULL,
  checksum CHAR(64) NOT NULL,
  applied_at TIMESTAMP NOT NULL,
  success BOOLEAN NOT NULL,
  PRIMARY KEY (version, checksum)
)`, HistoryTable)
	if _, err := e.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("preparing history table: %w", err)
	}
	return nil
}

func (e *Executor) recordedChecksum(ctx context.Context, version string) (string, bool, error) {
	query := fmt.Sprintf(
		`SELECT checksum FROM %s WHERE version = %s AND success = %s ORDER BY applied_at DESC LIMIT 1`,
		HistoryTable, e.placeholder(1), e.boolLiteral(true))

	var checksum string
	err := e.db.QueryRowContext(ctx, query, version).Scan(&checksum)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("checking migration history for %s: %w", version, err)
	}
	return checksum, true, nil
}

// checksumApplied reports whether a successful migration with this content is
// already in the ledger, under any version label.
func (e *Executor) checksumApplied(ctx context.Context, checksum string) (bool, error) {
	query := fmt.Sprintf(
		`SELECT version FROM %s WHERE checksum = %s AND success = %s LIMIT 1`,
		HistoryTable, e.placeholder(1), e.boolLiteral(true))

	var version string
	err := e.db.QueryRowContext(ctx, query, checksum).Scan(&version)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking migration history for checksum %s: %w", checksum, err)
	}
	return true, nil
}

// deleteFailedSQL removes the failed-attempt row for a migration so the
// ledger's primary key is free when the retry records success.
func (e *Executor) deleteFailedSQL() string {
	return fmt.Sprintf(`DELETE FROM %s WHERE version = %s AND checksum = %s AND success = %s`,
		HistoryTable, e.placeholder(1), e.placeholder(2), e.boolLiteral(false))
}

func (e *Executor) insertHistorySQL() string {
	return fmt.Sprintf(`INSERT INTO %s (version, checksum, applied_at, success) VALUES (%s, %s, %s, %s)`,
		HistoryTable, e.placeholder(1), e.placeholder(2), e.placeholder(3), e.placeholder(4))
}

func (e *Executor) placeholder(n int) string {
	if e.dialect == core.DialectPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (e *Executor) boolLiteral(v bool) string {
	if e.dialect == core.DialectMySQL || e.dialect == core.DialectSQLite {
		if v {
			return "1"
		}
		return "0"
	}
	if v {
		return "TRUE"
	}
	return "FALSE"
}
