package core

import (
	"errors"
	"fmt"
	"time"
)

// SchemaDiscoveryError reports that a database cannot be introspected: the URL
// scheme is unsupported, or the target has no persistent catalog to query
// (e.g. in-memory SQLite).
type SchemaDiscoveryError struct {
	Target string
	Reason string
}

func (e *SchemaDiscoveryError) Error() string {
	return fmt.Sprintf("schema discovery failed for %q: %s", e.Target, e.Reason)
}

// SchemaIncompatibleError reports a type-incompatible change between a declared
// model column and the live database column. It is surfaced rather than
// silently coerced.
type SchemaIncompatibleError struct {
	Table     string
	Column    string
	ModelType string
	DBType    string
}

func (e *SchemaIncompatibleError) Error() string {
	return fmt.Sprintf("incompatible column %s.%s: model declares %q, database has %q",
		e.Table, e.Column, e.ModelType, e.DBType)
}

// LockTimeoutError reports that the migration advisory lock was not obtained
// within the configured timeout.
type LockTimeoutError struct {
	Key     string
	Timeout time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("migration lock %q not acquired within %s", e.Key, e.Timeout)
}

// DDLExecutionError reports a failed DDL statement. It carries the statement
// and the underlying driver error so the failure can be diagnosed without
// re-running the migration.
type DDLExecutionError struct {
	Statement string
	Table     string
	Err       error
}

func (e *DDLExecutionError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("DDL failed on table %s: %v\n  Statement: %s", e.Table, e.Err, e.Statement)
	}
	return fmt.Sprintf("DDL failed: %v\n  Statement: %s", e.Err, e.Statement)
}

func (e *DDLExecutionError) Unwrap() error { return e.Err }

// ChecksumMismatchError reports that a migration with the same version but a
// different checksum is already recorded in the history ledger. This signals
// drift between two code versions targeting the same database and is never
// auto-resolved.
type ChecksumMismatchError struct {
	Version  string
	Recorded string
	Computed string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("migration %s already recorded with checksum %s, computed %s",
		e.Version, e.Recorded, e.Computed)
}

// ErrConfirmationDeclined is returned when an interactive migration run is
// declined by the user. It is distinct from any database error.
var ErrConfirmationDeclined = errors.New("migration declined by user")
