package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// OperationKind is an ENUM with all structural migration operation kinds.
type OperationKind string

const (
	OpCreateTable    OperationKind = "CREATE_TABLE"
	OpDropTable      OperationKind = "DROP_TABLE"
	OpAddColumn      OperationKind = "ADD_COLUMN"
	OpAlterColumn    OperationKind = "ALTER_COLUMN"
	OpDropColumn     OperationKind = "DROP_COLUMN"
	OpAddConstraint  OperationKind = "ADD_CONSTRAINT"
	OpDropConstraint OperationKind = "DROP_CONSTRAINT"
	OpCreateIndex    OperationKind = "CREATE_INDEX"
	OpDropIndex      OperationKind = "DROP_INDEX"
)

// Destructive reports whether the operation kind can lose data. Destructive
// operations are only ever generated when the caller explicitly allows them.
func (k OperationKind) Destructive() bool {
	switch k {
	case OpDropTable, OpDropColumn:
		return true
	default:
		return false
	}
}

// Operation is one step of a migration. It carries the structural payload the
// generator derived it from plus the rendered dialect-specific SQL, so the
// executor never needs to re-render and the checksum stays a pure function of
// the operation sequence.
type Operation struct {
	Kind        OperationKind `json:"kind"`
	TableName   string        `json:"table"`
	ColumnName  string        `json:"column,omitempty"`
	ObjectName  string        `json:"object,omitempty"` // constraint or index name
	Table       *Table        `json:"-"`
	Column      *Column       `json:"-"`
	SQL         string        `json:"sql"`
	RollbackSQL string        `json:"rollbackSql,omitempty"`
}

// Migration is an ordered sequence of operations with a version string.
// The checksum is a pure function of the operation sequence: the same
// operations always hash to the same value, which is what makes duplicate
// detection work across independent processes.
type Migration struct {
	Version    string      `json:"version"`
	Dialect    Dialect     `json:"dialect"`
	Operations []Operation `json:"operations"`
}

// IsEmpty reports whether the migration contains no operations.
func (m *Migration) IsEmpty() bool {
	return len(m.Operations) == 0
}

// Statements returns the SQL statements in execution order.
func (m *Migration) Statements() []string {
	out := make([]string, 0, len(m.Operations))
	for _, op := range m.Operations {
		if s := strings.TrimSpace(op.SQL); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// RollbackStatements returns the rollback statements in reverse operation
// order, so they undo the migration back to front.
func (m *Migration) RollbackStatements() []string {
	out := make([]string, 0, len(m.Operations))
	for i := len(m.Operations) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(m.Operations[i].RollbackSQL); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// HasDestructive reports whether any operation in the migration can lose data.
func (m *Migration) HasDestructive() bool {
	for _, op := range m.Operations {
		if op.Kind.Destructive() {
			return true
		}
	}
	return false
}

// Checksum computes the SHA-256 content hash of the operation sequence.
// The input serialization is deterministic (fixed field order, one operation
// per line), so independent processes generating the same migration compute
// the same checksum.
func (m *Migration) Checksum() string {
	h := sha256.New()
	for _, op := range m.Operations {
		h.Write([]byte(string(op.Kind)))
		h.Write([]byte{'|'})
		h.Write([]byte(op.TableName))
		h.Write([]byte{'|'})
		h.Write([]byte(op.ColumnName))
		h.Write([]byte{'|'})
		h.Write([]byte(op.ObjectName))
		h.Write([]byte{'|'})
		h.Write([]byte(strings.TrimSpace(op.SQL)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
