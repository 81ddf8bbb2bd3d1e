package execute

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver" // registers TiDB parser driver implementations

	"dataflow/internal/core"
)

// WarningLevel grades preflight findings.
type WarningLevel string

const (
	WarnCaution WarningLevel = "CAUTION"
	WarnDanger  WarningLevel = "DANGER"
)

// Warning is one preflight finding with the statement that triggered it.
type Warning struct {
	Level   WarningLevel `json:"level"`
	Message string       `json:"message"`
	SQL     string       `json:"sql,omitempty"`
}

// Preflight summarizes what executing a migration would do: which statements
// can lose data, which can block, and whether the whole run can be wrapped in
// a single transaction.
type Preflight struct {
	Warnings      []Warning `json:"warnings,omitempty"`
	Transactional bool      `json:"transactional"`
	NonTxReasons  []string  `json:"nonTxReasons,omitempty"`
}

// HasDanger reports whether any finding is at the DANGER level.
func (p *Preflight) HasDanger() bool {
	for _, w := range p.Warnings {
		if w.Level == WarnDanger {
			return true
		}
	}
	return false
}

// Analyzer inspects migration statements before execution. For MySQL it
// parses the SQL with TiDB's AST parser to find implicit-commit DDL; Postgres
// and SQLite run DDL transactionally, so only the structural operation kinds
// matter there.
type Analyzer struct {
	dialect core.Dialect
	parser  *parser.Parser
}

// NewAnalyzer creates an analyzer for a dialect.
func NewAnalyzer(dialect core.Dialect) *Analyzer {
	a := &Analyzer{dialect: dialect}
	if dialect == core.DialectMySQL {
		a.parser = parser.New()
	}
	return a
}

// Analyze runs preflight checks over every operation in the migration.
func (a *Analyzer) Analyze(m *core.Migration) *Preflight {
	pf := &Preflight{Transactional: true}

	for _, op := range m.Operations {
		a.analyzeOperation(pf, &op)
	}
	return pf
}

func (a *Analyzer) analyzeOperation(pf *Preflight, op *core.Operation) {
	switch op.Kind {
	case core.OpDropTable:
		pf.Warnings = append(pf.Warnings, Warning{
			Level:   WarnDanger,
			Message: fmt.Sprintf("DROP TABLE %s permanently deletes the table and all its data", op.TableName),
			SQL:     op.SQL,
		})
	case core.OpDropColumn:
		pf.Warnings = append(pf.Warnings, Warning{
			Level:   WarnDanger,
			Message: fmt.Sprintf("DROP COLUMN %s.%s permanently deletes the column and its data", op.TableName, op.ColumnName),
			SQL:     op.SQL,
		})
	case core.OpAlterColumn:
		pf.Warnings = append(pf.Warnings, Warning{
			Level:   WarnCaution,
			Message: fmt.Sprintf("altering the type of %s.%s may rewrite the table and can fail on unconvertible rows", op.TableName, op.ColumnName),
			SQL:     op.SQL,
		})
	case core.OpCreateIndex:
		pf.Warnings = append(pf.Warnings, Warning{
			Level:   WarnCaution,
			Message: fmt.Sprintf("creating an index on %s may lock the table on large datasets", op.TableName),
			SQL:     op.SQL,
		})
	case core.OpAddConstraint:
		pf.Warnings = append(pf.Warnings, Warning{
			Level:   WarnCaution,
			Message: fmt.Sprintf("adding a constraint on %s validates existing rows and may lock the table", op.TableName),
			SQL:     op.SQL,
		})
	}

	if a.dialect == core.DialectMySQL {
		a.analyzeMySQLTx(pf, op.SQL)
	}
}

// analyzeMySQLTx marks statements that cause an implicit commit in MySQL. The
// AST parse is authoritative; statements it cannot parse fall back to a
// keyword check.
func (a *Analyzer) analyzeMySQLTx(pf *Preflight, sqlText string) {
	nodes, _, err := a.parser.Parse(sqlText, "", "")
	if err != nil || len(nodes) == 0 {
		a.keywordTxCheck(pf, sqlText)
		return
	}

	switch nodes[0].(type) {
	case *ast.CreateTableStmt, *ast.DropTableStmt, *ast.AlterTableStmt,
		*ast.CreateIndexStmt, *ast.DropIndexStmt, *ast.RenameTableStmt,
		*ast.TruncateTableStmt:
		a.markNonTransactional(pf, sqlText)
	}
}

func (a *Analyzer) keywordTxCheck(pf *Preflight, sqlText string) {
	upper := strings.ToUpper(strings.TrimSpace(sqlText))
	if strings.HasPrefix(upper, "CREATE ") ||
		strings.HasPrefix(upper, "DROP ") ||
		strings.HasPrefix(upper, "ALTER ") ||
		strings.HasPrefix(upper, "RENAME ") ||
		strings.HasPrefix(upper, "TRUNCATE ") {
		a.markNonTransactional(pf, sqlText)
	}
}

func (a *Analyzer) markNonTransactional(pf *Preflight, sqlText string) {
	pf.Transactional = false
	pf.NonTxReasons = append(pf.NonTxReasons,
		fmt.Sprintf("DDL statement causes implicit commit: %s", truncateSQL(sqlText)))
}

func truncateSQL(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if len(stmt) > 80 {
		return stmt[:77] + "..."
	}
	return stmt
}
