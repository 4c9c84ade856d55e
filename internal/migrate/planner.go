package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/nethalo/dbcharset/internal/analyzer"
	"github.com/nethalo/dbcharset/internal/mysql"
	"github.com/nethalo/dbcharset/internal/parser"
	"github.com/nethalo/dbcharset/internal/topology"
	"vitess.io/vitess/go/sqltypes"
)

// StatementKind tells table-level statements apart from column statements.
type StatementKind string

const (
	KindRowFormat    StatementKind = "row_format"
	KindTableCharset StatementKind = "table_charset"
	KindColumn       StatementKind = "column"
)

// TableLevel reports whether a failure of this statement aborts its table.
func (k StatementKind) TableLevel() bool {
	return k == KindRowFormat || k == KindTableCharset
}

// Statement is one generated ALTER TABLE.
type Statement struct {
	Kind        StatementKind
	Table       string
	Column      string // KindColumn only
	Description string
	SQL         string

	// Op is the operation the SQL parser recognised; OTHER if it could not parse it.
	Op parser.DDLOperation
	// Analysis is set when the server version is known.
	Analysis *analyzer.Result
}

// Plan is the ordered statement list for one table.
type Plan struct {
	Table      string
	Statements []Statement
}

// Planner generates the DDL that converts a table.
type Planner struct {
	cfg     Config
	policy  Policy
	q       mysql.Querier
	version mysql.ServerVersion
	topo    *topology.Info
}

func NewPlanner(cfg Config, q mysql.Querier) *Planner {
	return &Planner{cfg: cfg, policy: NewPolicy(cfg.TextTypes), q: q}
}

// SetServer enables statement classification for the given server.
func (p *Planner) SetServer(v mysql.ServerVersion, topo *topology.Info) {
	p.version = v
	p.topo = topo
}

// TableStatements returns the row-format statement followed by the
// table-wide charset conversion. Row format always comes first so the
// table is rebuilt into the target format before the conversion rewrites it.
func (p *Planner) TableStatements(table string) []Statement {
	t := mysql.QuoteIdentifier(table)
	return []Statement{
		p.newStatement(KindRowFormat, table, "",
			fmt.Sprintf("set row format %s", p.cfg.RowFormat),
			fmt.Sprintf("ALTER TABLE %s ROW_FORMAT=%s", t, p.cfg.RowFormat)),
		p.newStatement(KindTableCharset, table, "",
			fmt.Sprintf("convert table to %s/%s", p.cfg.Charset, p.cfg.Collation),
			fmt.Sprintf("ALTER TABLE %s CONVERT TO CHARACTER SET %s COLLATE %s", t, p.cfg.Charset, p.cfg.Collation)),
	}
}

// ColumnStatements lists the table's columns and returns one CHANGE per
// text-bearing column. The declared type, nullability and default are
// restated, since CHANGE replaces the whole column definition.
func (p *Planner) ColumnStatements(ctx context.Context, table string) ([]Statement, error) {
	cols, err := mysql.ListColumns(ctx, p.q, table)
	if err != nil {
		return nil, fmt.Errorf("listing columns of %s: %w", table, err)
	}

	t := mysql.QuoteIdentifier(table)
	var stmts []Statement
	for _, col := range cols {
		if !p.policy.NeedsConversion(col.Type) {
			continue
		}
		c := mysql.QuoteIdentifier(col.Name)
		stmts = append(stmts, p.newStatement(KindColumn, table, col.Name,
			fmt.Sprintf("convert column %s %s", col.Name, col.Type),
			fmt.Sprintf("ALTER TABLE %s CHANGE %s %s %s CHARACTER SET %s COLLATE %s%s",
				t, c, c, col.Type, p.cfg.Charset, p.cfg.Collation, columnAttributes(col))))
	}
	return stmts, nil
}

// columnAttributes renders the NOT NULL and DEFAULT clauses of col.
// Expression defaults (Extra DEFAULT_GENERATED) are restated in parentheses.
func columnAttributes(col mysql.ColumnInfo) string {
	var b strings.Builder
	if !col.Nullable {
		b.WriteString(" NOT NULL")
	}
	if col.Default != nil {
		b.WriteString(" DEFAULT ")
		if strings.Contains(strings.ToUpper(col.Extra), "DEFAULT_GENERATED") {
			b.WriteString("(" + *col.Default + ")")
		} else {
			b.WriteString(sqltypes.EncodeStringSQL(*col.Default))
		}
	}
	return b.String()
}

// PlanTable returns both phases for a table. Column types are read before
// any table-level statement ran.
func (p *Planner) PlanTable(ctx context.Context, table string) (*Plan, error) {
	plan := &Plan{Table: table, Statements: p.TableStatements(table)}
	cols, err := p.ColumnStatements(ctx, table)
	if err != nil {
		return nil, err
	}
	plan.Statements = append(plan.Statements, cols...)
	return plan, nil
}

func (p *Planner) newStatement(kind StatementKind, table, column, desc, sql string) Statement {
	s := Statement{Kind: kind, Table: table, Column: column, Description: desc, SQL: sql, Op: parser.OtherDDL}
	parsed, err := parser.ParseAlter(sql)
	if err != nil {
		return s
	}
	s.Op = parsed.DDLOp
	if !p.version.IsZero() {
		s.Analysis = analyzer.Analyze(parsed, p.version, p.topo)
	}
	return s
}
