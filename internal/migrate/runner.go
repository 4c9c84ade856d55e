package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/nethalo/dbcharset/internal/mysql"
	"github.com/nethalo/dbcharset/internal/topology"
)

// DataAccess is the transactional connection a run executes on. Every call
// goes to the same connection; Commit and Rollback release it.
type DataAccess interface {
	Query(ctx context.Context, query string, args ...any) ([]mysql.Row, error)
	GetOne(ctx context.Context, query string, args ...any) (mysql.Row, bool, error)
	Execute(ctx context.Context, query string, args ...any) (int64, error)
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger attaches a logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithServer enables per-statement classification for the given server.
func WithServer(v mysql.ServerVersion, topo *topology.Info) Option {
	return func(r *Runner) {
		r.version = v
		r.topo = topo
	}
}

// Runner converts every table of one schema inside a single transaction.
// A Runner performs one run.
type Runner struct {
	cfg     Config
	data    DataAccess
	logger  *slog.Logger
	version mysql.ServerVersion
	topo    *topology.Info

	inspector *Inspector
	planner   *Planner

	state State
	stats Stats
}

// New validates cfg and returns a Runner bound to data.
func New(cfg Config, data DataAccess, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.TextTypes = slices.Clone(cfg.TextTypes)

	r := &Runner{cfg: cfg, data: data, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.inspector = NewInspector(data, cfg.ViewPrefix, r.logger)
	r.planner = NewPlanner(cfg, data)
	if !r.version.IsZero() {
		r.planner.SetServer(r.version, r.topo)
	}
	return r, nil
}

// State returns the current state of the run.
func (r *Runner) State() State {
	return r.state
}

func (r *Runner) setState(s State) {
	r.logger.Debug("state transition", "from", r.state.String(), "to", s.String())
	r.state = s
}

// Run executes the migration. It returns a *FatalError when the run had to be
// aborted; per-table and per-column failures are only recorded in the report.
// On ErrFinalize the report is returned alongside the error.
func (r *Runner) Run(ctx context.Context, schema string) (*Report, error) {
	if r.state != StateIdle {
		return nil, ErrAlreadyRun
	}

	report := &Report{
		Schema:    schema,
		DryRun:    r.cfg.DryRun,
		Charset:   r.cfg.Charset,
		Collation: r.cfg.Collation,
		RowFormat: r.cfg.RowFormat,
		StartedAt: time.Now(),
	}
	r.logger.Info("starting charset migration",
		"schema", schema,
		"mode", report.Mode(),
		"charset", r.cfg.Charset,
		"collation", r.cfg.Collation,
		"row_format", r.cfg.RowFormat,
	)

	if err := r.data.Begin(ctx); err != nil {
		// nothing acquired, nothing to roll back
		return nil, r.fail(ErrBegin, err)
	}
	r.setState(StateConnected)

	if err := r.prepare(ctx); err != nil {
		return nil, r.abort(ctx, ErrValidate, err)
	}

	discovery, err := r.inspector.ListTables(ctx, schema)
	if err != nil {
		return nil, r.abort(ctx, ErrListTables, err)
	}
	r.setState(StateTablesDiscovered)

	for _, t := range discovery.Skipped {
		r.stats.TablesSkipped++
		r.logger.Info("skipping view", "table", t.Name, "reason", t.SkipReason)
	}
	report.Skipped = discovery.Skipped
	r.logger.Info("found tables to process", "count", len(discovery.Tables), "skipped", len(discovery.Skipped))

	r.setState(StateProcessing)
	for _, t := range discovery.Tables {
		if err := ctx.Err(); err != nil {
			return nil, r.abort(ctx, ErrCanceled, err)
		}
		result, err := r.processTable(ctx, t.Name)
		report.Tables = append(report.Tables, result)
		if err != nil {
			return nil, r.abort(ctx, ErrCanceled, err)
		}
	}

	r.setState(StateFinalizing)
	if r.cfg.DisableForeignKeyChecks && !r.cfg.DryRun {
		if _, err := r.data.Execute(ctx, "SET FOREIGN_KEY_CHECKS = 1"); err != nil {
			r.logger.Warn("could not re-enable foreign key checks", "error", err)
		}
	}
	report.Stats = r.stats
	report.FinishedAt = time.Now()

	if r.cfg.DryRun {
		r.logger.Info("[DRY-RUN] Rolling back - no changes made")
		err = r.data.Rollback(ctx)
	} else {
		err = r.data.Commit(ctx)
		report.Committed = err == nil
	}
	if err != nil {
		return report, r.fail(ErrFinalize, err)
	}
	r.setState(StateDone)

	r.logger.Info("charset migration complete",
		"mode", report.Mode(),
		"tables_processed", r.stats.TablesProcessed,
		"tables_skipped", r.stats.TablesSkipped,
		"fields_updated", r.stats.FieldsUpdated,
		"fields_failed", r.stats.FieldsFailed,
		"duration", report.Duration().String(),
	)
	return report, nil
}

// prepare validates the connection and sets session options.
func (r *Runner) prepare(ctx context.Context) error {
	_, ok, err := r.data.GetOne(ctx, "SELECT 1")
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("SELECT 1 returned no row")
	}
	if r.cfg.DisableForeignKeyChecks && !r.cfg.DryRun {
		if _, err := r.data.Execute(ctx, "SET FOREIGN_KEY_CHECKS = 0"); err != nil {
			return fmt.Errorf("disabling foreign key checks: %w", err)
		}
	}
	r.logger.Info("database connection validated")
	return nil
}

// processTable runs the table-level statements, then lists the columns and
// runs one statement per text column. The only returned error is
// cancellation of ctx.
func (r *Runner) processTable(ctx context.Context, table string) (TableResult, error) {
	result := TableResult{Table: table}
	r.logger.Info(r.prefix()+"table: start modify charset", "table", table, "charset", r.cfg.Charset)

	for _, stmt := range r.planner.TableStatements(table) {
		sr := r.apply(ctx, stmt)
		result.Statements = append(result.Statements, sr)
		if sr.Err != nil {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			r.logger.Error("failed to modify table", "table", table, "sql", stmt.SQL, "error", sr.Err)
			result.Err = sr.Err
			r.stats.TablesProcessed++
			return result, nil
		}
	}

	stmts, err := r.planner.ColumnStatements(ctx, table)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		r.logger.Error("failed to list columns", "table", table, "error", err)
		result.Err = err
		r.stats.TablesProcessed++
		return result, nil
	}

	for _, stmt := range stmts {
		sr := r.apply(ctx, stmt)
		result.Statements = append(result.Statements, sr)
		if sr.Err != nil {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			r.stats.FieldsFailed++
			continue
		}
		r.stats.FieldsUpdated++
	}
	r.stats.TablesProcessed++
	return result, nil
}

// apply executes one statement, or only logs it in dry-run.
func (r *Runner) apply(ctx context.Context, stmt Statement) StatementResult {
	if r.cfg.DryRun {
		r.logger.Info("[DRY-RUN] Would execute", "sql", stmt.SQL)
		return StatementResult{Statement: stmt}
	}

	r.logger.Debug("executing", "sql", stmt.SQL, "kind", string(stmt.Kind))
	if _, err := r.data.Execute(ctx, stmt.SQL); err != nil {
		serr := &StatementError{Statement: stmt, Err: err}
		if stmt.Kind == KindColumn {
			r.logger.Error("failed sql", "sql", stmt.SQL, "error", err, "code", serr.Code())
		}
		return StatementResult{Statement: stmt, Executed: true, Err: serr}
	}
	return StatementResult{Statement: stmt, Executed: true}
}

func (r *Runner) prefix() string {
	if r.cfg.DryRun {
		return "[DRY-RUN] "
	}
	return ""
}

// fail marks the run failed without touching the transaction.
func (r *Runner) fail(kind, err error) *FatalError {
	fe := &FatalError{State: r.state, Kind: kind, Err: err}
	r.logger.Error("charset migration failed", "state", r.state.String(), "error", err)
	r.setState(StateFailed)
	return fe
}

// abort rolls back, which also releases the connection, then fails. The
// rollback runs even when ctx is already canceled.
func (r *Runner) abort(ctx context.Context, kind, err error) *FatalError {
	fe := r.fail(kind, err)
	if rbErr := r.data.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
		r.logger.Error("rollback after failure failed", "error", rbErr)
	}
	return fe
}
