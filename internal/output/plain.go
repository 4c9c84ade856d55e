package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/nethalo/dbcharset/internal/migrate"
	"github.com/nethalo/dbcharset/internal/mysql"
	"github.com/nethalo/dbcharset/internal/topology"
)

// PlainRenderer produces unformatted text output safe for piping.
type PlainRenderer struct {
	w    io.Writer
	opts Options
}

func (r *PlainRenderer) RenderReport(report *migrate.Report) {
	rule := strings.Repeat("=", 50)
	fmt.Fprintln(r.w, rule)
	fmt.Fprintln(r.w, "Execution Summary:")
	fmt.Fprintf(r.w, "  Schema: %s\n", report.Schema)
	fmt.Fprintf(r.w, "  Mode: %s\n", report.Mode())
	fmt.Fprintf(r.w, "  Character Set: %s\n", report.Charset)
	fmt.Fprintf(r.w, "  Collation: %s\n", report.Collation)
	fmt.Fprintf(r.w, "  Row Format: %s\n", report.RowFormat)
	fmt.Fprintf(r.w, "  Tables processed: %d\n", report.Stats.TablesProcessed)
	fmt.Fprintf(r.w, "  Tables skipped (views): %d\n", report.Stats.TablesSkipped)
	fmt.Fprintf(r.w, "  Fields updated: %d\n", report.Stats.FieldsUpdated)
	fmt.Fprintf(r.w, "  Fields failed: %d\n", report.Stats.FieldsFailed)
	fmt.Fprintln(r.w, rule)

	if r.opts.ShowStatements {
		for _, t := range report.Tables {
			fmt.Fprintf(r.w, "\n--- %s ---\n", t.Table)
			for _, sr := range t.Statements {
				fmt.Fprintf(r.w, "[%s] %s;\n", statementStatus(sr), sr.Statement.SQL)
			}
		}
	}

	var failures []string
	for _, t := range report.Tables {
		if err := tableError(t); err != nil {
			failures = append(failures, fmt.Sprintf("FAILED table %s: %v", t.Table, err))
		}
		for _, sr := range t.Statements {
			if sr.Err != nil {
				failures = append(failures, fmt.Sprintf("FAILED: %v", sr.Err))
			}
		}
	}
	if len(failures) > 0 {
		fmt.Fprintln(r.w)
		for _, f := range failures {
			fmt.Fprintln(r.w, f)
		}
	}

	fmt.Fprintln(r.w)
	switch {
	case report.DryRun:
		fmt.Fprintln(r.w, "Result: rolled back (dry run)")
	case report.Committed:
		fmt.Fprintln(r.w, "Result: committed")
	default:
		fmt.Fprintln(r.w, "Result: not committed")
	}
}

func (r *PlainRenderer) RenderTopology(conn mysql.ConnectionConfig, topo *topology.Info) {
	fmt.Fprintf(r.w, "Connected to:     %s\n", conn.Address())
	fmt.Fprintf(r.w, "Server version:   %s\n", topo.Version.String())
	fmt.Fprintf(r.w, "Topology:         %s\n", formatTopoType(topo))
	fmt.Fprintf(r.w, "Read only:        %v\n", topo.ReadOnly || topo.SuperReadOnly)
	fmt.Fprintf(r.w, "Server charset:   %s\n", topo.CharsetServer)
	fmt.Fprintf(r.w, "Server collation: %s\n", topo.CollationServer)
}

func (r *PlainRenderer) RenderWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(r.w, "WARNING: %s\n", w)
	}
}
