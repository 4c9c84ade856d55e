package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/nethalo/dbcharset/internal/migrate"
	"github.com/nethalo/dbcharset/internal/mysql"
	"github.com/nethalo/dbcharset/internal/topology"
)

// MarkdownRenderer produces markdown output for documentation/tickets.
type MarkdownRenderer struct {
	w    io.Writer
	opts Options
}

func (r *MarkdownRenderer) RenderReport(report *migrate.Report) {
	fmt.Fprintf(r.w, "# dbcharset — %s Summary\n\n", report.Mode())

	fmt.Fprintf(r.w, "| Property | Value |\n|---|---|\n")
	fmt.Fprintf(r.w, "| Schema | `%s` |\n", report.Schema)
	fmt.Fprintf(r.w, "| Mode | **%s** |\n", report.Mode())
	fmt.Fprintf(r.w, "| Character set | %s |\n", report.Charset)
	fmt.Fprintf(r.w, "| Collation | %s |\n", report.Collation)
	fmt.Fprintf(r.w, "| Row format | %s |\n\n", report.RowFormat)

	fmt.Fprintf(r.w, "## Statistics\n\n")
	fmt.Fprintf(r.w, "| Counter | Value |\n|---|---|\n")
	fmt.Fprintf(r.w, "| Tables processed | %d |\n", report.Stats.TablesProcessed)
	fmt.Fprintf(r.w, "| Tables skipped (views) | %d |\n", report.Stats.TablesSkipped)
	fmt.Fprintf(r.w, "| Fields updated | %d |\n", report.Stats.FieldsUpdated)
	fmt.Fprintf(r.w, "| Fields failed | %d |\n\n", report.Stats.FieldsFailed)

	if r.opts.ShowStatements && len(report.Tables) > 0 {
		fmt.Fprintf(r.w, "## Statements\n\n")
		for _, t := range report.Tables {
			fmt.Fprintf(r.w, "### `%s`\n\n```sql\n", t.Table)
			for _, sr := range t.Statements {
				fmt.Fprintf(r.w, "%s; -- %s\n", sr.Statement.SQL, statementStatus(sr))
			}
			fmt.Fprintf(r.w, "```\n\n")
		}
	}

	var failures []string
	for _, t := range report.Tables {
		if err := tableError(t); err != nil {
			failures = append(failures, fmt.Sprintf("- `%s`: %s", t.Table, escapeMarkdown(err.Error())))
		}
		for _, sr := range t.Statements {
			if sr.Err != nil {
				failures = append(failures, fmt.Sprintf("- `%s`: %s", t.Table, escapeMarkdown(sr.Err.Error())))
			}
		}
	}
	if len(failures) > 0 {
		fmt.Fprintf(r.w, "## Failures\n\n%s\n\n", strings.Join(failures, "\n"))
	}

	switch {
	case report.DryRun:
		fmt.Fprintf(r.w, "> Dry run: transaction rolled back, no changes made.\n")
	case report.Committed:
		fmt.Fprintf(r.w, "> Transaction committed.\n")
	default:
		fmt.Fprintf(r.w, "> Transaction was not committed.\n")
	}
}

func (r *MarkdownRenderer) RenderTopology(conn mysql.ConnectionConfig, topo *topology.Info) {
	fmt.Fprintf(r.w, "# dbcharset — Connection Info\n\n")
	fmt.Fprintf(r.w, "| Property | Value |\n|---|---|\n")
	fmt.Fprintf(r.w, "| Connected to | %s |\n", conn.Address())
	fmt.Fprintf(r.w, "| Server version | %s |\n", topo.Version.String())
	fmt.Fprintf(r.w, "| Topology | %s |\n", formatTopoType(topo))
	fmt.Fprintf(r.w, "| Read only | %v |\n", topo.ReadOnly || topo.SuperReadOnly)
	fmt.Fprintf(r.w, "| Server charset | %s |\n", topo.CharsetServer)
	fmt.Fprintf(r.w, "| Server collation | %s |\n", topo.CollationServer)
}

func (r *MarkdownRenderer) RenderWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(r.w, "> **Warning:** %s\n", escapeMarkdown(w))
	}
	if len(warnings) > 0 {
		fmt.Fprintln(r.w)
	}
}

// escapeMarkdown keeps error text from breaking tables and inline code.
func escapeMarkdown(s string) string {
	return strings.NewReplacer("|", "\\|", "`", "'", "\n", " ").Replace(s)
}
