package output

import (
	"io"

	"github.com/nethalo/dbcharset/internal/migrate"
	"github.com/nethalo/dbcharset/internal/mysql"
	"github.com/nethalo/dbcharset/internal/topology"
)

// Renderer defines the output interface.
type Renderer interface {
	RenderReport(report *migrate.Report)
	RenderTopology(conn mysql.ConnectionConfig, topo *topology.Info)
	RenderWarnings(warnings []string)
}

// Options control how much of a report is shown.
type Options struct {
	// ShowStatements lists every generated statement, not only failures.
	ShowStatements bool
}

// NewRenderer creates a renderer for the given format.
func NewRenderer(format string, w io.Writer, opts Options) Renderer {
	switch format {
	case "json":
		return &JSONRenderer{w: w, opts: opts}
	case "markdown":
		return &MarkdownRenderer{w: w, opts: opts}
	case "plain":
		return &PlainRenderer{w: w, opts: opts}
	default:
		return &TextRenderer{w: w, opts: opts}
	}
}

// statementStatus is the one-word outcome of a statement.
func statementStatus(sr migrate.StatementResult) string {
	switch {
	case sr.Err != nil:
		return "FAILED"
	case !sr.Executed:
		return "dry-run"
	default:
		return "ok"
	}
}

func formatTopoType(topo *topology.Info) string {
	switch topo.Type {
	case topology.Galera:
		return "Percona XtraDB Cluster / Galera"
	case topology.GroupRepl:
		return "Group Replication (" + topo.GRMode + ")"
	case topology.AsyncReplica:
		return "Async Replication"
	case topology.SemiSyncReplica:
		return "Semi-sync Replication"
	default:
		return "Standalone"
	}
}

// tableError returns a table failure that no statement result carries,
// such as a failed column listing.
func tableError(t migrate.TableResult) error {
	if t.Err == nil {
		return nil
	}
	for _, sr := range t.Statements {
		if sr.Err != nil {
			return nil
		}
	}
	return t.Err
}
