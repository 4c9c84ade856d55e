package output

import (
	"encoding/json"
	"io"

	"github.com/nethalo/dbcharset/internal/migrate"
	"github.com/nethalo/dbcharset/internal/mysql"
	"github.com/nethalo/dbcharset/internal/topology"
)

// JSONRenderer produces machine-readable JSON output.
type JSONRenderer struct {
	w    io.Writer
	opts Options
}

type jsonReport struct {
	Schema     string        `json:"schema"`
	Mode       string        `json:"mode"`
	Charset    string        `json:"charset"`
	Collation  string        `json:"collation"`
	RowFormat  string        `json:"row_format"`
	Committed  bool          `json:"committed"`
	DurationMs int64         `json:"duration_ms"`
	Stats      migrate.Stats `json:"stats"`
	Skipped    []jsonSkipped `json:"skipped,omitempty"`
	Tables     []jsonTable   `json:"tables,omitempty"`
	Failures   []jsonFailure `json:"failures,omitempty"`
}

type jsonSkipped struct {
	Table  string `json:"table"`
	Reason string `json:"reason"`
}

type jsonTable struct {
	Table      string          `json:"table"`
	Error      string          `json:"error,omitempty"`
	Statements []jsonStatement `json:"statements,omitempty"`
}

type jsonStatement struct {
	Kind          string `json:"kind"`
	Column        string `json:"column,omitempty"`
	SQL           string `json:"sql"`
	Status        string `json:"status"`
	Operation     string `json:"ddl_operation,omitempty"`
	Algorithm     string `json:"algorithm,omitempty"`
	Lock          string `json:"lock,omitempty"`
	RebuildsTable *bool  `json:"rebuilds_table,omitempty"`
	Risk          string `json:"risk,omitempty"`
	Error         string `json:"error,omitempty"`
}

type jsonFailure struct {
	Table     string `json:"table"`
	SQL       string `json:"sql,omitempty"`
	Error     string `json:"error"`
	ErrorCode uint16 `json:"error_code,omitempty"`
}

func (r *JSONRenderer) RenderReport(report *migrate.Report) {
	out := jsonReport{
		Schema:     report.Schema,
		Mode:       report.Mode(),
		Charset:    report.Charset,
		Collation:  report.Collation,
		RowFormat:  report.RowFormat,
		Committed:  report.Committed,
		DurationMs: report.Duration().Milliseconds(),
		Stats:      report.Stats,
	}

	for _, t := range report.Skipped {
		out.Skipped = append(out.Skipped, jsonSkipped{Table: t.Name, Reason: t.SkipReason})
	}

	for _, t := range report.Tables {
		if err := tableError(t); err != nil {
			out.Failures = append(out.Failures, jsonFailure{Table: t.Table, Error: err.Error()})
		}
		for _, sr := range t.Statements {
			if sr.Err != nil {
				out.Failures = append(out.Failures, jsonFailureFor(t.Table, sr))
			}
		}
		if !r.opts.ShowStatements {
			continue
		}
		jt := jsonTable{Table: t.Table}
		if t.Err != nil {
			jt.Error = t.Err.Error()
		}
		for _, sr := range t.Statements {
			jt.Statements = append(jt.Statements, jsonStatementFor(sr))
		}
		out.Tables = append(out.Tables, jt)
	}

	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}

func jsonStatementFor(sr migrate.StatementResult) jsonStatement {
	js := jsonStatement{
		Kind:      string(sr.Statement.Kind),
		Column:    sr.Statement.Column,
		SQL:       sr.Statement.SQL,
		Status:    statementStatus(sr),
		Operation: string(sr.Statement.Op),
	}
	if a := sr.Statement.Analysis; a != nil {
		rebuilds := a.Classification.RebuildsTable
		js.Algorithm = string(a.Classification.Algorithm)
		js.Lock = string(a.Classification.Lock)
		js.RebuildsTable = &rebuilds
		js.Risk = string(a.Risk)
	}
	if sr.Err != nil {
		js.Error = sr.Err.Error()
	}
	return js
}

func jsonFailureFor(table string, sr migrate.StatementResult) jsonFailure {
	f := jsonFailure{Table: table, SQL: sr.Statement.SQL, Error: sr.Err.Error()}
	f.ErrorCode = mysql.ErrorCode(sr.Err)
	return f
}

func (r *JSONRenderer) RenderTopology(conn mysql.ConnectionConfig, topo *topology.Info) {
	out := map[string]interface{}{
		"host":             conn.Host,
		"port":             conn.Port,
		"version":          topo.Version.String(),
		"topology":         string(topo.Type),
		"read_only":        topo.ReadOnly,
		"super_read_only":  topo.SuperReadOnly,
		"charset_server":   topo.CharsetServer,
		"collation_server": topo.CollationServer,
	}

	switch topo.Type {
	case topology.Galera:
		out["cluster_size"] = topo.GaleraClusterSize
		out["node_state"] = topo.GaleraNodeState
		out["osu_method"] = topo.GaleraOSUMethod
	case topology.GroupRepl:
		out["gr_mode"] = topo.GRMode
		out["member_count"] = topo.GRMemberCount
	case topology.AsyncReplica, topology.SemiSyncReplica:
		out["is_replica"] = topo.IsReplica
		out["is_primary"] = topo.IsPrimary
		if topo.ReplicaLagSecs != nil {
			out["replica_lag_seconds"] = *topo.ReplicaLagSecs
		}
	}

	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}

func (r *JSONRenderer) RenderWarnings(warnings []string) {
	if len(warnings) == 0 {
		return
	}
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	enc.Encode(map[string][]string{"warnings": warnings})
}
