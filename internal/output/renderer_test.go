package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/nethalo/dbcharset/internal/analyzer"
	"github.com/nethalo/dbcharset/internal/migrate"
	"github.com/nethalo/dbcharset/internal/mysql"
	"github.com/nethalo/dbcharset/internal/parser"
	"github.com/nethalo/dbcharset/internal/topology"
)

// =============================================================
// Test Fixtures
// =============================================================

func stmt(kind migrate.StatementKind, table, column, sql string) migrate.Statement {
	return migrate.Statement{
		Kind:        kind,
		Table:       table,
		Column:      column,
		Description: "modify " + table,
		SQL:         sql,
		Op:          parser.ModifyColumn,
	}
}

func liveReport() *migrate.Report {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	colErr := &migrate.StatementError{
		Statement: stmt(migrate.KindColumn, "users", "bio", "ALTER TABLE `users` MODIFY `bio` TEXT CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci"),
		Err:       &gomysql.MySQLError{Number: 3144, Message: "Cannot create a JSON value"},
	}
	return &migrate.Report{
		Schema:    "app",
		Charset:   "utf8mb4",
		Collation: "utf8mb4_general_ci",
		RowFormat: "DYNAMIC",
		Stats:     migrate.Stats{TablesProcessed: 2, TablesSkipped: 1, FieldsUpdated: 1, FieldsFailed: 1},
		Tables: []migrate.TableResult{
			{
				Table: "users",
				Statements: []migrate.StatementResult{
					{Statement: stmt(migrate.KindRowFormat, "users", "", "ALTER TABLE `users` ROW_FORMAT=DYNAMIC"), Executed: true},
					{Statement: stmt(migrate.KindColumn, "users", "name", "ALTER TABLE `users` MODIFY `name` VARCHAR(64) CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci"), Executed: true},
					{Statement: colErr.Statement, Executed: true, Err: colErr},
				},
			},
			{
				Table: "orders",
				Statements: []migrate.StatementResult{
					{Statement: stmt(migrate.KindRowFormat, "orders", "", "ALTER TABLE `orders` ROW_FORMAT=DYNAMIC"), Executed: true},
				},
				Err: errors.New("listing columns of orders: connection reset"),
			},
		},
		Skipped:    []migrate.Table{{Name: "v_users", Type: "VIEW", SkipReason: migrate.SkipViewPrefix}},
		Committed:  true,
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}
}

func dryRunReport() *migrate.Report {
	s := stmt(migrate.KindRowFormat, "users", "", "ALTER TABLE `users` ROW_FORMAT=DYNAMIC")
	s.Analysis = &analyzer.Result{
		DDLOp: parser.ChangeRowFormat,
		Classification: analyzer.DDLClassification{
			Algorithm:     analyzer.AlgoInplace,
			Lock:          analyzer.LockNone,
			RebuildsTable: true,
		},
		Risk: analyzer.RiskSafe,
	}
	return &migrate.Report{
		Schema:    "app",
		DryRun:    true,
		Charset:   "utf8mb4",
		Collation: "utf8mb4_unicode_ci",
		RowFormat: "DYNAMIC",
		Stats:     migrate.Stats{TablesProcessed: 1},
		Tables: []migrate.TableResult{
			{Table: "users", Statements: []migrate.StatementResult{{Statement: s}}},
		},
	}
}

func sampleConn() mysql.ConnectionConfig {
	return mysql.ConnectionConfig{
		Host: "10.0.1.50",
		Port: 3306,
		User: "dbcharset",
	}
}

func sampleTopo() *topology.Info {
	return &topology.Info{
		Type:            topology.Standalone,
		Version:         mysql.ServerVersion{Major: 8, Minor: 0, Patch: 35, Flavor: "mysql"},
		CharsetServer:   "latin1",
		CollationServer: "latin1_swedish_ci",
	}
}

func assertContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

// =============================================================
// NewRenderer Factory Tests
// =============================================================

func TestNewRenderer(t *testing.T) {
	var buf bytes.Buffer

	tests := []struct {
		format string
		want   string
	}{
		{"json", "json"},
		{"markdown", "markdown"},
		{"plain", "plain"},
		{"text", "text"},
		{"", "text"},
		{"unknown", "text"},
	}

	for _, tt := range tests {
		var got string
		switch NewRenderer(tt.format, &buf, Options{}).(type) {
		case *JSONRenderer:
			got = "json"
		case *MarkdownRenderer:
			got = "markdown"
		case *PlainRenderer:
			got = "plain"
		case *TextRenderer:
			got = "text"
		}
		if got != tt.want {
			t.Errorf("NewRenderer(%q) = %s, want %s", tt.format, got, tt.want)
		}
	}
}

func TestStatementStatus(t *testing.T) {
	if got := statementStatus(migrate.StatementResult{Executed: true}); got != "ok" {
		t.Errorf("executed = %q", got)
	}
	if got := statementStatus(migrate.StatementResult{}); got != "dry-run" {
		t.Errorf("not executed = %q", got)
	}
	if got := statementStatus(migrate.StatementResult{Executed: true, Err: errors.New("x")}); got != "FAILED" {
		t.Errorf("failed = %q", got)
	}
}

func TestTableError(t *testing.T) {
	report := liveReport()
	if err := tableError(report.Tables[0]); err != nil {
		t.Errorf("users has no table error, got %v", err)
	}
	if err := tableError(report.Tables[1]); err == nil {
		t.Error("orders column listing failure should be reported")
	}

	carried := migrate.TableResult{
		Table:      "t",
		Statements: []migrate.StatementResult{{Err: errors.New("boom")}},
		Err:        errors.New("boom"),
	}
	if err := tableError(carried); err != nil {
		t.Errorf("error carried by a statement should not be repeated, got %v", err)
	}
}

// =============================================================
// Plain Renderer Tests
// =============================================================

func TestPlainRenderer_RenderReport(t *testing.T) {
	var buf bytes.Buffer
	r := &PlainRenderer{w: &buf}
	r.RenderReport(liveReport())

	out := buf.String()
	assertContains(t, out,
		"Execution Summary:",
		"Mode: LIVE",
		"Character Set: utf8mb4",
		"Collation: utf8mb4_general_ci",
		"Tables processed: 2",
		"Tables skipped (views): 1",
		"Fields updated: 1",
		"Fields failed: 1",
		"FAILED: ALTER TABLE `users` MODIFY `bio`",
		"FAILED table orders: listing columns of orders",
		"Result: committed",
	)
	if strings.Contains(out, "[ok]") {
		t.Error("statements should only be listed with ShowStatements")
	}
}

func TestPlainRenderer_RenderReport_DryRunStatements(t *testing.T) {
	var buf bytes.Buffer
	r := &PlainRenderer{w: &buf, opts: Options{ShowStatements: true}}
	r.RenderReport(dryRunReport())

	assertContains(t, buf.String(),
		"Mode: DRY-RUN",
		"--- users ---",
		"[dry-run] ALTER TABLE `users` ROW_FORMAT=DYNAMIC;",
		"Result: rolled back (dry run)",
	)
}

func TestPlainRenderer_RenderTopology(t *testing.T) {
	var buf bytes.Buffer
	r := &PlainRenderer{w: &buf}
	r.RenderTopology(sampleConn(), sampleTopo())

	assertContains(t, buf.String(),
		"10.0.1.50:3306",
		"8.0.35",
		"Standalone",
		"Server charset:   latin1",
	)
}

func TestPlainRenderer_RenderTopology_Socket(t *testing.T) {
	var buf bytes.Buffer
	r := &PlainRenderer{w: &buf}
	conn := mysql.ConnectionConfig{Socket: "/var/run/mysqld/mysqld.sock", User: "root"}
	r.RenderTopology(conn, sampleTopo())

	assertContains(t, buf.String(), "/var/run/mysqld/mysqld.sock")
}

func TestPlainRenderer_RenderWarnings(t *testing.T) {
	var buf bytes.Buffer
	r := &PlainRenderer{w: &buf}
	r.RenderWarnings([]string{"server is read-only"})

	assertContains(t, buf.String(), "WARNING: server is read-only")
}

// =============================================================
// JSON Renderer Tests
// =============================================================

func TestJSONRenderer_RenderReport(t *testing.T) {
	var buf bytes.Buffer
	r := &JSONRenderer{w: &buf}
	r.RenderReport(liveReport())

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}

	if got["mode"] != "LIVE" {
		t.Errorf("mode = %v", got["mode"])
	}
	if got["committed"] != true {
		t.Errorf("committed = %v", got["committed"])
	}
	if got["duration_ms"] != float64(1500) {
		t.Errorf("duration_ms = %v", got["duration_ms"])
	}

	stats := got["stats"].(map[string]interface{})
	if stats["tables_processed"] != float64(2) || stats["fields_failed"] != float64(1) {
		t.Errorf("stats = %v", stats)
	}

	if _, ok := got["tables"]; ok {
		t.Error("tables should be omitted without ShowStatements")
	}

	failures := got["failures"].([]interface{})
	if len(failures) != 2 {
		t.Fatalf("failures = %d, want 2", len(failures))
	}
	first := failures[0].(map[string]interface{})
	if first["error_code"] != float64(3144) {
		t.Errorf("error_code = %v, want 3144", first["error_code"])
	}
	second := failures[1].(map[string]interface{})
	if second["table"] != "orders" {
		t.Errorf("second failure table = %v", second["table"])
	}
	if _, ok := second["error_code"]; ok {
		t.Error("error_code should be omitted for non-MySQL errors")
	}

	skipped := got["skipped"].([]interface{})
	if skipped[0].(map[string]interface{})["reason"] != migrate.SkipViewPrefix {
		t.Errorf("skipped = %v", skipped)
	}
}

func TestJSONRenderer_RenderReport_Statements(t *testing.T) {
	var buf bytes.Buffer
	r := &JSONRenderer{w: &buf, opts: Options{ShowStatements: true}}
	r.RenderReport(dryRunReport())

	var got struct {
		Mode   string `json:"mode"`
		Tables []struct {
			Table      string `json:"table"`
			Statements []struct {
				Kind          string `json:"kind"`
				Status        string `json:"status"`
				Algorithm     string `json:"algorithm"`
				RebuildsTable *bool  `json:"rebuilds_table"`
				Risk          string `json:"risk"`
			} `json:"statements"`
		} `json:"tables"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Mode != "DRY-RUN" {
		t.Errorf("mode = %s", got.Mode)
	}
	if len(got.Tables) != 1 || len(got.Tables[0].Statements) != 1 {
		t.Fatalf("tables = %+v", got.Tables)
	}
	s := got.Tables[0].Statements[0]
	if s.Kind != "row_format" || s.Status != "dry-run" || s.Algorithm != "INPLACE" || s.Risk != "SAFE" {
		t.Errorf("statement = %+v", s)
	}
	if s.RebuildsTable == nil || !*s.RebuildsTable {
		t.Error("rebuilds_table should be true")
	}
}

func TestJSONRenderer_RenderTopology_Galera(t *testing.T) {
	var buf bytes.Buffer
	r := &JSONRenderer{w: &buf}
	topo := sampleTopo()
	topo.Type = topology.Galera
	topo.GaleraClusterSize = 3
	topo.GaleraOSUMethod = "TOI"
	r.RenderTopology(sampleConn(), topo)

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["topology"] != string(topology.Galera) {
		t.Errorf("topology = %v", got["topology"])
	}
	if got["cluster_size"] != float64(3) || got["osu_method"] != "TOI" {
		t.Errorf("galera fields = %v", got)
	}
	if got["charset_server"] != "latin1" {
		t.Errorf("charset_server = %v", got["charset_server"])
	}
}

func TestJSONRenderer_RenderWarnings(t *testing.T) {
	var buf bytes.Buffer
	r := &JSONRenderer{w: &buf}
	r.RenderWarnings(nil)
	if buf.Len() != 0 {
		t.Errorf("no warnings should render nothing, got %q", buf.String())
	}

	r.RenderWarnings([]string{"a", "b"})
	var got map[string][]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got["warnings"]) != 2 {
		t.Errorf("warnings = %v", got)
	}
}

// =============================================================
// Markdown Renderer Tests
// =============================================================

func TestMarkdownRenderer_RenderReport(t *testing.T) {
	var buf bytes.Buffer
	r := &MarkdownRenderer{w: &buf, opts: Options{ShowStatements: true}}
	r.RenderReport(liveReport())

	out := buf.String()
	assertContains(t, out,
		"# dbcharset — LIVE Summary",
		"| Schema | `app` |",
		"| Tables skipped (views) | 1 |",
		"| Fields failed | 1 |",
		"### `users`",
		"ROW_FORMAT=DYNAMIC; -- ok",
		"## Failures",
		"> Transaction committed.",
	)
	if strings.Contains(out, "- `users`: ALTER TABLE `users`") {
		t.Error("backticks in error text should be escaped")
	}
}

func TestMarkdownRenderer_RenderReport_DryRun(t *testing.T) {
	var buf bytes.Buffer
	r := &MarkdownRenderer{w: &buf}
	r.RenderReport(dryRunReport())

	out := buf.String()
	assertContains(t, out, "**DRY-RUN**", "> Dry run: transaction rolled back")
	if strings.Contains(out, "## Failures") {
		t.Error("dry run without failures should have no failures section")
	}
}

func TestMarkdownRenderer_RenderTopology(t *testing.T) {
	var buf bytes.Buffer
	r := &MarkdownRenderer{w: &buf}
	r.RenderTopology(sampleConn(), sampleTopo())

	assertContains(t, buf.String(), "| Connected to | 10.0.1.50:3306 |", "| Server collation | latin1_swedish_ci |")
}

func TestEscapeMarkdown(t *testing.T) {
	got := escapeMarkdown("a|b `c`\nd")
	if got != "a\\|b 'c' d" {
		t.Errorf("escapeMarkdown = %q", got)
	}
}

// =============================================================
// Text Renderer Tests
// =============================================================

func TestTextRenderer_RenderReport(t *testing.T) {
	var buf bytes.Buffer
	r := &TextRenderer{w: &buf, opts: Options{ShowStatements: true}}
	r.RenderReport(liveReport())

	assertContains(t, buf.String(),
		"LIVE Summary",
		"Tables processed:",
		"Failures",
		"listing columns of orders",
		"Committed with failures",
	)
}

func TestTextRenderer_RenderReport_DryRun(t *testing.T) {
	var buf bytes.Buffer
	r := &TextRenderer{w: &buf, opts: Options{ShowStatements: true}}
	r.RenderReport(dryRunReport())

	out := buf.String()
	assertContains(t, out, "DRY-RUN", "Dry run: transaction rolled back", "INPLACE")
	if strings.Contains(out, "Failures") {
		t.Error("no failures box expected")
	}
}

func TestTextRenderer_RenderReport_NotCommitted(t *testing.T) {
	var buf bytes.Buffer
	r := &TextRenderer{w: &buf}
	report := liveReport()
	report.Committed = false
	r.RenderReport(report)

	assertContains(t, buf.String(), "Transaction was not committed.")
}

func TestTextRenderer_RenderTopology(t *testing.T) {
	var buf bytes.Buffer
	r := &TextRenderer{w: &buf}
	topo := sampleTopo()
	topo.Type = topology.GroupRepl
	topo.GRMode = "SINGLE-PRIMARY"
	topo.GRMemberCount = 3
	r.RenderTopology(sampleConn(), topo)

	assertContains(t, buf.String(), "Connection Info", "Group Replication (SINGLE-PRIMARY)", "3 online")
}

func TestTextRenderer_RenderWarnings(t *testing.T) {
	var buf bytes.Buffer
	r := &TextRenderer{w: &buf}
	r.RenderWarnings([]string{"server character_set_server is latin1"})

	assertContains(t, buf.String(), "Warning", "character_set_server is latin1")
}
