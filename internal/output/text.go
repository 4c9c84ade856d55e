package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/nethalo/dbcharset/internal/analyzer"
	"github.com/nethalo/dbcharset/internal/migrate"
	"github.com/nethalo/dbcharset/internal/mysql"
	"github.com/nethalo/dbcharset/internal/topology"
)

const boxWidth = 72

// TextRenderer produces Lip Gloss styled terminal output.
type TextRenderer struct {
	w    io.Writer
	opts Options
}

func (r *TextRenderer) RenderReport(report *migrate.Report) {
	fmt.Fprintln(r.w)

	header := TitleStyle.Render(fmt.Sprintf("dbcharset — %s Summary", report.Mode()))
	lines := []string{
		r.labelValue("Schema:", report.Schema),
		r.labelValue("Mode:", r.colorMode(report)),
		r.labelValue("Character set:", report.Charset),
		r.labelValue("Collation:", report.Collation),
		r.labelValue("Row format:", report.RowFormat),
		r.labelValue("Duration:", report.Duration().Round(time.Millisecond).String()),
	}
	fmt.Fprintln(r.w, BoxStyle.Width(boxWidth).Render(header+"\n"+strings.Join(lines, "\n")))

	r.renderStats(report)

	if r.opts.ShowStatements {
		for _, t := range report.Tables {
			r.renderTable(t)
		}
	}

	if failures := r.collectFailures(report); len(failures) > 0 {
		content := DangerText.Render(IconDanger+" Failures") + "\n\n" + strings.Join(failures, "\n\n")
		fmt.Fprintln(r.w, DangerBoxStyle.Width(boxWidth).Render(content))
	}

	r.renderOutcome(report)
	fmt.Fprintln(r.w)
}

func (r *TextRenderer) renderStats(report *migrate.Report) {
	s := report.Stats
	failed := fmt.Sprintf("%d", s.FieldsFailed)
	if s.FieldsFailed > 0 {
		failed = DangerText.Render(failed)
	}
	lines := []string{
		r.labelValue("Tables processed:", fmt.Sprintf("%d", s.TablesProcessed)),
		r.labelValue("Tables skipped:", fmt.Sprintf("%d (views)", s.TablesSkipped)),
		r.labelValue("Fields updated:", fmt.Sprintf("%d", s.FieldsUpdated)),
		r.labelValue("Fields failed:", failed),
	}
	if n := report.TablesFailed(); n > 0 {
		lines = append(lines, r.labelValue("Tables failed:", DangerText.Render(fmt.Sprintf("%d", n))))
	}
	title := TitleStyle.Render("Statistics")
	fmt.Fprintln(r.w, BoxStyle.Width(boxWidth).Render(title+"\n"+strings.Join(lines, "\n")))
}

func (r *TextRenderer) renderTable(t migrate.TableResult) {
	var content strings.Builder
	content.WriteString(TitleStyle.Render("Table " + t.Table))
	for _, sr := range t.Statements {
		content.WriteString("\n" + r.colorStatus(sr) + " " + CodeStyle.Render(sr.Statement.SQL))
		if a := sr.Statement.Analysis; a != nil {
			content.WriteString("\n   " + riskText(a.Risk).Render(fmt.Sprintf("%s, %s, lock %s, rebuild %v",
				a.Risk, a.Classification.Algorithm, a.Classification.Lock, a.Classification.RebuildsTable)))
		}
	}
	if err := tableError(t); err != nil {
		content.WriteString("\n" + DangerText.Render("FAILED") + " " + err.Error())
	}

	style := BoxStyle
	if t.Failed() {
		style = WarningBoxStyle
	}
	fmt.Fprintln(r.w, style.Width(boxWidth).Render(content.String()))
}

func (r *TextRenderer) collectFailures(report *migrate.Report) []string {
	var out []string
	for _, t := range report.Tables {
		if err := tableError(t); err != nil {
			out = append(out, fmt.Sprintf("%s\n%s", WarningText.Render(t.Table), err))
		}
		for _, sr := range t.Statements {
			if sr.Err != nil {
				out = append(out, fmt.Sprintf("%s\n%s", WarningText.Render(sr.Statement.Description), sr.Err))
			}
		}
	}
	return out
}

func (r *TextRenderer) renderOutcome(report *migrate.Report) {
	var style lipgloss.Style
	var msg string
	switch {
	case report.DryRun:
		style, msg = SafeBoxStyle, IconInfo+" Dry run: transaction rolled back, no changes made."
	case !report.Committed:
		style, msg = DangerBoxStyle, IconDanger+" Transaction was not committed."
	case report.Stats.FieldsFailed > 0 || report.TablesFailed() > 0:
		style, msg = WarningBoxStyle, IconWarning+" Committed with failures. Review the statements above."
	default:
		style, msg = SafeBoxStyle, IconSafe+" Committed."
	}
	fmt.Fprintln(r.w, style.Width(boxWidth).Render(msg))
}

func (r *TextRenderer) RenderTopology(conn mysql.ConnectionConfig, topo *topology.Info) {
	fmt.Fprintln(r.w)

	var lines []string
	lines = append(lines, r.labelValue("Connected to:", conn.Address()))
	lines = append(lines, r.labelValue("Server version:", topo.Version.String()))
	lines = append(lines, r.labelValue("Topology:", formatTopoType(topo)))

	switch topo.Type {
	case topology.Galera:
		lines = append(lines, r.labelValue("Cluster size:", fmt.Sprintf("%d nodes", topo.GaleraClusterSize)))
		lines = append(lines, r.labelValue("Node state:", topo.GaleraNodeState))
		lines = append(lines, r.labelValue("wsrep_OSU_method:", topo.GaleraOSUMethod))
	case topology.GroupRepl:
		lines = append(lines, r.labelValue("Members:", fmt.Sprintf("%d online", topo.GRMemberCount)))
	case topology.AsyncReplica, topology.SemiSyncReplica:
		if topo.IsReplica {
			lag := "N/A"
			if topo.ReplicaLagSecs != nil {
				lag = fmt.Sprintf("%d seconds", *topo.ReplicaLagSecs)
			}
			lines = append(lines, r.labelValue("Replica lag:", lag))
		}
		if topo.IsPrimary {
			lines = append(lines, r.labelValue("Role:", "Primary (has replicas)"))
		}
	}

	lines = append(lines, r.labelValue("Read only:", fmt.Sprintf("%v", topo.ReadOnly || topo.SuperReadOnly)))
	lines = append(lines, r.labelValue("Server charset:", topo.CharsetServer))
	lines = append(lines, r.labelValue("Server collation:", topo.CollationServer))

	title := TitleStyle.Render("dbcharset — Connection Info")
	fmt.Fprintln(r.w, SafeBoxStyle.Width(boxWidth).Render(title+"\n"+strings.Join(lines, "\n")))
	fmt.Fprintln(r.w)
}

func (r *TextRenderer) RenderWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintln(r.w, WarningBoxStyle.Width(boxWidth).Render(WarningText.Render(IconWarning+" Warning")+"\n"+w))
	}
}

// helpers

func (r *TextRenderer) labelValue(label, value string) string {
	return LabelStyle.Render(label) + " " + ValueStyle.Render(value)
}

func (r *TextRenderer) colorMode(report *migrate.Report) string {
	if report.DryRun {
		return SafeText.Render(report.Mode())
	}
	return WarningText.Render(report.Mode())
}

func (r *TextRenderer) colorStatus(sr migrate.StatementResult) string {
	status := statementStatus(sr)
	switch {
	case sr.Err != nil:
		return DangerText.Render(status)
	case sr.Statement.Analysis != nil && sr.Statement.Analysis.Risk == analyzer.RiskDangerous:
		return WarningText.Render(status)
	case sr.Executed:
		return SafeText.Render(status)
	default:
		return MutedText.Render(status)
	}
}
