package migrate

import "time"

// Stats are the run counters.
//
// TablesProcessed + TablesSkipped equals the number of tables listed, and
// FieldsUpdated + FieldsFailed equals the number of column statements attempted.
type Stats struct {
	TablesProcessed int `json:"tables_processed"`
	TablesSkipped   int `json:"tables_skipped"`
	FieldsUpdated   int `json:"fields_updated"`
	FieldsFailed    int `json:"fields_failed"`
}

// StatementResult is the outcome of one statement. Executed is false in
// dry-run and for statements never reached.
type StatementResult struct {
	Statement Statement
	Executed  bool
	Err       error
}

// TableResult is the outcome of one in-scope table.
type TableResult struct {
	Table      string
	Statements []StatementResult
	// Err is set when a table-level statement or the column listing failed.
	// No column statement is attempted after it.
	Err error
}

// Failed reports whether anything in the table failed.
func (t TableResult) Failed() bool {
	if t.Err != nil {
		return true
	}
	for _, s := range t.Statements {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Report is the frozen outcome of a run.
type Report struct {
	Schema    string
	DryRun    bool
	Charset   string
	Collation string
	RowFormat string

	Stats   Stats
	Tables  []TableResult
	Skipped []Table

	// Committed is true when the transaction was committed, false when it was rolled back.
	Committed  bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// Mode is DRY-RUN or LIVE.
func (r *Report) Mode() string {
	if r.DryRun {
		return "DRY-RUN"
	}
	return "LIVE"
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failures returns every failed statement across all tables, in execution order.
func (r *Report) Failures() []StatementResult {
	var out []StatementResult
	for _, t := range r.Tables {
		for _, s := range t.Statements {
			if s.Err != nil {
				out = append(out, s)
			}
		}
	}
	return out
}

// TablesFailed counts tables aborted by a table-level failure.
func (r *Report) TablesFailed() int {
	n := 0
	for _, t := range r.Tables {
		if t.Err != nil {
			n++
		}
	}
	return n
}
