package migrate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/nethalo/dbcharset/internal/mysql"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// glog, pulled in by the vitess parser, starts its flush daemon at init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/golang/glog.(*fileSink).flushDaemon"))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeData is an in-memory DataAccess. Tables and columns are served from
// maps; statements listed in failExec fail.
type fakeData struct {
	schema  string
	tables  []mysql.Row
	columns map[string][]mysql.Row

	failExec  map[string]error
	failQuery map[string]error
	noSelect1 bool

	beginErr    error
	commitErr   error
	rollbackErr error

	// onExec runs after a statement succeeded
	onExec func(sql string)

	calls    []string
	executed []string
}

func newFakeData(schema string) *fakeData {
	return &fakeData{
		schema:    schema,
		columns:   map[string][]mysql.Row{},
		failExec:  map[string]error{},
		failQuery: map[string]error{},
	}
}

func (f *fakeData) addTable(name, typ string, cols ...string) {
	f.tables = append(f.tables, mysql.Row{"Tables_in_" + f.schema: name, "Table_type": typ})
	for _, c := range cols {
		field, typ, _ := strings.Cut(c, " ")
		f.columns[name] = append(f.columns[name], mysql.Row{"Field": field, "Type": typ, "Null": "YES"})
	}
}

func (f *fakeData) Query(ctx context.Context, query string, _ ...any) ([]mysql.Row, error) {
	f.calls = append(f.calls, query)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.failQuery[query]; ok {
		return nil, err
	}
	switch {
	case query == "SHOW FULL TABLES":
		return f.tables, nil
	case strings.HasPrefix(query, "SHOW COLUMNS FROM "):
		quoted := strings.TrimPrefix(query, "SHOW COLUMNS FROM ")
		table := strings.ReplaceAll(quoted[1:len(quoted)-1], "``", "`")
		return f.columns[table], nil
	}
	return nil, fmt.Errorf("unexpected query %q", query)
}

func (f *fakeData) GetOne(ctx context.Context, query string, _ ...any) (mysql.Row, bool, error) {
	f.calls = append(f.calls, query)
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err, ok := f.failQuery[query]; ok {
		return nil, false, err
	}
	if f.noSelect1 {
		return nil, false, nil
	}
	return mysql.Row{"1": "1"}, true, nil
}

func (f *fakeData) Execute(ctx context.Context, query string, _ ...any) (int64, error) {
	f.calls = append(f.calls, query)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err, ok := f.failExec[query]; ok {
		return 0, err
	}
	f.executed = append(f.executed, query)
	if f.onExec != nil {
		f.onExec(query)
	}
	return 0, nil
}

func (f *fakeData) Begin(context.Context) error {
	f.calls = append(f.calls, "BEGIN")
	return f.beginErr
}

func (f *fakeData) Commit(context.Context) error {
	f.calls = append(f.calls, "COMMIT")
	return f.commitErr
}

func (f *fakeData) Rollback(context.Context) error {
	f.calls = append(f.calls, "ROLLBACK")
	return f.rollbackErr
}

// alters returns the ALTER statements sent to the server.
func (f *fakeData) alters() []string {
	var out []string
	for _, sql := range f.executed {
		if strings.HasPrefix(sql, "ALTER") {
			out = append(out, sql)
		}
	}
	return out
}

func (f *fakeData) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeData) last() string {
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}
