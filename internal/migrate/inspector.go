package migrate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/nethalo/dbcharset/internal/mysql"
)

// Skip reasons recorded on excluded tables.
const (
	SkipViewPrefix = "name matches view prefix"
	SkipViewType   = "server reports VIEW"
)

// Table is one entry discovered in the schema.
type Table struct {
	Name       string
	Type       string // Table_type as reported by SHOW FULL TABLES
	SkipReason string

	prefixMatch bool
}

// IsView reports whether the table is excluded from migration, either by the
// naming convention or because the server lists it as a view.
func (t Table) IsView() bool {
	return t.prefixMatch || strings.EqualFold(t.Type, mysql.TableTypeView)
}

// Discovery is the result of listing a schema.
type Discovery struct {
	Tables  []Table // in scope, discovery order
	Skipped []Table
}

// Total is the number of rows the raw listing returned.
func (d Discovery) Total() int {
	return len(d.Tables) + len(d.Skipped)
}

// Inspector enumerates the tables of a schema.
type Inspector struct {
	q          mysql.Querier
	viewPrefix string
	logger     *slog.Logger
}

func NewInspector(q mysql.Querier, viewPrefix string, logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inspector{q: q, viewPrefix: viewPrefix, logger: logger}
}

// ListTables lists the schema the connection is bound to and splits it into
// in-scope tables and skipped views. The prefix match is case-sensitive.
func (i *Inspector) ListTables(ctx context.Context, schema string) (Discovery, error) {
	if schema == "" {
		return Discovery{}, ErrEmptySchema
	}

	infos, err := mysql.ListTables(ctx, i.q, schema)
	if err != nil {
		return Discovery{}, err
	}

	var d Discovery
	for _, info := range infos {
		t := Table{Name: info.Name, Type: info.Type}
		t.prefixMatch = i.viewPrefix != "" && strings.HasPrefix(t.Name, i.viewPrefix)

		switch {
		case t.prefixMatch:
			t.SkipReason = SkipViewPrefix
		case t.IsView():
			t.SkipReason = SkipViewType
		default:
			d.Tables = append(d.Tables, t)
			continue
		}
		i.logger.Debug("skipping view", "table", t.Name, "reason", t.SkipReason)
		d.Skipped = append(d.Skipped, t)
	}
	return d, nil
}
