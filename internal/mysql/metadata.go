package mysql

import (
	"context"
	"fmt"
	"strings"

	"vitess.io/vitess/go/sqlescape"
)

// TableTypeView is the Table_type SHOW FULL TABLES reports for views.
const TableTypeView = "VIEW"

// Querier is the read side of a Session.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
}

// TableInfo is one entry of SHOW FULL TABLES.
type TableInfo struct {
	Name string
	Type string // BASE TABLE, VIEW, SYSTEM VIEW
}

// ColumnInfo describes a single column as reported by SHOW COLUMNS.
type ColumnInfo struct {
	Table    string
	Name     string
	Type     string // declared type, verbatim, e.g. varchar(255)
	Nullable bool
	Default  *string
	Extra    string
}

// QuoteIdentifier wraps a MySQL identifier (database, table, column name) in
// backticks, doubling any backtick inside it.
func QuoteIdentifier(identifier string) string {
	return sqlescape.EscapeID(identifier)
}

// ListTables returns every table and view of the schema the connection is bound to,
// in server order.
func ListTables(ctx context.Context, q Querier, database string) ([]TableInfo, error) {
	rows, err := q.Query(ctx, "SHOW FULL TABLES")
	if err != nil {
		return nil, err
	}

	nameKey := "Tables_in_" + database
	result := make([]TableInfo, 0, len(rows))
	for _, row := range rows {
		name, ok := row.Get(nameKey)
		if !ok {
			// lower_case_table_names can change the reported schema case
			name, ok = tableNameColumn(row)
		}
		if !ok {
			return nil, fmt.Errorf("SHOW FULL TABLES row without %s column", nameKey)
		}
		typ, _ := row.GetFold("Table_type")
		result = append(result, TableInfo{Name: name, Type: typ})
	}
	return result, nil
}

func tableNameColumn(row Row) (string, bool) {
	for k, v := range row {
		if strings.HasPrefix(strings.ToLower(k), "tables_in_") {
			return v, true
		}
	}
	return "", false
}

// ListColumns returns the column definitions of a table in ordinal order.
func ListColumns(ctx context.Context, q Querier, table string) ([]ColumnInfo, error) {
	rows, err := q.Query(ctx, "SHOW COLUMNS FROM "+QuoteIdentifier(table))
	if err != nil {
		return nil, err
	}

	result := make([]ColumnInfo, 0, len(rows))
	for _, row := range rows {
		name, ok := row.GetFold("Field")
		if !ok {
			return nil, fmt.Errorf("SHOW COLUMNS row without Field column")
		}
		c := ColumnInfo{Table: table, Name: name}
		c.Type, _ = row.GetFold("Type")
		nullable, _ := row.GetFold("Null")
		c.Nullable = nullable == "YES"
		if def, ok := row.GetFold("Default"); ok {
			c.Default = &def
		}
		c.Extra, _ = row.GetFold("Extra")
		result = append(result, c)
	}
	return result, nil
}
