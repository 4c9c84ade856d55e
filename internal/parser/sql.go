package parser

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"vitess.io/vitess/go/vt/sqlparser"
)

// ErrNotAlterTable is returned by ParseAlter for statements other than ALTER TABLE.
var ErrNotAlterTable = errors.New("not an ALTER TABLE statement")

// DDLOperation enumerates the ALTER TABLE operations a charset migration issues.
type DDLOperation string

const (
	ChangeRowFormat DDLOperation = "CHANGE_ROW_FORMAT"
	ConvertCharset  DDLOperation = "CONVERT_CHARSET" // ALTER TABLE ... CONVERT TO CHARACTER SET ... (rewrites all columns)
	ChangeCharset   DDLOperation = "CHANGE_CHARSET"  // ALTER TABLE ... CHARACTER SET = ... (table default only)
	ChangeColumn    DDLOperation = "CHANGE_COLUMN"
	ModifyColumn    DDLOperation = "MODIFY_COLUMN"
	MultipleOps     DDLOperation = "MULTIPLE_OPS"
	OtherDDL        DDLOperation = "OTHER"
)

// ParsedAlter holds what a charset migration needs to know about an ALTER TABLE.
type ParsedAlter struct {
	RawSQL   string
	Database string // extracted from qualified table name if present
	Table    string
	DDLOp    DDLOperation

	// CHANGE_ROW_FORMAT
	RowFormat string // lowercase

	// CONVERT_CHARSET / CHANGE_CHARSET / CHANGE_COLUMN / MODIFY_COLUMN
	Charset   string // lowercase
	Collation string // lowercase

	// CHANGE_COLUMN / MODIFY_COLUMN
	OldColumnName  string
	ColumnName     string
	ColumnBaseType string // lowercase base type without length, e.g. "varchar"
}

var (
	parserOnce      sync.Once
	globalParser    *sqlparser.Parser
	globalParserErr error
)

func getParser() (*sqlparser.Parser, error) {
	parserOnce.Do(func() {
		globalParser, globalParserErr = sqlparser.New(sqlparser.Options{})
	})
	return globalParser, globalParserErr
}

// ParseAlter parses a single ALTER TABLE statement.
func ParseAlter(sql string) (*ParsedAlter, error) {
	sql = strings.TrimSpace(sql)
	sql = strings.TrimRight(sql, ";")

	p, err := getParser()
	if err != nil {
		return nil, fmt.Errorf("creating parser: %w", err)
	}

	stmt, err := p.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("parsing SQL: %w", err)
	}

	alter, ok := stmt.(*sqlparser.AlterTable)
	if !ok {
		return nil, ErrNotAlterTable
	}

	result := &ParsedAlter{RawSQL: sql}
	result.Database = alter.Table.Qualifier.String()
	result.Table = alter.Table.Name.String()
	classifyAlterTable(alter, result)
	return result, nil
}

func classifyAlterTable(alter *sqlparser.AlterTable, result *ParsedAlter) {
	switch len(alter.AlterOptions) {
	case 0:
		result.DDLOp = OtherDDL
		return
	case 1:
	default:
		result.DDLOp = MultipleOps
		return
	}

	switch opt := alter.AlterOptions[0].(type) {
	case *sqlparser.AlterCharset:
		result.DDLOp = ConvertCharset
		result.Charset = strings.ToLower(opt.CharacterSet)
		result.Collation = strings.ToLower(opt.Collate)

	case *sqlparser.ChangeColumn:
		result.DDLOp = ChangeColumn
		result.OldColumnName = opt.OldColumn.Name.String()
		extractColumnDefinition(opt.NewColDefinition, result)

	case *sqlparser.ModifyColumn:
		result.DDLOp = ModifyColumn
		extractColumnDefinition(opt.NewColDefinition, result)

	case sqlparser.TableOptions:
		result.DDLOp = OtherDDL
		for _, tableOpt := range opt {
			switch strings.ToUpper(tableOpt.Name) {
			case "ROW_FORMAT":
				result.DDLOp = ChangeRowFormat
				result.RowFormat = strings.ToLower(tableOpt.String)
			case "CHARSET", "CHARACTER SET", "DEFAULT CHARSET", "DEFAULT CHARACTER SET":
				result.DDLOp = ChangeCharset
				result.Charset = strings.ToLower(tableOpt.String)
			}
		}

	default:
		result.DDLOp = OtherDDL
	}
}

func extractColumnDefinition(def *sqlparser.ColumnDefinition, result *ParsedAlter) {
	if def == nil {
		return
	}
	result.ColumnName = def.Name.String()
	if def.Type == nil {
		return
	}
	result.ColumnBaseType = strings.ToLower(def.Type.Type)
	if def.Type.Charset.Name != "" {
		result.Charset = strings.ToLower(def.Type.Charset.Name)
	}
	if def.Type.Options != nil && def.Type.Options.Collate != "" {
		result.Collation = strings.ToLower(def.Type.Options.Collate)
	}
}
