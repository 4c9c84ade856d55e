package migrate

import (
	"errors"
	"fmt"

	"github.com/nethalo/dbcharset/internal/mysql"
)

// Fatal error kinds. A run that returns one of these has no trustworthy
// statistics, except for ErrFinalize where the report is still returned.
var (
	ErrBegin      = errors.New("begin transaction")
	ErrValidate   = errors.New("validate connection")
	ErrListTables = errors.New("list tables")
	ErrCanceled   = errors.New("run canceled")
	ErrFinalize   = errors.New("finalize transaction")
)

var (
	ErrEmptySchema   = errors.New("schema name is empty")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrAlreadyRun    = errors.New("runner already used")
)

// FatalError aborts a run. It records the state the runner was in and
// unwraps to both the kind sentinel and the underlying cause.
type FatalError struct {
	State State
	Kind  error
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s (state %s): %v", e.Kind, e.State, e.Err)
}

func (e *FatalError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// StatementError is a failed DDL statement. It is recorded in the report,
// never returned from Run.
type StatementError struct {
	Statement Statement
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("%s: %v", e.Statement.SQL, e.Err)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// Code is the MySQL server error number, or 0 when the cause did not come
// from the server.
func (e *StatementError) Code() uint16 {
	return mysql.ErrorCode(e.Err)
}
