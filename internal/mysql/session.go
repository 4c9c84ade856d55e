package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrNoTransaction is returned when a statement is issued outside Begin/Commit.
	ErrNoTransaction = errors.New("no transaction in progress")
	// ErrTransactionActive is returned by Begin when a transaction is already open.
	ErrTransactionActive = errors.New("transaction already in progress")
)

// Row is a single result row keyed by column name. NULL values are absent.
type Row map[string]string

// Get returns the value of column and whether it was present and non-NULL.
func (r Row) Get(column string) (string, bool) {
	v, ok := r[column]
	return v, ok
}

// GetFold looks a column up ignoring case.
func (r Row) GetFold(column string) (string, bool) {
	if v, ok := r[column]; ok {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, column) {
			return v, true
		}
	}
	return "", false
}

// Session binds every statement of a run to one connection and one transaction.
// Commit and Rollback end the transaction and release the connection.
type Session struct {
	db     *sql.DB
	conn   *sql.Conn
	tx     *sql.Tx
	logger *slog.Logger
}

// NewSession returns an idle session on db.
func NewSession(db *sql.DB, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{db: db, logger: logger}
}

// Begin acquires a dedicated connection and opens a transaction on it.
func (s *Session) Begin(ctx context.Context) error {
	if s.tx != nil {
		return ErrTransactionActive
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "SET autocommit = 0"); err != nil {
		conn.Close()
		return fmt.Errorf("disabling autocommit: %w", err)
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		s.conn = conn
		s.release()
		return fmt.Errorf("starting transaction: %w", err)
	}
	s.conn, s.tx = conn, tx
	s.logger.Debug("transaction started")
	return nil
}

// Commit commits the transaction and releases the connection.
func (s *Session) Commit(ctx context.Context) error {
	if s.tx == nil {
		return ErrNoTransaction
	}
	defer s.release()
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("transaction committed")
	return nil
}

// Rollback rolls the transaction back and releases the connection.
func (s *Session) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return ErrNoTransaction
	}
	defer s.release()
	if err := s.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	s.logger.Debug("transaction rolled back")
	return nil
}

// Close rolls back any open transaction and releases the connection. It is
// safe to call after Commit or Rollback.
func (s *Session) Close() error {
	if s.tx == nil {
		return nil
	}
	defer s.release()
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback on close: %w", err)
	}
	return nil
}

// release restores autocommit and returns the connection to the pool. A
// connection whose autocommit cannot be restored is discarded instead.
func (s *Session) release() {
	s.tx = nil
	if s.conn == nil {
		return
	}
	if _, err := s.conn.ExecContext(context.Background(), "SET autocommit = 1"); err != nil {
		s.logger.Warn("restoring autocommit failed, discarding connection", "error", err)
		_ = s.conn.Raw(func(any) error { return driver.ErrBadConn })
	}
	if err := s.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		s.logger.Error("releasing connection failed", "error", err)
	}
	s.conn = nil
}

// Query runs a read statement and returns every row.
func (s *Session) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	if s.tx == nil {
		return nil, ErrNoTransaction
	}
	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

// GetOne returns the first row of a query. ok is false when no row matched;
// that is not an error.
func (s *Session) GetOne(ctx context.Context, query string, args ...any) (row Row, ok bool, err error) {
	rows, err := s.Query(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// Execute runs a statement and returns the affected row count. DDL returns a
// driver-defined count.
func (s *Session) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	if s.tx == nil {
		return 0, ErrNoTransaction
	}
	res, err := s.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []Row
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if values[i].Valid {
				row[col] = values[i].String
			}
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
