package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ValentinKolb/dbKV/lib/db"
	"github.com/ValentinKolb/dbKV/lib/logging"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
)

var Logger = logger.GetLogger(logging.Schema)

// Execer is the subset of a database connection the schema manager needs.
// *sql.Conn, *sqlx.Conn and *sqlx.DB all satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Error reports a failed table or index creation.
type Error struct {
	Table     db.Table
	Statement string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("schema failure for table %s: %v", e.Table, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Manager verifies and creates the physical tables backing the logical tables.
type Manager struct {
	conn      Execer
	keyType   string
	valueType string
}

// NewManager creates a schema manager for conn using the given column types.
func NewManager(conn Execer, keyType, valueType string) *Manager {
	return &Manager{
		conn:      conn,
		keyType:   keyType,
		valueType: valueType,
	}
}

// EnsureTables calls EnsureTable for each table, stopping at the first failure.
func (m *Manager) EnsureTables(ctx context.Context, tables ...db.Table) error {
	for _, table := range tables {
		if err := m.EnsureTable(ctx, table); err != nil {
			return err
		}
	}
	return nil
}

// EnsureTable creates table and its key index unless the table already exists.
// It is idempotent. Creation failures are returned as *Error.
func (m *Manager) EnsureTable(ctx context.Context, table db.Table) error {
	if m.Exists(ctx, table) {
		Logger.Debugf("table %s appears to exist", table)
		return nil
	}
	return m.create(ctx, table)
}

// Exists issues a minimal selective query against table. Any execution
// error is taken to mean the table is absent; no dialect specific error
// code parsing is attempted.
func (m *Manager) Exists(ctx context.Context, table db.Table) bool {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = '0'", table, db.KeyColumn)

	rows, err := m.conn.QueryContext(ctx, query)
	if err != nil {
		Logger.Debugf("error while checking for table %s: %v, assuming due to table non-existence", table, err)
		return false
	}
	if err := rows.Close(); err != nil {
		Logger.Debugf("error closing table check for %s: %v", table, err)
	}
	return true
}

func (m *Manager) create(ctx context.Context, table db.Table) error {
	createTable := CreateTableStatement(table, m.keyType, m.valueType)
	Logger.Debugf("attempting to execute the following sql statement:\n %s", createTable)
	if _, err := m.conn.ExecContext(ctx, createTable); err != nil {
		return &Error{
			Table:     table,
			Statement: createTable,
			Err:       errors.WithMessagef(err, "error creating new table %s", table),
		}
	}
	Logger.Infof("created table %s", table)

	createIndex := CreateIndexStatement(table)
	Logger.Debugf("attempting to execute the following sql statement:\n %s", createIndex)
	if _, err := m.conn.ExecContext(ctx, createIndex); err != nil {
		return &Error{
			Table:     table,
			Statement: createIndex,
			Err:       errors.WithMessagef(err, "error creating new index %s", IndexName(table)),
		}
	}
	Logger.Infof("created index %s", IndexName(table))

	return nil
}

// --------------------------------------------------------------------------
// Statements
// --------------------------------------------------------------------------

// IndexName returns the name of the key index of table.
func IndexName(table db.Table) string {
	return table.String() + "_IDX"
}

// CreateTableStatement renders the CREATE TABLE statement for table.
func CreateTableStatement(table db.Table, keyType, valueType string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("CREATE TABLE %s (\n", table))
	sb.WriteString(fmt.Sprintf("  %s %s(%d) NOT NULL PRIMARY KEY,\n", db.KeyColumn, keyType, db.KeyLength))
	sb.WriteString(fmt.Sprintf("  %s %s\n", db.ValueColumn, valueType))
	sb.WriteString(")")
	return sb.String()
}

// CreateIndexStatement renders the CREATE INDEX statement for the key column of table.
func CreateIndexStatement(table db.Table) string {
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", IndexName(table), table, db.KeyColumn)
}
