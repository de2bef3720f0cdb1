package conn

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ValentinKolb/dbKV/lib/db"
	"github.com/ValentinKolb/dbKV/lib/db/driver"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Connection is the single dedicated database connection held by a Manager.
//
// All statements run under the connection's lifetime context. Retiring the
// connection cancels that context first, so statements and cursors that are
// still in flight on a retired connection fail instead of blocking.
type Connection struct {
	generation uint64
	db         *sqlx.DB
	conn       *sqlx.Conn
	ctx        context.Context
	cancel     context.CancelFunc
	driver     driver.Driver
	liveness   Liveness
	info       db.DatabaseInfo
}

// Generation identifies the connection. It increases with every reconnect.
func (c *Connection) Generation() uint64 {
	return c.generation
}

// Valid reports whether the connection has not been retired.
func (c *Connection) Valid() bool {
	return c.ctx.Err() == nil
}

// Context is cancelled when the connection is retired.
func (c *Connection) Context() context.Context {
	return c.ctx
}

// Info returns the diagnostics collected when the connection was opened.
func (c *Connection) Info() db.DatabaseInfo {
	return c.info
}

// retire invalidates the connection and releases its resources.
// It must be called at most once per connection.
func (c *Connection) retire() error {
	c.cancel()
	err := c.conn.Close()
	if dbErr := c.db.Close(); err == nil {
		err = dbErr
	}
	if errors.Is(err, sql.ErrConnDone) {
		err = nil
	}
	return err
}

// --------------------------------------------------------------------------
// Statements
// --------------------------------------------------------------------------

// Lookup reads the value stored for key. A missing row and a NULL value are
// both reported as not found.
func (c *Connection) Lookup(table db.Table, key string) (value string, found bool, err error) {
	q := c.rebind(fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?%s",
		db.ValueColumn, table, db.KeyColumn, c.driver.RowLimit))

	var v sql.NullString
	err = c.conn.QueryRowxContext(c.ctx, q, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if !v.Valid {
		return "", false, nil
	}
	return v.String, true, nil
}

// Insert adds a new row.
func (c *Connection) Insert(table db.Table, key, value string) error {
	q := c.rebind(fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)",
		table, db.KeyColumn, db.ValueColumn))
	_, err := c.conn.ExecContext(c.ctx, q, key, value)
	return err
}

// Update replaces the value of an existing row.
func (c *Connection) Update(table db.Table, key, value string) error {
	q := c.rebind(fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?",
		table, db.ValueColumn, db.KeyColumn))
	_, err := c.conn.ExecContext(c.ctx, q, value, key)
	return err
}

// Delete removes the row for key, if any.
func (c *Connection) Delete(table db.Table, key string) error {
	q := c.rebind(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, db.KeyColumn))
	_, err := c.conn.ExecContext(c.ctx, q, key)
	return err
}

// Count returns the number of rows in table.
func (c *Connection) Count(table db.Table) (int, error) {
	q := fmt.Sprintf("SELECT COUNT(%s) FROM %s", db.KeyColumn, table)

	var n int
	err := c.conn.QueryRowxContext(c.ctx, q).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// Keys opens a cursor over all keys of table. The caller must close it.
func (c *Connection) Keys(table db.Table) (*sqlx.Rows, error) {
	q := fmt.Sprintf("SELECT %s FROM %s", db.KeyColumn, table)
	return c.conn.QueryxContext(c.ctx, q)
}

func (c *Connection) rebind(q string) string {
	return sqlx.Rebind(sqlx.BindType(c.driver.BindName), q)
}

// upsert writes value under key, returning whether the key existed.
func (c *Connection) upsert(table db.Table, key, value string) (existed bool, err error) {
	_, existed, err = c.Lookup(table, key)
	if err != nil {
		return false, err
	}
	if existed {
		return true, c.Update(table, key, value)
	}
	return false, c.Insert(table, key, value)
}
