/*
Package conn manages the single dedicated database connection behind a store.

A Manager moves through the states NEW, OPENING, OPEN and CLOSED. The
transitions are defined by the pure Transition function; the Manager only
executes the resulting actions.

A full open loads the configured driver, connects, selects a liveness
strategy, creates the logical tables and writes a heartbeat row into the
meta table:

	m := conn.NewManager(conf, nil)
	defer m.Close()

	c, err := m.EnsureReady()
	if err != nil {
		// err is a *store.Error with code RetCUnavailable or RetCSchemaFailure
	}
	value, found, err := c.Lookup(db.TablePwmMeta, m.HeartbeatKey())

Every reconnect retires the previous Connection. A retired Connection
cancels its context, so cursors opened on it stop yielding rows.
*/
package conn
