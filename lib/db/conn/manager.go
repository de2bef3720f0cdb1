package conn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/dbKV/lib/db"
	"github.com/ValentinKolb/dbKV/lib/db/driver"
	"github.com/ValentinKolb/dbKV/lib/db/schema"
	"github.com/ValentinKolb/dbKV/lib/logging"
	"github.com/ValentinKolb/dbKV/lib/store"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger(logging.Conn)

// HeartbeatKeyPrefix is prepended to the instance id to form the key written
// to the meta table on every successful open.
const HeartbeatKeyPrefix = "engine-start-"

// ErrorHandler is notified of every failure the Manager encounters while
// probing or opening a connection.
type ErrorHandler func(err *store.Error)

// Manager owns the lifecycle of the single database connection of a store.
//
// Ensuring, opening, reconnecting and closing are serialized by one mutex.
// Statements themselves run outside of it on the *Connection returned by
// EnsureReady.
type Manager struct {
	mu         sync.Mutex
	conf       db.Config
	tables     []db.Table
	disabled   bool
	state      State
	current    *Connection
	handle     *driver.Handle
	unload     driver.Unloader
	generation uint64
	onError    ErrorHandler
}

// NewManager creates a Manager for conf. No connection is attempted until
// the first call to EnsureReady. A config that is not enabled or lacks a
// driver or connection string yields a Manager that starts CLOSED.
func NewManager(conf db.Config, onError ErrorHandler) *Manager {
	if conf.InstanceID == "" {
		conf.InstanceID = uuid.NewString()
	}
	if onError == nil {
		onError = func(*store.Error) {}
	}

	m := &Manager{
		conf:    conf,
		tables:  db.Tables(),
		state:   StateNew,
		onError: onError,
	}

	if !conf.IsConfigured() {
		m.disabled = true
		m.state = StateClosed
		Logger.Infof("database is not configured, store is disabled")
	}

	return m
}

// Config returns the configuration, with the instance id filled in.
func (m *Manager) Config() db.Config {
	return m.conf
}

// HeartbeatKey is the meta table key refreshed on every open.
func (m *Manager) HeartbeatKey() string {
	return HeartbeatKeyPrefix + m.conf.InstanceID
}

// Disabled reports whether the Manager was created from an incomplete config.
func (m *Manager) Disabled() bool {
	return m.disabled
}

// Status returns the current lifecycle state.
func (m *Manager) Status() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Info returns the diagnostics of the held connection, if any.
func (m *Manager) Info() (db.DatabaseInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return db.DatabaseInfo{}, false
	}
	return m.current.info, true
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// EnsureReady returns a verified connection, opening or reconnecting as
// needed. While OPEN the held connection is probed first and replaced if
// the probe fails. Failures are returned as *store.Error.
func (m *Manager) EnsureReady() (*Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run(EventEnsure)
}

// Reconnect unconditionally replaces the held connection. Cursors and
// statements on the previous connection fail from then on. A statement in
// flight is cancelled through the connection context; the database may
// have committed it already while the caller still sees an error.
func (m *Manager) Reconnect() (*Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	event := EventEnsure
	if m.state == StateOpen {
		event = EventProbeFailed
	}
	return m.run(event)
}

// Close moves the Manager to CLOSED, retires the held connection and
// unloads the driver. It is idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, action := Transition(m.state, EventClose)
	m.state = next

	if action == ActionRelease && m.current != nil {
		m.release(m.current)
		m.current = nil
	}
	if m.unload != nil {
		m.unload()
		m.unload = nil
		m.handle = nil
	}
	if action == ActionRelease {
		Logger.Infof("database connection closed")
	}
}

// run drives the state machine from event until it settles. The caller must hold mu.
func (m *Manager) run(event Event) (*Connection, error) {
	for {
		prev := m.state
		next, action := Transition(prev, event)
		m.state = next
		if prev != next {
			Logger.Debugf("state %s -> %s on %s", prev, next, event)
		}

		switch action {
		case ActionNone:
			return m.current, nil

		case ActionProbe:
			event = EventProbeSucceeded
			if err := m.current.liveness.Alive(m.current); err != nil {
				Logger.Warningf("database connection #%d failed %s probe, reconnecting: %v",
					m.current.generation, m.current.liveness.Name(), err)
				m.fail(store.WrapError(store.RetCUnavailable, "database connection is not valid", err))
				event = EventProbeFailed
			}

		case ActionOpen:
			if err := m.open(); err != nil {
				m.state, _ = Transition(m.state, EventOpenFailed)
				return nil, err
			}
			event = EventOpenSucceeded

		default:
			return nil, m.rejection()
		}
	}
}

// open retires the held connection and runs a full open. The caller must hold mu.
func (m *Manager) open() error {
	if m.current != nil {
		m.release(m.current)
		m.current = nil
	}

	if m.handle == nil {
		handle, unload, err := driver.Load(m.conf)
		if err != nil {
			return m.fail(store.WrapError(store.RetCUnavailable, "error loading database driver", err))
		}
		m.handle, m.unload = handle, unload
	}

	sqlDB, err := m.handle.Open()
	if err != nil {
		return m.fail(store.WrapError(store.RetCUnavailable, "error connecting to database", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	sqlConn, err := sqlDB.Connx(ctx)
	if err != nil {
		cancel()
		_ = sqlDB.Close()
		return m.fail(store.WrapError(store.RetCUnavailable, "error connecting to database", err))
	}

	m.generation++
	c := &Connection{
		generation: m.generation,
		db:         sqlDB,
		conn:       sqlConn,
		ctx:        ctx,
		cancel:     cancel,
		driver:     m.handle.Driver(),
	}
	c.liveness = selectLiveness(c, m.HeartbeatKey())

	keyType, valueType := m.handle.ColumnTypes()
	if err := schema.NewManager(sqlConn, keyType, valueType).EnsureTables(ctx, m.tables...); err != nil {
		m.release(c)
		return m.fail(store.WrapError(store.RetCSchemaFailure, "error initializing tables", err))
	}

	if _, err := c.upsert(db.TablePwmMeta, m.HeartbeatKey(), time.Now().UTC().Format(time.RFC3339)); err != nil {
		m.release(c)
		return m.fail(store.WrapError(store.RetCUnavailable, "error writing engine start time value", err))
	}

	c.info = describe(c)
	m.current = c
	Logger.Infof("opened database connection #%d: %s", c.generation, c.info)
	return nil
}

func (m *Manager) release(c *Connection) {
	if err := c.retire(); err != nil {
		Logger.Warningf("error closing database connection #%d: %v", c.generation, err)
	}
}

func (m *Manager) fail(err *store.Error) error {
	m.onError(err)
	return err
}

func (m *Manager) rejection() error {
	switch {
	case m.disabled:
		return store.NewError(store.RetCUnavailable, "database is not enabled")
	case m.state == StateClosed:
		return store.NewError(store.RetCUnavailable, "database is closed")
	default:
		return store.NewError(store.RetCUnavailable, "database is not available")
	}
}

// describe collects the diagnostics of a freshly opened connection.
func describe(c *Connection) db.DatabaseInfo {
	info := db.DatabaseInfo{
		Dialect:       c.driver.Dialect,
		DriverName:    fmt.Sprintf("%T", c.db.Driver()),
		DriverVersion: c.driver.Version(),
		ProductName:   c.driver.ProductName,
		Liveness:      c.liveness.Name(),
	}
	if c.driver.VersionQuery != "" {
		if err := c.conn.QueryRowxContext(c.ctx, c.driver.VersionQuery).Scan(&info.ProductVersion); err != nil {
			Logger.Debugf("could not read %s version: %v", c.driver.Dialect, err)
		}
	}
	return info
}
