package driver

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/dbKV/lib/db"
	"github.com/ValentinKolb/dbKV/lib/logging"
	"github.com/jmoiron/sqlx"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger(logging.Driver)

// --------------------------------------------------------------------------
// Driver Registration
// --------------------------------------------------------------------------

// ConnectorFactory builds a database/sql connector from the configured
// connection string and optional credentials.
type ConnectorFactory func(connectionString, username, password string) (sqldriver.Connector, error)

// Driver describes a registered SQL backend and the dialect differences the
// store needs to know about.
type Driver struct {
	// Dialect is the identifier used in db.Config.Driver.
	Dialect string
	// BindName is the sqlx driver name used to pick the placeholder style.
	BindName string
	// NewConnector creates connectors for this backend.
	NewConnector ConnectorFactory
	// ColumnTypeKey and ColumnTypeValue are the default column types.
	ColumnTypeKey   string
	ColumnTypeValue string
	// RowLimit is appended to point lookups to bound them to a single row.
	RowLimit string
	// ProductName and VersionQuery describe the backend for diagnostics.
	ProductName  string
	VersionQuery string
	// ModulePath is the Go module providing the database/sql driver. It is
	// used to report the driver version and may be empty.
	ModulePath string
}

// UnknownVersion is reported when the driver module is not part of the
// binary's build info.
const UnknownVersion = "unknown"

var buildInfo = sync.OnceValues(debug.ReadBuildInfo)

// Version returns the version of the driver module linked into the binary.
// database/sql drivers do not report their own version, so it is read from
// the build info.
func (d Driver) Version() string {
	return moduleVersion(d.ModulePath)
}

func moduleVersion(path string) string {
	info, ok := buildInfo()
	if path == "" || !ok {
		return UnknownVersion
	}
	for _, dep := range info.Deps {
		if dep.Path != path {
			continue
		}
		if dep.Replace != nil {
			dep = dep.Replace
		}
		if dep.Version == "" {
			break
		}
		return dep.Version
	}
	return UnknownVersion
}

type registration struct {
	driver Driver
	refs   atomic.Int64
}

var registry = xsync.NewMapOf[string, *registration]()

// Register adds a driver to the registry.
// It fails if the dialect is empty, the factory is missing or the dialect is already registered.
func Register(d Driver) error {
	if d.Dialect == "" {
		return errors.New("driver dialect must not be empty")
	}
	if d.NewConnector == nil {
		return errors.Errorf("driver %q has no connector factory", d.Dialect)
	}
	if _, loaded := registry.LoadOrStore(d.Dialect, &registration{driver: d}); loaded {
		return errors.Errorf("driver %q is already registered", d.Dialect)
	}
	Logger.Debugf("registered driver %s", d.Dialect)
	return nil
}

// MustRegister is like Register but panics on error. It is meant for init functions.
func MustRegister(d Driver) {
	if err := Register(d); err != nil {
		panic(err)
	}
}

// Unregister removes a driver from the registry. Handles that are already
// loaded keep working until they are unloaded.
// It returns whether the dialect was registered.
func Unregister(dialect string) bool {
	_, ok := registry.LoadAndDelete(dialect)
	if ok {
		Logger.Debugf("unregistered driver %s", dialect)
	}
	return ok
}

// Dialects returns the identifiers of all registered drivers.
func Dialects() []string {
	var dialects []string
	registry.Range(func(key string, _ *registration) bool {
		dialects = append(dialects, key)
		return true
	})
	return dialects
}

// Refs returns the number of loaded, not yet unloaded handles for a dialect.
func Refs(dialect string) int64 {
	reg, ok := registry.Load(dialect)
	if !ok {
		return 0
	}
	return reg.refs.Load()
}

// --------------------------------------------------------------------------
// Loading
// --------------------------------------------------------------------------

// Unloader releases a loaded Handle. Calling it more than once is a no-op.
type Unloader func()

// Handle is a loaded driver scoped to one store instance.
type Handle struct {
	driver Driver
	conf   db.Config
}

// Load resolves the driver named by conf.Driver and returns a scoped handle
// plus the Unloader that releases it.
func Load(conf db.Config) (*Handle, Unloader, error) {
	reg, ok := registry.Load(conf.Driver)
	if !ok {
		return nil, nil, errors.Errorf("no driver registered for dialect %q", conf.Driver)
	}

	reg.refs.Add(1)
	Logger.Debugf("loaded driver %s (refs=%d)", conf.Driver, reg.refs.Load())

	var once sync.Once
	unload := func() {
		once.Do(func() {
			reg.refs.Add(-1)
			Logger.Debugf("unloaded driver %s (refs=%d)", conf.Driver, reg.refs.Load())
		})
	}

	return &Handle{driver: reg.driver, conf: conf}, unload, nil
}

// Driver returns the registration this handle was loaded from.
func (h *Handle) Driver() Driver {
	return h.driver
}

// ColumnTypes returns the key and value column types, preferring configured
// values over the dialect defaults.
func (h *Handle) ColumnTypes() (key, value string) {
	key, value = h.driver.ColumnTypeKey, h.driver.ColumnTypeValue
	if h.conf.ColumnTypeKey != "" {
		key = h.conf.ColumnTypeKey
	}
	if h.conf.ColumnTypeValue != "" {
		value = h.conf.ColumnTypeValue
	}
	return key, value
}

// Open creates the database handle backing a store connection. The pool is
// capped at a single connection.
func (h *Handle) Open() (*sqlx.DB, error) {
	connector, err := h.driver.NewConnector(h.conf.ConnectionString, h.conf.Username, h.conf.Password)
	if err != nil {
		return nil, errors.WithMessagef(err, "creating %s connector", h.driver.Dialect)
	}

	sqlDB := sql.OpenDB(connector)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	return sqlx.NewDb(sqlDB, h.driver.BindName), nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// dsnConnector adapts a driver.Driver that does not implement
// driver.DriverContext to the driver.Connector interface.
type dsnConnector struct {
	dsn string
	drv sqldriver.Driver
}

func (c dsnConnector) Connect(_ context.Context) (sqldriver.Conn, error) {
	return c.drv.Open(c.dsn)
}

func (c dsnConnector) Driver() sqldriver.Driver {
	return c.drv
}

// NewDSNConnector returns a connector for dsn, using the driver's own
// connector when it provides one.
func NewDSNConnector(drv sqldriver.Driver, dsn string) (sqldriver.Connector, error) {
	if dc, ok := drv.(sqldriver.DriverContext); ok {
		return dc.OpenConnector(dsn)
	}
	return dsnConnector{dsn: dsn, drv: drv}, nil
}

// registeredDriver returns the driver.Driver registered with database/sql under name.
// sql.Open does not connect, so this never touches a database.
func registeredDriver(name string) (sqldriver.Driver, error) {
	sqlDB, err := sql.Open(name, "")
	if err != nil {
		return nil, errors.WithMessagef(err, "looking up sql driver %q", name)
	}
	defer sqlDB.Close()
	return sqlDB.Driver(), nil
}
