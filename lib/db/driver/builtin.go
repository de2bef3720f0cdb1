package driver

import (
	sqldriver "database/sql/driver"
	"net/url"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const (
	DialectSQLite   = "sqlite"   // pure Go SQLite (modernc.org/sqlite)
	DialectSQLite3  = "sqlite3"  // cgo SQLite (github.com/mattn/go-sqlite3)
	DialectPostgres = "postgres" // PostgreSQL (github.com/lib/pq)
)

func init() {
	MustRegister(Driver{
		Dialect:  DialectSQLite,
		BindName: "sqlite3",
		NewConnector: func(connectionString, _, _ string) (sqldriver.Connector, error) {
			drv, err := registeredDriver("sqlite")
			if err != nil {
				return nil, err
			}
			return NewDSNConnector(drv, connectionString)
		},
		ColumnTypeKey:   "VARCHAR",
		ColumnTypeValue: "TEXT",
		RowLimit:        " LIMIT 1",
		ProductName:     "SQLite",
		VersionQuery:    "SELECT sqlite_version()",
		ModulePath:      "modernc.org/sqlite",
	})

	MustRegister(Driver{
		Dialect:  DialectSQLite3,
		BindName: "sqlite3",
		NewConnector: func(connectionString, _, _ string) (sqldriver.Connector, error) {
			return NewDSNConnector(&sqlite3.SQLiteDriver{}, connectionString)
		},
		ColumnTypeKey:   "VARCHAR",
		ColumnTypeValue: "TEXT",
		RowLimit:        " LIMIT 1",
		ProductName:     "SQLite",
		VersionQuery:    "SELECT sqlite_version()",
		ModulePath:      "github.com/mattn/go-sqlite3",
	})

	MustRegister(Driver{
		Dialect:  DialectPostgres,
		BindName: "postgres",
		NewConnector: func(connectionString, username, password string) (sqldriver.Connector, error) {
			dsn, err := postgresDSN(connectionString, username, password)
			if err != nil {
				return nil, err
			}
			connector, err := pq.NewConnector(dsn)
			if err != nil {
				return nil, errors.WithMessage(err, "parsing postgres connection string")
			}
			return connector, nil
		},
		ColumnTypeKey:   "VARCHAR",
		ColumnTypeValue: "TEXT",
		RowLimit:        " LIMIT 1",
		ProductName:     "PostgreSQL",
		VersionQuery:    "SHOW server_version",
		ModulePath:      "github.com/lib/pq",
	})
}

// postgresDSN merges credentials into a URL or key=value connection string.
// Credentials already present in the connection string win.
func postgresDSN(connectionString, username, password string) (string, error) {
	if username == "" && password == "" {
		return connectionString, nil
	}

	if strings.HasPrefix(connectionString, "postgres://") || strings.HasPrefix(connectionString, "postgresql://") {
		u, err := url.Parse(connectionString)
		if err != nil {
			return "", errors.WithMessage(err, "parsing postgres connection url")
		}
		if u.User == nil {
			if password != "" {
				u.User = url.UserPassword(username, password)
			} else {
				u.User = url.User(username)
			}
		}
		return u.String(), nil
	}

	dsn := connectionString
	if username != "" && !strings.Contains(connectionString, "user=") {
		dsn += " user=" + quoteDSNValue(username)
	}
	if password != "" && !strings.Contains(connectionString, "password=") {
		dsn += " password=" + quoteDSNValue(password)
	}
	return strings.TrimSpace(dsn), nil
}

// quoteDSNValue quotes a key=value connection string value as libpq expects.
func quoteDSNValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
