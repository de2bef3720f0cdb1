// Package driver is the plugin registry through which the store reaches a
// relational database. A registration maps a dialect identifier to a factory
// producing database/sql connectors, together with the dialect differences
// the store depends on (placeholder style, default column types, row-limit
// clause, version query).
//
// Loading a driver yields a Handle scoped to one store instance and an
// Unloader that releases it. Handles are reference counted per dialect so
// several stores may use the same registration at once; unloading is best
// effort and idempotent.
//
// Built-in registrations:
//
//   - "sqlite"   pure Go SQLite via modernc.org/sqlite
//   - "sqlite3"  cgo SQLite via github.com/mattn/go-sqlite3
//   - "postgres" PostgreSQL via github.com/lib/pq
//
// Usage Example:
//
//	handle, unload, err := driver.Load(db.Config{Driver: "sqlite", ConnectionString: "file:kv.db"})
//	if err != nil {
//		return err
//	}
//	defer unload()
//
//	sqlDB, err := handle.Open()
package driver
