// Package db defines the vocabulary shared by every layer of the relational
// key-value store: the fixed set of logical tables, the physical row layout,
// the connection configuration and the debug information reported about a
// live connection.
//
// The package focuses on:
//   - A closed set of logical tables (Table) that map 1:1 to physical tables
//   - The row layout (KeyColumn, ValueColumn, KeyLength) used by schema creation and queries
//   - The immutable connection configuration (Config)
//   - Connection metadata (DatabaseInfo) for diagnostics
//
// Related Packages:
//
// The driver package (github.com/ValentinKolb/dbKV/lib/db/driver) is a plugin
// registry mapping dialect identifiers to database/sql connectors.
//
// The schema package (github.com/ValentinKolb/dbKV/lib/db/schema) creates the
// tables and indexes on first use.
//
// The conn package (github.com/ValentinKolb/dbKV/lib/db/conn) owns the single
// live connection and its state machine, including liveness probing and
// reconnects.
package db
