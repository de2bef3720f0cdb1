// Package store provides the high-level interface for key-value storage
// operations against a relational database, together with unified error
// handling and service capability reporting.
//
// The package focuses on:
//   - A unified interface (IStore) for table-scoped key-value operations
//   - A forward-only key sequence (KeyIterator) backed by a live cursor
//   - A structured error system (Error, RetCode)
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining put/get/contains/remove/size,
//     key iteration, health checks and service information. The SQL store and the
//     RPC client share this interface, so applications can switch between a local
//     database connection and a remote server without code changes.
//
//   - Error System: A structured error reporting mechanism using typed error codes.
//     Every *Error carries a code, a message, a timestamp and an optional cause.
//     Sentinel values (ErrUnavailable, ErrSchemaFailure, ...) match any error with
//     the same code through errors.Is, letting callers distinguish "never reachable"
//     from "reachable but misconfigured".
//
// Implementations:
//
//   - SQL Store (sqlstore): The relational implementation. It owns exactly one
//     database connection through the conn package, bootstraps the schema on
//     first use and reconnects when the connection goes stale.
//     Available in the "github.com/ValentinKolb/dbKV/lib/store/sqlstore" package.
//
//   - RPC Store (rpc/client): A client forwarding every operation to a remote
//     server. Available in the "github.com/ValentinKolb/dbKV/rpc/client" package.
//
// The testing subpackage provides a conformance suite (RunStoreTests) that both
// implementations are checked against.
package store
