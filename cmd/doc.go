// Package cmd implements the command-line interface of dbKV. It provides a
// hierarchical command structure with operations for running the server and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts a dbKV server hosting the SQL store
//   - kv: Client commands for key-value operations (put, get, has, del, size, keys, perf)
//   - health: One-shot health check, locally or through a running server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dbkv -help for a list of all commands.
package cmd
