// Package rpc provides a comprehensive framework for remote procedure calls
// in dbKV. It acts as the communication layer
// between clients and servers, enabling operations across network boundaries.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: RPC client implementing the store.IStore interface, allowing
//     applications to use a remote store transparently.
//
//   - server: RPC server that decodes incoming requests and dispatches them
//     to a hosted store.IStore.
package rpc
