// Package unix provides the Unix domain socket transport of dbKV. It is the
// fastest option when client and server run on the same machine.
//
// Only connectors live here: the client dials the socket path given as
// endpoint, the server removes a stale socket file before listening. Framing,
// retries and the worker pool come from the base package.
//
// NewUnixDefaultServerTransport uses 64 KB request buffers and 16 workers per
// connection.
package unix
