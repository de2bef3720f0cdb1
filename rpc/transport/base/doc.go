// Package base contains the socket transport shared by the tcp and unix
// packages. Protocol specific code is limited to connectors that dial, listen
// and apply socket options; framing, request correlation and the worker pool
// live here.
//
// Wire format:
//
//	| requestID (8 bytes, big endian) | length (4 bytes, big endian) | payload |
//
// Every request frame is answered by exactly one response frame carrying the
// same requestID. Responses may arrive out of order.
//
// Client:
//
//   - Opens ConnectionsPerEndpoint connections to every endpoint and picks one
//     round robin per attempt.
//   - Pending requests are kept in an xsync.MapOf keyed by requestID. A reader
//     goroutine per connection delivers responses; a broken connection fails
//     all of its pending requests and is re-dialed.
//   - Failed attempts are retried RetryCount times with jittered exponential
//     backoff.
//
// Server:
//
//   - One goroutine per accepted connection reads frames into pooled buffers.
//   - At most WorkersPerConn requests of a connection are handled at the same
//     time; writes to a connection are serialized.
//   - Shutdown closes the listener and every open connection, then waits for
//     the connection goroutines or returns when ctx is done.
package base
